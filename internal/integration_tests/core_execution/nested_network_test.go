package integration_tests

import (
	"testing"

	"github.com/specialistvlad/graphcraft/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// Test for: Networks used as nodes are inlined under the path of the node.
func TestCoreExecution_NestedNetwork(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{
		"main.hcl": `
			network "main" {
			  input "x" { type = number }
			  node "s" {
			    network = "scale"
			    args    = [input.x]
			  }
			  node "out" {
			    op   = "math.add"
			    args = [node.s, 1]
			  }
			  export = [node.out]
			}
		`,
		"lib/scale.hcl": `
			network "scale" {
			  input "v" { type = number }
			  node "twice" {
			    op   = "math.mul"
			    args = [input.v, 2]
			  }
			  export = [node.twice]
			}
		`,
	}

	// --- Act ---
	result := testutil.RunGraphTest(t, testutil.GraphTest{Files: files, Inputs: []string{"x=4"}})

	// --- Assert ---
	require.NoError(t, result.Err)
	require.Len(t, result.Results, 1)
	require.True(t, result.Results[0].Equals(cty.NumberIntVal(9)).True())
	testutil.AssertNodeRan(t, result, "main.s.twice")
	testutil.AssertNodeRan(t, result, "main.out")
}
