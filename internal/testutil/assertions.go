package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertNodeRan checks the debug log of a run for the evaluation of the node
// at path, e.g. "main.sum".
func AssertNodeRan(t *testing.T, result *HarnessResult, path string) {
	t.Helper()
	require.True(t, ranNode(result, path), "expected node '%s' to run", path)
}

// AssertNodeSkipped checks that the node at path never ran.
func AssertNodeSkipped(t *testing.T, result *HarnessResult, path string) {
	t.Helper()
	require.False(t, ranNode(result, path), "expected node '%s' not to run", path)
}

func ranNode(result *HarnessResult, path string) bool {
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if strings.Contains(line, "Running node.") && strings.Contains(line, "node="+path+" ") {
			return true
		}
	}
	return false
}
