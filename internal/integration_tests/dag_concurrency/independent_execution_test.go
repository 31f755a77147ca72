package integration_tests

import (
	"testing"
	"time"

	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/specialistvlad/graphcraft/internal/testutil"
	"github.com/stretchr/testify/require"
)

// Test for: Independent nodes run in parallel.
func TestDagConcurrency_IndependentExecution(t *testing.T) {
	// --- Arrange ---
	sleeper := testutil.NewSleeperModule(nil, 100*time.Millisecond)
	graph := `
		network "main" {
		  node "a" {
		    op   = "test.sleep"
		    args = ["A"]
		  }
		  node "b" {
		    op   = "test.sleep"
		    args = ["B"]
		  }
		  node "c" {
		    op   = "test.sleep"
		    args = ["C"]
		  }
		  export = [node.a, node.b, node.c]
		}
	`

	// --- Act ---
	result := testutil.RunGraphTest(t, testutil.GraphTest{
		Files:   map[string]string{"main.hcl": graph},
		Workers: 3,
		Modules: []registry.Module{sleeper},
	})

	// --- Assert ---
	require.NoError(t, result.Err)
	require.Len(t, result.Results, 3)

	var latestStart, earliestEnd time.Time
	for _, id := range []string{"A", "B", "C"} {
		rec, ok := sleeper.Record(id)
		require.True(t, ok, "node %s did not run", id)
		if rec.Start.After(latestStart) {
			latestStart = rec.Start
		}
		if earliestEnd.IsZero() || rec.End.Before(earliestEnd) {
			earliestEnd = rec.End
		}
	}
	require.True(t, latestStart.Before(earliestEnd), "all nodes should have started before any finished")
}
