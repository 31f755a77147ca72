package integration_tests

import (
	"testing"

	"github.com/specialistvlad/graphcraft/internal/testutil"
	"github.com/stretchr/testify/require"
)

// Test for: Syntax errors stop the run before anything is compiled.
func TestErrorHandling_InvalidHCLIsRejected(t *testing.T) {
	// --- Arrange ---
	graph := `
		network "main" {
		  node "a" {
		    op = "math.const"
		// Missing closing braces here
	`

	// --- Act ---
	result := testutil.RunGraphTest(t, testutil.GraphTest{Files: map[string]string{"main.hcl": graph}})

	// --- Assert ---
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "failed to load graph")
	require.NotContains(t, result.LogOutput, "Graph compiled.")
}
