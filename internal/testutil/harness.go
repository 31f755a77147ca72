// Package testutil holds the harness and mock modules shared by the
// integration tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/graphcraft/internal/app"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Results   []cty.Value
	Err       error
	App       *app.App
}

// GraphTest describes one run of the application over in-memory files.
type GraphTest struct {
	// Files maps paths relative to a temporary directory to their content.
	Files map[string]string
	// Graph is the path handed to the app, relative to the same directory.
	// Empty means the directory itself.
	Graph  string
	Inputs []string
	// Nodes selects node paths to evaluate instead of the exports.
	Nodes   []string
	Workers int
	// Modules replace the built-in modules when set.
	Modules []registry.Module
}

// RunGraphTest runs tc once with a background context.
func RunGraphTest(t *testing.T, tc GraphTest) *HarnessResult {
	t.Helper()
	return RunGraphTestWithContext(context.Background(), t, tc)
}

// RunGraphTestWithContext writes the files of tc, builds an app with debug
// logging and runs the graph once.
func RunGraphTestWithContext(ctx context.Context, t *testing.T, tc GraphTest) *HarnessResult {
	t.Helper()

	dir := t.TempDir()
	for name, content := range tc.Files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(Unindent(content)), 0o600))
	}

	cfg, err := app.NewConfig(app.Config{
		GraphPath:   filepath.Join(dir, tc.Graph),
		Inputs:      tc.Inputs,
		Nodes:       tc.Nodes,
		WorkerCount: tc.Workers,
	})
	require.NoError(t, err)

	a, logs := app.SetupAppTest(t, cfg, tc.Modules...)
	results, runErr := a.RunOnce(ctx)
	return &HarnessResult{
		LogOutput: logs.String(),
		Results:   results,
		Err:       runErr,
		App:       a,
	}
}
