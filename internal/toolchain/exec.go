package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/artifact"
)

// Exec runs an external compiler. Every argument has {input} and {output}
// replaced with the source and output file names inside the work directory.
// Stderr lines become diagnostics.
type Exec struct {
	Label   string
	Command []string
}

func (e Exec) Name() string {
	if e.Label != "" {
		return e.Label
	}
	if len(e.Command) > 0 {
		return filepath.Base(e.Command[0])
	}
	return "exec"
}

func (e Exec) Compile(ctx context.Context, workDir, source string) ([]byte, []artifact.Diagnostic, error) {
	if len(e.Command) == 0 {
		return nil, nil, errors.New("exec toolchain has no command")
	}
	in := filepath.Join(workDir, SourceFile)
	out := filepath.Join(workDir, OutputFile)
	if err := os.WriteFile(in, []byte(source), 0o644); err != nil {
		return nil, nil, err
	}

	args := make([]string, len(e.Command))
	for i, a := range e.Command {
		a = strings.ReplaceAll(a, "{input}", in)
		args[i] = strings.ReplaceAll(a, "{output}", out)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workDir
	cmd.Stderr = &stderr
	err := cmd.Run()
	diags := ParseDiagnostics(stderr.String())

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		errs := errorsOnly(diags)
		if len(errs) == 0 {
			errs = []artifact.Diagnostic{{Severity: "error", Message: fmt.Sprintf("%s exited with code %d", e.Name(), exitErr.ExitCode())}}
		}
		return nil, nil, &DiagnosticError{Toolchain: e.Name(), Diagnostics: errs}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("run %s: %w", e.Name(), err)
	}

	binary, err := os.ReadFile(out)
	if err != nil {
		return nil, nil, fmt.Errorf("%s produced no output: %w", e.Name(), err)
	}
	return binary, warningsOnly(diags), nil
}
