// Package toolchain turns WGSL source into a device binary. Toolchains are
// selected by profile name; the default profile "spirv" compiles in process
// with naga.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/artifact"
)

// Source and output file names inside a work directory.
const (
	SourceFile = "shader.wgsl"
	OutputFile = "shader.out"
)

// Toolchain compiles one shader inside workDir, which the caller creates and
// removes. Warnings of a successful compilation are returned alongside the
// binary; failures carrying compiler messages are *DiagnosticError.
type Toolchain interface {
	Name() string
	Compile(ctx context.Context, workDir, source string) ([]byte, []artifact.Diagnostic, error)
}

// ErrDiagnostics is matched by every *DiagnosticError.
var ErrDiagnostics = errors.New("shader compilation failed")

// DiagnosticError reports a compilation rejected by the compiler itself.
type DiagnosticError struct {
	Toolchain   string
	Diagnostics []artifact.Diagnostic
}

func (e *DiagnosticError) Error() string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = d.String()
	}
	return fmt.Sprintf("%s: %s: %s", e.Toolchain, ErrDiagnostics, strings.Join(parts, "; "))
}

func (e *DiagnosticError) Is(target error) bool { return target == ErrDiagnostics }

var locationRegex = regexp.MustCompile(`(\d+):(\d+)`)

// ParseDiagnostics turns compiler output into diagnostics, one per
// non-empty line. The first `line:col` pair of a line is its location.
func ParseDiagnostics(output string) []artifact.Diagnostic {
	var out []artifact.Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d := artifact.Diagnostic{Severity: "error", Message: line}
		if strings.Contains(strings.ToLower(line), "warning") {
			d.Severity = "warning"
		}
		if m := locationRegex.FindStringSubmatch(line); m != nil {
			d.Line, _ = strconv.Atoi(m[1])
			d.Column, _ = strconv.Atoi(m[2])
		}
		out = append(out, d)
	}
	return out
}

func errorsOnly(ds []artifact.Diagnostic) []artifact.Diagnostic {
	var out []artifact.Diagnostic
	for _, d := range ds {
		if d.Severity == "error" {
			out = append(out, d)
		}
	}
	return out
}

func warningsOnly(ds []artifact.Diagnostic) []artifact.Diagnostic {
	var out []artifact.Diagnostic
	for _, d := range ds {
		if d.Severity == "warning" {
			out = append(out, d)
		}
	}
	return out
}
