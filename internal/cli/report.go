package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-wordwrap"
	"github.com/specialistvlad/graphcraft/internal/compiler"
	"github.com/specialistvlad/graphcraft/internal/compilesrv"
)

// ReportWidth is the column errors are wrapped at.
const ReportWidth = 100

var (
	errorStyle   = color.New(color.FgRed, color.OpBold)
	warningStyle = color.New(color.FgYellow, color.OpBold)
	detailStyle  = color.New(color.FgGray)
)

// Report writes err to w for a human and returns the process exit code.
// Compiler findings are listed one per line. Colors are used only when w
// is a terminal.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	r := reporter{w: w, colored: isTerminal(w)}

	var exitErr *ExitError
	var compileErr *compiler.Error
	var serverErr *compilesrv.CompileError
	var group interface{ Errors() []error }
	switch {
	case errors.As(err, &exitErr):
		r.line("error", exitErr.Message)
		return exitErr.Code
	case errors.As(err, &compileErr):
		for _, d := range compileErr.Diagnostics {
			r.line(d.Severity.String(), d.Error())
		}
	case errors.As(err, &serverErr) && len(serverErr.Diagnostics) > 0:
		r.line("error", err.Error())
		for _, d := range serverErr.Diagnostics {
			r.detail(d.String())
		}
	case errors.As(err, &group):
		for _, e := range group.Errors() {
			r.line("error", e.Error())
		}
	default:
		r.line("error", err.Error())
	}
	return 1
}

type reporter struct {
	w       io.Writer
	colored bool
}

func (r reporter) line(severity, msg string) {
	label := severity + ":"
	if r.colored {
		style := errorStyle
		if severity == compiler.SeverityWarning.String() {
			style = warningStyle
		}
		label = style.Sprint(label)
	}
	fmt.Fprintf(r.w, "%s %s\n", label, wrap(msg, len(severity)+2))
}

func (r reporter) detail(msg string) {
	msg = "  " + wrap(msg, 4)
	if r.colored {
		msg = detailStyle.Sprint(msg)
	}
	fmt.Fprintln(r.w, msg)
}

// wrap folds msg to ReportWidth, indenting continuation lines.
func wrap(msg string, indent int) string {
	wrapped := wordwrap.WrapString(msg, uint(ReportWidth-indent))
	return strings.ReplaceAll(wrapped, "\n", "\n"+strings.Repeat(" ", indent))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
