package compiler

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Error kinds. Every diagnostic unwraps to one of these.
var (
	ErrNoMain            = errors.New("main network not found")
	ErrRecursiveNetwork  = errors.New("recursive network")
	ErrArity             = errors.New("network input arity mismatch")
	ErrUnknownNetwork    = errors.New("unknown network")
	ErrUnknownNode       = errors.New("unknown node")
	ErrDanglingReference = errors.New("dangling reference")
	ErrCycle             = errors.New("cycle detected")
	ErrAmbiguous         = errors.New("ambiguous overload")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrUntypedInput      = errors.New("untyped network input")
	ErrExport            = errors.New("invalid export")
	ErrInternal          = errors.New("internal compiler error")
)

// Warning kinds.
var (
	WarnEliminated  = errors.New("node eliminated")
	WarnUnusedInput = errors.New("unused network input")
	WarnStub        = errors.New("unresolved node stub")
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is one finding of the compiler.
type Diagnostic struct {
	Severity Severity
	Kind     error
	// Path is the qualified path of the node, empty for network-level
	// findings.
	Path        string
	Network     string
	Detail      string
	Suggestions []string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	switch {
	case d.Path != "":
		fmt.Fprintf(&b, "node '%s': ", d.Path)
	case d.Network != "":
		fmt.Fprintf(&b, "network '%s': ", d.Network)
	}
	b.WriteString(d.Kind.Error())
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}
	if len(d.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(d.Suggestions, ", "))
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error { return d.Kind }

// Diagnostics is the ordered list of findings of one compilation.
type Diagnostics []*Diagnostic

// HasErrors reports whether any diagnostic is an error.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error diagnostics.
func (ds Diagnostics) Errors() Diagnostics { return ds.filter(SeverityError) }

// Warnings returns the warning diagnostics.
func (ds Diagnostics) Warnings() Diagnostics { return ds.filter(SeverityWarning) }

func (ds Diagnostics) filter(s Severity) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Error is returned by Compile when any error diagnostic was recorded.
type Error struct {
	Diagnostics Diagnostics
	err         error
}

func newError(ds Diagnostics) *Error {
	var err error
	for _, d := range ds.Errors() {
		err = multierr.Append(err, d)
	}
	return &Error{Diagnostics: ds.Errors(), err: err}
}

func (e *Error) Error() string {
	errs := multierr.Errors(e.err)
	if len(errs) == 1 {
		return "compilation failed: " + errs[0].Error()
	}
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("compilation failed with %d errors:\n- %s", len(errs), strings.Join(parts, "\n- "))
}

func (e *Error) Unwrap() error { return e.err }
