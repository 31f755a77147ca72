package compilesrv

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/graphcraft/internal/artifact"
)

// Kind classifies a compilation failure.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindDiagnostics
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindDiagnostics:
		return "diagnostics"
	case KindTimeout:
		return "timeout"
	}
	return "internal"
}

// Sentinels matched by *CompileError of the corresponding kind.
var (
	ErrBadRequest  = errors.New("bad compile request")
	ErrDiagnostics = errors.New("shader rejected by compiler")
	ErrTimeout     = errors.New("compilation timed out")
	ErrInternal    = errors.New("compilation service failure")
)

// CompileError is returned by Service.Compile and, after a round trip, by
// the HTTP client.
type CompileError struct {
	Kind        Kind
	Message     string
	Diagnostics []artifact.Diagnostic
	Err         error
}

func (e *CompileError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("compile %s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("compile %s: %s (%d diagnostics, first: %s)", e.Kind, msg, len(e.Diagnostics), e.Diagnostics[0])
}

func (e *CompileError) Unwrap() error { return e.Err }

func (e *CompileError) Is(target error) bool {
	switch e.Kind {
	case KindBadRequest:
		return target == ErrBadRequest
	case KindDiagnostics:
		return target == ErrDiagnostics
	case KindTimeout:
		return target == ErrTimeout
	}
	return target == ErrInternal
}
