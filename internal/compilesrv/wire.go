package compilesrv

import (
	"github.com/specialistvlad/graphcraft/internal/artifact"
)

// CompileRequest is the body of POST /v1/compile.
type CompileRequest struct {
	Source  string `json:"source" binding:"required"`
	Profile string `json:"profile,omitempty"`
}

// CompileResponse is the 200 body of POST /v1/compile. Artifact is
// base64 encoded by encoding/json.
type CompileResponse struct {
	Key         string           `json:"key"`
	Profile     string           `json:"profile"`
	Artifact    []byte           `json:"artifact"`
	CacheHit    bool             `json:"cache_hit"`
	Diagnostics []WireDiagnostic `json:"diagnostics"`
}

// ErrorResponse is the body of every non-200 reply.
type ErrorResponse struct {
	Error       string           `json:"error"`
	Code        string           `json:"code"`
	Diagnostics []WireDiagnostic `json:"diagnostics,omitempty"`
}

// WireDiagnostic is a diagnostic as sent over HTTP.
type WireDiagnostic struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
}

// Location is a 1-based source position.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Error codes carried in ErrorResponse.Code.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeDiagnostics = "COMPILE_FAILED"
	CodeTimeout     = "COMPILE_TIMEOUT"
	CodeInternal    = "INTERNAL"
)

// ToWire converts diagnostics for transport. The result is never nil.
func ToWire(ds []artifact.Diagnostic) []WireDiagnostic {
	out := make([]WireDiagnostic, 0, len(ds))
	for _, d := range ds {
		w := WireDiagnostic{Severity: d.Severity, Message: d.Message}
		if d.Line > 0 {
			w.Location = &Location{Line: d.Line, Column: d.Column}
		}
		out = append(out, w)
	}
	return out
}

// FromWire is the inverse of ToWire.
func FromWire(ws []WireDiagnostic) []artifact.Diagnostic {
	if len(ws) == 0 {
		return nil
	}
	out := make([]artifact.Diagnostic, 0, len(ws))
	for _, w := range ws {
		d := artifact.Diagnostic{Severity: w.Severity, Message: w.Message}
		if w.Location != nil {
			d.Line, d.Column = w.Location.Line, w.Location.Column
		}
		out = append(out, d)
	}
	return out
}

// KindFromCode maps an ErrorResponse code back to a Kind.
func KindFromCode(code string) Kind {
	switch code {
	case CodeBadRequest:
		return KindBadRequest
	case CodeDiagnostics:
		return KindDiagnostics
	case CodeTimeout:
		return KindTimeout
	}
	return KindInternal
}
