package shadergen

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUncompilable is matched by every *UncompilableError.
var ErrUncompilable = errors.New("network cannot run on the GPU")

// Offender is one reason a network cannot be lowered.
type Offender struct {
	// Path is the qualified node path, or "$<index> <name>" for a network input.
	Path       string
	Identifier string
	Reason     string
}

func (o Offender) String() string {
	if o.Identifier == "" {
		return fmt.Sprintf("%s: %s", o.Path, o.Reason)
	}
	return fmt.Sprintf("node '%s' (%s): %s", o.Path, o.Identifier, o.Reason)
}

// UncompilableError lists every node that prevented code generation.
type UncompilableError struct {
	Offenders []Offender
}

func (e *UncompilableError) Error() string {
	parts := make([]string, len(e.Offenders))
	for i, o := range e.Offenders {
		parts[i] = o.String()
	}
	return fmt.Sprintf("%s: %s", ErrUncompilable, strings.Join(parts, "; "))
}

func (e *UncompilableError) Is(target error) bool { return target == ErrUncompilable }
