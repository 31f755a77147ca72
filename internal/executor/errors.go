package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrInputArity is returned when the number of external inputs does not
	// match the network.
	ErrInputArity = errors.New("wrong number of inputs")
	// ErrInputType is returned when an external input has the wrong type.
	ErrInputType = errors.New("input type mismatch")
	// ErrInternal marks a value that does not conform to the type resolved
	// by the compiler. It aborts the execution.
	ErrInternal = errors.New("internal consistency error")
)

// NodeError attributes a failure to the node it happened in.
type NodeError struct {
	Path       string
	Identifier string
	Err        error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node '%s' (%s): %v", e.Path, e.Identifier, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
