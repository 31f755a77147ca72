package registry

import (
	"errors"
	"fmt"
)

// ErrDuplicateID is matched by every *DuplicateError.
var ErrDuplicateID = errors.New("duplicate registration")

// ErrInvalidIdentifier is returned for malformed identifiers.
var ErrInvalidIdentifier = errors.New("invalid node identifier")

// DuplicateError is returned when an identifier is registered twice with the
// same signature.
type DuplicateError struct {
	Identifier string
	Signature  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("node '%s' with signature %s is already registered", e.Identifier, e.Signature)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateID }
