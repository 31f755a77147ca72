package nodeid

import (
	"fmt"
	"strings"
)

// String serializes the Address into its canonical path string representation.
func (a *Address) String() string {
	if a == nil {
		return ""
	}

	var sb strings.Builder
	for i, segment := range a.Path {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		if segment.HasIndex() {
			sb.WriteString(fmt.Sprintf("[%d]", segment.Index))
		}
	}

	return sb.String()
}

// Child returns a new address one level below a. The receiver is not modified.
func (a *Address) Child(name string) *Address {
	var path []PathSegment
	if a != nil {
		path = make([]PathSegment, 0, len(a.Path)+1)
		path = append(path, a.Path...)
	}
	return &Address{Path: append(path, NewPathSegment(name))}
}
