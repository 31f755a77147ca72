// Package artifact holds compiled shader binaries and the caches that keep
// them: an in-memory map in front of an optional persistent store.
package artifact

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/graphcraft/internal/types"
)

// ErrNotFound is returned by stores for unknown keys.
var ErrNotFound = errors.New("artifact not found")

// Key is the cache key of a compilation: the digest of the source and the
// profile it was compiled with.
func Key(source, profile string) types.Digest {
	return types.NewHasher().Str("artifact/v1").Str(source).Str(profile).Sum()
}

// Diagnostic is one compiler message. Line and Column are 1-based; zero
// means unknown.
type Diagnostic struct {
	Severity string `msgpack:"severity" json:"severity"`
	Message  string `msgpack:"message" json:"message"`
	Line     int    `msgpack:"line" json:"line,omitempty"`
	Column   int    `msgpack:"column" json:"column,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
}

// Artifact is an immutable compilation result.
type Artifact struct {
	Key     types.Digest `msgpack:"key"`
	Profile string       `msgpack:"profile"`
	Binary  []byte       `msgpack:"binary"`
	// Diagnostics holds the warnings of a successful compilation.
	Diagnostics []Diagnostic `msgpack:"diagnostics"`
	CompiledAt  time.Time    `msgpack:"compiled_at"`
}
