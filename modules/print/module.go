// Package print provides debug.print, which logs the value flowing through
// it and forwards it unchanged.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives one line per printed value. Defaults to os.Stdout.
	Out io.Writer

	mu sync.Mutex
}

// Register registers debug.print.
func (m *Module) Register(b *registry.Builder) error {
	return b.Register("debug.print", "(T) -> T", registry.Raw(m.onRunPrint),
		registry.Impure(), registry.WithDoc("Prints its input and returns it unchanged."))
}

func (m *Module) onRunPrint(ctx context.Context, args []cty.Value, _ cty.Type) (cty.Value, error) {
	v := args[0]
	text := types.Display(v)
	ctxlog.FromContext(ctx).Info("Printing input", "type", types.TypeString(v.Type()))

	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := fmt.Fprintf(out, "      %s\n", text); err != nil {
		return cty.NilVal, err
	}
	return v, nil
}
