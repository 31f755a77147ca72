// Package core provides the structural nodes every document may rely on,
// including the stubs substituted for unknown identifiers when loading.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ErrStub is wrapped by every failure of core.error.
var ErrStub = errors.New("stub node evaluated")

// Register registers the core nodes.
func (m *Module) Register(b *registry.Builder) error {
	regs := []struct {
		id, sig string
		h       registry.Handler
		gpu     string
		doc     string
	}{
		{"core.identity", "(T) -> T", registry.Raw(identity), "${a}", "Returns its input unchanged."},
		{"core.passthrough", "(T) -> T", registry.Raw(identity), "${a}", "Forwards its first input. Used in place of unknown nodes."},
		{"core.error", "(string) -> any", registry.Func1(fail), "", "Fails with the given message. Used in place of unknown nodes."},
		{"core.select", "(bool, T, T) -> T", registry.Raw(choose), "select(${c}, ${b}, ${a})", "Returns the second input when the condition holds, otherwise the third."},
	}
	for _, r := range regs {
		opts := []registry.ImplOption{registry.WithDoc(r.doc)}
		if r.gpu != "" {
			opts = append(opts, registry.WithGPU(r.gpu))
		}
		if err := b.Register(r.id, r.sig, r.h, opts...); err != nil {
			return err
		}
	}
	return nil
}

func identity(_ context.Context, args []cty.Value, _ cty.Type) (cty.Value, error) {
	return args[0], nil
}

func fail(_ context.Context, msg string) (cty.Value, error) {
	return cty.NilVal, fmt.Errorf("%w: %s", ErrStub, msg)
}

func choose(_ context.Context, args []cty.Value, _ cty.Type) (cty.Value, error) {
	cond := args[0]
	if cond.IsNull() {
		return cty.NilVal, errors.New("condition is null")
	}
	if cond.True() {
		return args[1], nil
	}
	return args[2], nil
}
