// Package math provides numeric nodes. Scalar overloads carry WGSL templates
// so that graphs built from them can run on the GPU; list overloads apply
// the same operation element-wise.
package math

import (
	"context"
	"errors"
	"fmt"
	gomath "math"

	"github.com/specialistvlad/graphcraft/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ErrDomain is returned when an operation is undefined for its inputs.
var ErrDomain = errors.New("argument out of domain")

type binary struct {
	id  string
	fn  func(a, b float64) (float64, error)
	gpu string
}

type unary struct {
	id  string
	fn  func(a float64) (float64, error)
	gpu string
}

var binaries = []binary{
	{"math.add", func(a, b float64) (float64, error) { return a + b, nil }, "${a} + ${b}"},
	{"math.sub", func(a, b float64) (float64, error) { return a - b, nil }, "${a} - ${b}"},
	{"math.mul", func(a, b float64) (float64, error) { return a * b, nil }, "${a} * ${b}"},
	{"math.div", div, "${a} / ${b}"},
	{"math.min", func(a, b float64) (float64, error) { return gomath.Min(a, b), nil }, "min(${a}, ${b})"},
	{"math.max", func(a, b float64) (float64, error) { return gomath.Max(a, b), nil }, "max(${a}, ${b})"},
}

var unaries = []unary{
	{"math.const", func(a float64) (float64, error) { return a, nil }, "${a}"},
	{"math.neg", func(a float64) (float64, error) { return -a, nil }, "-(${a})"},
	{"math.sqrt", sqrt, "sqrt(${a})"},
	{"math.sin", func(a float64) (float64, error) { return gomath.Sin(a), nil }, "sin(${a})"},
	{"math.cos", func(a float64) (float64, error) { return gomath.Cos(a), nil }, "cos(${a})"},
}

// Register registers the scalar and list overloads of every operation.
func (m *Module) Register(b *registry.Builder) error {
	for _, op := range binaries {
		fn := op.fn
		if err := b.Register(op.id, "(number, number) -> number",
			registry.Func2(func(_ context.Context, x, y float64) (float64, error) { return fn(x, y) }),
			registry.WithGPU(op.gpu)); err != nil {
			return err
		}
		if err := b.Register(op.id, "(list(number), list(number)) -> list(number)",
			registry.Func2(func(_ context.Context, x, y []float64) ([]float64, error) { return zip(x, y, fn) })); err != nil {
			return err
		}
	}
	for _, op := range unaries {
		fn := op.fn
		if err := b.Register(op.id, "(number) -> number",
			registry.Func1(func(_ context.Context, x float64) (float64, error) { return fn(x) }),
			registry.WithGPU(op.gpu)); err != nil {
			return err
		}
		if op.id == "math.const" {
			continue
		}
		if err := b.Register(op.id, "(list(number)) -> list(number)",
			registry.Func1(func(_ context.Context, x []float64) ([]float64, error) { return each(x, fn) })); err != nil {
			return err
		}
	}
	return nil
}

func div(a, b float64) (float64, error) {
	if b == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrDomain)
	}
	return a / b, nil
}

func sqrt(a float64) (float64, error) {
	if a < 0 {
		return 0, fmt.Errorf("%w: square root of %g", ErrDomain, a)
	}
	return gomath.Sqrt(a), nil
}

func zip(x, y []float64, fn func(a, b float64) (float64, error)) ([]float64, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("list lengths differ: %d and %d", len(x), len(y))
	}
	out := make([]float64, len(x))
	for i := range x {
		v, err := fn(x[i], y[i])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func each(x []float64, fn func(a float64) (float64, error)) ([]float64, error) {
	out := make([]float64, len(x))
	for i := range x {
		v, err := fn(x[i])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
