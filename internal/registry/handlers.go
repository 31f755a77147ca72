package registry

import (
	"context"
	"fmt"
	"reflect"

	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
)

// NodeFunc is the type-erased form of every node implementation. out is the
// resolved output type of the node being evaluated.
type NodeFunc func(ctx context.Context, args []cty.Value, out cty.Type) (cty.Value, error)

// Handler carries a NodeFunc and, for typed adapters, the Go types of its
// arguments and result so that Build can check them against the signature.
type Handler struct {
	Fn  NodeFunc
	in  []reflect.Type
	out reflect.Type
}

// Raw wraps a type-erased function. No Go-side type information is checked.
func Raw(fn NodeFunc) Handler { return Handler{Fn: fn} }

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func arity(args []cty.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func decodeArg[T any](args []cty.Value, i int) (T, error) {
	var v T
	if err := types.FromValue(args[i], &v); err != nil {
		return v, fmt.Errorf("input %d: %w", i, err)
	}
	return v, nil
}

func encode[R any](r R, out cty.Type) (cty.Value, error) {
	return types.ToValue(r, out)
}

// Func0 adapts a function without inputs.
func Func0[R any](fn func(context.Context) (R, error)) Handler {
	return Handler{
		Fn: func(ctx context.Context, args []cty.Value, out cty.Type) (cty.Value, error) {
			if err := arity(args, 0); err != nil {
				return cty.NilVal, err
			}
			r, err := fn(ctx)
			if err != nil {
				return cty.NilVal, err
			}
			return encode(r, out)
		},
		in:  []reflect.Type{},
		out: typeOf[R](),
	}
}

// Func1 adapts a function of one input.
func Func1[A, R any](fn func(context.Context, A) (R, error)) Handler {
	return Handler{
		Fn: func(ctx context.Context, args []cty.Value, out cty.Type) (cty.Value, error) {
			if err := arity(args, 1); err != nil {
				return cty.NilVal, err
			}
			a, err := decodeArg[A](args, 0)
			if err != nil {
				return cty.NilVal, err
			}
			r, err := fn(ctx, a)
			if err != nil {
				return cty.NilVal, err
			}
			return encode(r, out)
		},
		in:  []reflect.Type{typeOf[A]()},
		out: typeOf[R](),
	}
}

// Func2 adapts a function of two inputs.
func Func2[A, B, R any](fn func(context.Context, A, B) (R, error)) Handler {
	return Handler{
		Fn: func(ctx context.Context, args []cty.Value, out cty.Type) (cty.Value, error) {
			if err := arity(args, 2); err != nil {
				return cty.NilVal, err
			}
			a, err := decodeArg[A](args, 0)
			if err != nil {
				return cty.NilVal, err
			}
			b, err := decodeArg[B](args, 1)
			if err != nil {
				return cty.NilVal, err
			}
			r, err := fn(ctx, a, b)
			if err != nil {
				return cty.NilVal, err
			}
			return encode(r, out)
		},
		in:  []reflect.Type{typeOf[A](), typeOf[B]()},
		out: typeOf[R](),
	}
}

// Func3 adapts a function of three inputs.
func Func3[A, B, C, R any](fn func(context.Context, A, B, C) (R, error)) Handler {
	return Handler{
		Fn: func(ctx context.Context, args []cty.Value, out cty.Type) (cty.Value, error) {
			if err := arity(args, 3); err != nil {
				return cty.NilVal, err
			}
			a, err := decodeArg[A](args, 0)
			if err != nil {
				return cty.NilVal, err
			}
			b, err := decodeArg[B](args, 1)
			if err != nil {
				return cty.NilVal, err
			}
			c, err := decodeArg[C](args, 2)
			if err != nil {
				return cty.NilVal, err
			}
			r, err := fn(ctx, a, b, c)
			if err != nil {
				return cty.NilVal, err
			}
			return encode(r, out)
		},
		in:  []reflect.Type{typeOf[A](), typeOf[B](), typeOf[C]()},
		out: typeOf[R](),
	}
}

// Pure1 adapts a context-free, infallible function of one input. Most math
// nodes are written this way.
func Pure1[A, R any](fn func(A) R) Handler {
	return Func1(func(_ context.Context, a A) (R, error) { return fn(a), nil })
}

// Pure2 is Pure1 for two inputs.
func Pure2[A, B, R any](fn func(A, B) R) Handler {
	return Func2(func(_ context.Context, a A, b B) (R, error) { return fn(a, b), nil })
}
