package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func add(a, b float64) float64 { return a + b }

func TestBuilder_Register(t *testing.T) {
	t.Run("overloads with different signatures", func(t *testing.T) {
		b := NewBuilder(nil)
		require.NoError(t, b.Register("math.add", "(number, number) -> number", Pure2(add), WithGPU("${a} + ${b}")))
		require.NoError(t, b.Register("math.add", "(string, string) -> string", Pure2(func(a, b string) string { return a + b })))

		reg, err := b.Build()
		require.NoError(t, err)

		def, ok := reg.Lookup("math.add")
		require.True(t, ok)
		impls := def.Implementations()
		require.Len(t, impls, 2)
		assert.Equal(t, "(number, number) -> number", impls[0].Signature.String())
		assert.True(t, impls[0].HasGPU())
		assert.True(t, impls[0].Pure)
		assert.False(t, impls[1].HasGPU())
		assert.Equal(t, "math.add (string, string) -> string", impls[1].Key())
	})

	t.Run("identical signature is a duplicate", func(t *testing.T) {
		b := NewBuilder(nil)
		require.NoError(t, b.Register("math.add", "(number, number) -> number", Pure2(add)))
		err := b.Register("math.add", "(number, number) -> number", Pure2(add))

		var dupErr *DuplicateError
		require.ErrorAs(t, err, &dupErr)
		assert.ErrorIs(t, err, ErrDuplicateID)
		assert.Equal(t, "math.add", dupErr.Identifier)
	})

	t.Run("renamed generic signature is a duplicate", func(t *testing.T) {
		b := NewBuilder(nil)
		echo := Raw(func(_ context.Context, args []cty.Value, _ cty.Type) (cty.Value, error) { return args[0], nil })
		require.NoError(t, b.Register("core.identity", "(T) -> T", echo))
		err := b.Register("core.identity", "(U) -> U", echo)

		var dupErr *DuplicateError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "(U) -> U", dupErr.Signature)

		require.NoError(t, b.Register("core.identity", "(T, U) -> T", echo), "a different shape is a new overload")
	})

	t.Run("invalid identifier", func(t *testing.T) {
		b := NewBuilder(nil)
		for _, id := range []string{"", "Math.add", "math..add", "math.", "1math"} {
			err := b.Register(id, "() -> number", Raw(func(context.Context, []cty.Value, cty.Type) (cty.Value, error) {
				return cty.NumberIntVal(1), nil
			}))
			assert.ErrorIs(t, err, ErrInvalidIdentifier, id)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		b := NewBuilder(nil)
		err := b.Register("x.y", "(numbr) -> number", Pure1(func(a float64) float64 { return a }))
		assert.ErrorContains(t, err, "unknown primitive type")
	})

	t.Run("impure option", func(t *testing.T) {
		b := NewBuilder(nil)
		require.NoError(t, b.Register("env.get", "(string) -> string", Pure1(func(s string) string { return s }), Impure(), WithDoc("reads")))
		reg, err := b.Build()
		require.NoError(t, err)
		def, _ := reg.Lookup("env.get")
		assert.False(t, def.Implementations()[0].Pure)
		assert.Equal(t, "reads", def.Implementations()[0].Doc)
	})

	t.Run("register after build panics", func(t *testing.T) {
		b := NewBuilder(nil)
		_, err := b.Build()
		require.NoError(t, err)
		assert.Panics(t, func() { _ = b.Register("a.b", "() -> number", Pure1(func(a float64) float64 { return a })) })
	})
}

func TestBuild_ParityCheck(t *testing.T) {
	t.Run("go types must match declared types", func(t *testing.T) {
		b := NewBuilder(nil)
		require.NoError(t, b.Register("bad.node", "(number) -> string", Pure1(func(a float64) float64 { return a })))
		_, err := b.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node 'bad.node' output: type mismatch. Signature requires 'string' but Go handler provides 'number'")
	})

	t.Run("generic slots need cty.Value", func(t *testing.T) {
		b := NewBuilder(nil)
		require.NoError(t, b.Register("bad.generic", "(T) -> T", Pure1(func(a float64) float64 { return a })))
		_, err := b.Build()
		assert.ErrorContains(t, err, "needs a cty.Value handler argument")
	})

	t.Run("generic slots with cty.Value pass", func(t *testing.T) {
		b := NewBuilder(nil)
		require.NoError(t, b.Register("core.identity", "(T) -> T", Pure1(func(v cty.Value) cty.Value { return v })))
		_, err := b.Build()
		assert.NoError(t, err)
	})

	t.Run("arity mismatch", func(t *testing.T) {
		b := NewBuilder(nil)
		require.NoError(t, b.Register("bad.arity", "(number) -> number", Pure2(add)))
		_, err := b.Build()
		assert.ErrorContains(t, err, "Go handler takes 2 inputs")
	})
}

func TestHandlers_Call(t *testing.T) {
	h := Pure2(add)
	out, err := h.Fn(context.Background(), []cty.Value{cty.NumberIntVal(5), cty.NumberIntVal(3)}, cty.Number)
	require.NoError(t, err)
	assert.True(t, out.Equals(cty.NumberIntVal(8)).True())

	_, err = h.Fn(context.Background(), []cty.Value{cty.NumberIntVal(5)}, cty.Number)
	assert.ErrorContains(t, err, "expected 2 arguments, got 1")

	_, err = h.Fn(context.Background(), []cty.Value{cty.StringVal("x"), cty.NumberIntVal(3)}, cty.Number)
	assert.ErrorContains(t, err, "input 0")
}

func TestRegistry_Suggest(t *testing.T) {
	b := NewBuilder(nil)
	for _, id := range []string{"math.add", "math.sub", "math.mul", "text.upper"} {
		require.NoError(t, b.Register(id, "(number, number) -> number", Pure2(add)))
	}
	reg, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "math.add", reg.Suggest("math.ad")[0])
	assert.Contains(t, reg.Suggest("maths.upper"), "text.upper")
	assert.Empty(t, reg.Suggest("completely.unrelated.thing"))
	assert.Equal(t, []string{"math.add", "math.mul", "math.sub", "text.upper"}, reg.Identifiers())
}
