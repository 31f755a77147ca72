package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestParseExpr(t *testing.T) {
	testCases := []struct {
		src      string
		want     string
		concrete bool
		wantErr  string
	}{
		{src: "number", want: "number", concrete: true},
		{src: "string", want: "string", concrete: true},
		{src: "bool", want: "bool", concrete: true},
		{src: "any", want: "any"},
		{src: "image", want: "image", concrete: true},
		{src: "list(number)", want: "list(number)", concrete: true},
		{src: "map(string)", want: "map(string)", concrete: true},
		{src: "set(bool)", want: "set(bool)", concrete: true},
		{src: "T", want: "T"},
		{src: "list(T)", want: "list(T)"},
		{src: "map(list(T2))", want: "map(list(T2))"},
		{src: "list(any)", wantErr: "cannot contain type 'any'"},
		{src: "tuple(number)", wantErr: "unknown type constructor"},
		{src: "Foo", wantErr: "unknown primitive type"},
		{src: "list(number, string)", wantErr: "exactly one argument"},
		{src: "5", wantErr: "unsupported expression"},
		{src: "list(", wantErr: "invalid type expression"},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			e, err := ParseExpr(tc.src)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, e.String())
			assert.Equal(t, tc.concrete, e.IsConcrete())
		})
	}
}

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature("(list(T), T) -> list(T)")
	require.NoError(t, err)
	assert.Equal(t, 2, sig.Arity())
	assert.Equal(t, "(list(T), T) -> list(T)", sig.String())
	assert.Equal(t, 0, sig.Specificity())

	empty, err := ParseSignature("() -> number")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Arity())

	_, err = ParseSignature("(number) -> T")
	assert.ErrorContains(t, err, "does not appear in any input")

	_, err = ParseSignature("number -> number")
	assert.ErrorContains(t, err, "parenthesized")

	_, err = ParseSignature("(number)")
	assert.ErrorContains(t, err, "missing '->'")
}

func TestParseType(t *testing.T) {
	ty, err := ParseType("list(number)")
	require.NoError(t, err)
	assert.True(t, ty.Equals(cty.List(cty.Number)))

	_, err = ParseType("list(T)")
	assert.ErrorContains(t, err, "generic parameters")
}
