package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestSignature_Match(t *testing.T) {
	testCases := []struct {
		name    string
		sig     string
		actual  []cty.Type
		wantOut cty.Type
		wantErr string
	}{
		{
			name:    "concrete",
			sig:     "(number, number) -> number",
			actual:  []cty.Type{cty.Number, cty.Number},
			wantOut: cty.Number,
		},
		{
			name:    "generic binds",
			sig:     "(T, T) -> list(T)",
			actual:  []cty.Type{cty.String, cty.String},
			wantOut: cty.List(cty.String),
		},
		{
			name:    "generic through list",
			sig:     "(list(T)) -> T",
			actual:  []cty.Type{cty.List(cty.Bool)},
			wantOut: cty.Bool,
		},
		{
			name:    "inconsistent binding",
			sig:     "(T, T) -> T",
			actual:  []cty.Type{cty.String, cty.Number},
			wantErr: "T is bound to string, got number",
		},
		{
			name:    "concrete mismatch",
			sig:     "(number) -> number",
			actual:  []cty.Type{cty.String},
			wantErr: "input 0: expected number, got string",
		},
		{
			name:    "arity mismatch",
			sig:     "(number) -> number",
			actual:  []cty.Type{cty.Number, cty.Number},
			wantErr: "expects 1 inputs, got 2",
		},
		{
			name:    "any accepts everything",
			sig:     "(any) -> string",
			actual:  []cty.Type{cty.List(cty.Number)},
			wantOut: cty.String,
		},
		{
			name:    "dynamic actual leaves parameter open",
			sig:     "(T) -> T",
			actual:  []cty.Type{cty.DynamicPseudoType},
			wantOut: cty.DynamicPseudoType,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sig := MustParseSignature(tc.sig)
			r, err := sig.Match(tc.actual)
			if tc.wantErr != "" {
				var matchErr *MatchError
				require.ErrorAs(t, err, &matchErr)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, r.Output.Equals(tc.wantOut), "got %s", TypeString(r.Output))
			require.Len(t, r.Inputs, len(tc.actual))
		})
	}
}

func TestSignature_EqualAndSpecificity(t *testing.T) {
	a := MustParseSignature("(number, T) -> T")
	assert.True(t, a.Equal(MustParseSignature("(number, T) -> T")))
	assert.True(t, a.Equal(MustParseSignature("(number, U) -> U")), "parameter names do not matter")
	assert.False(t, a.Equal(MustParseSignature("(number, T) -> number")))
	assert.False(t, a.Equal(MustParseSignature("(string, T) -> T")))

	pair := MustParseSignature("(T, U) -> list(T)")
	assert.True(t, pair.Equal(MustParseSignature("(U, T) -> list(U)")))
	assert.False(t, pair.Equal(MustParseSignature("(T, T) -> list(T)")), "two parameters cannot collapse into one")
	assert.False(t, MustParseSignature("(T, T) -> T").Equal(MustParseSignature("(T, U) -> T")))
	assert.False(t, pair.Equal(MustParseSignature("(T, U) -> list(U)")))
	assert.Equal(t, 1, a.Specificity())
	assert.Equal(t, 2, MustParseSignature("(number, string) -> bool").Specificity())
	assert.Equal(t, 0, MustParseSignature("(any) -> any").Specificity())
}
