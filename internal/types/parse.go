package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// paramName is the shape of a generic parameter: a single upper-case letter
// optionally followed by digits, e.g. T or T2.
var paramName = regexp.MustCompile(`^[A-Z][0-9]*$`)

// ParseExpr parses a type expression such as `number`, `list(T)` or `image`.
func ParseExpr(src string) (Expr, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "type", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return Expr{}, fmt.Errorf("invalid type expression %q: %w", src, diags)
	}
	return FromHCL(expr)
}

// MustParseExpr is ParseExpr for package-level declarations.
func MustParseExpr(src string) Expr {
	e, err := ParseExpr(src)
	if err != nil {
		panic(err)
	}
	return e
}

// FromHCL converts an HCL type expression into an Expr.
func FromHCL(expr hcl.Expression) (Expr, error) {
	if expr == nil {
		return Concrete(cty.DynamicPseudoType), nil
	}

	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		if len(v.Args) != 1 {
			return Expr{}, fmt.Errorf("type constructors (list, map, set) require exactly one argument, got %d", len(v.Args))
		}
		elem, err := FromHCL(v.Args[0])
		if err != nil {
			return Expr{}, err
		}
		if t, ok := elem.Type(); ok && t == cty.DynamicPseudoType {
			return Expr{}, fmt.Errorf("collection types cannot contain type 'any'")
		}

		switch v.Name {
		case "list":
			return ListOf(elem), nil
		case "map":
			return MapOf(elem), nil
		case "set":
			t, ok := elem.Type()
			if !ok {
				return Expr{}, fmt.Errorf("set element type must be concrete")
			}
			return Concrete(cty.Set(t)), nil
		default:
			return Expr{}, fmt.Errorf("unknown type constructor function %q", v.Name)
		}

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return Expr{}, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		rootName := v.Traversal.RootName()
		switch rootName {
		case "string":
			return Concrete(cty.String), nil
		case "number":
			return Concrete(cty.Number), nil
		case "bool":
			return Concrete(cty.Bool), nil
		case "any":
			return Concrete(cty.DynamicPseudoType), nil
		case "image":
			return Concrete(Image), nil
		}
		if paramName.MatchString(rootName) {
			return Param(rootName), nil
		}
		return Expr{}, fmt.Errorf("unknown primitive type %q", rootName)

	default:
		return Expr{}, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

// ParseType parses a type expression that must not mention parameters.
func ParseType(src string) (cty.Type, error) {
	e, err := ParseExpr(src)
	if err != nil {
		return cty.NilType, err
	}
	t, ok := e.Type()
	if !ok {
		return cty.NilType, fmt.Errorf("type %q must not use generic parameters", src)
	}
	return t, nil
}

// ParseSignature parses `(in, in, ...) -> out`. An empty input list is `() -> out`.
func ParseSignature(src string) (Signature, error) {
	lhs, rhs, ok := strings.Cut(src, "->")
	if !ok {
		return Signature{}, fmt.Errorf("signature %q: missing '->'", src)
	}
	lhs = strings.TrimSpace(lhs)
	if !strings.HasPrefix(lhs, "(") || !strings.HasSuffix(lhs, ")") {
		return Signature{}, fmt.Errorf("signature %q: inputs must be parenthesized", src)
	}

	var sig Signature
	for _, part := range splitTopLevel(lhs[1 : len(lhs)-1]) {
		in, err := ParseExpr(part)
		if err != nil {
			return Signature{}, fmt.Errorf("signature %q: %w", src, err)
		}
		sig.Inputs = append(sig.Inputs, in)
	}
	out, err := ParseExpr(strings.TrimSpace(rhs))
	if err != nil {
		return Signature{}, fmt.Errorf("signature %q: %w", src, err)
	}
	sig.Output = out

	if err := sig.validate(); err != nil {
		return Signature{}, fmt.Errorf("signature %q: %w", src, err)
	}
	return sig, nil
}

// MustParseSignature is ParseSignature for package-level declarations.
func MustParseSignature(src string) Signature {
	sig, err := ParseSignature(src)
	if err != nil {
		panic(err)
	}
	return sig
}

// splitTopLevel splits on commas that are not nested inside parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(parts) > 0 {
		parts = append(parts, last)
	}
	return parts
}
