package hcldoc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// constFuncs are available in constant expressions.
var constFuncs = map[string]function.Function{
	"abs":    stdlib.AbsoluteFunc,
	"ceil":   stdlib.CeilFunc,
	"floor":  stdlib.FloorFunc,
	"format": stdlib.FormatFunc,
	"lower":  stdlib.LowerFunc,
	"max":    stdlib.MaxFunc,
	"min":    stdlib.MinFunc,
	"upper":  stdlib.UpperFunc,
}

// isExprDefined checks if an HCL expression was actually present in the source.
// The decoder fills omitted optional attributes with zero-width placeholder
// expressions, so a nil check is insufficient.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	defined := r.End.Byte > r.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName, "hcl_range", r.String(), "is_defined", defined)
	return defined
}

// translateRef converts one argument expression into a NodeInput.
func translateRef(n *graph.NodeNetwork, expr hcl.Expression) (graph.NodeInput, error) {
	if trav, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		switch trav.RootName() {
		case "node":
			return nodeRef(trav, expr.Range())
		case "input":
			if len(trav) != 2 {
				return graph.NodeInput{}, fmt.Errorf("%s: input references have the form input.<name>", expr.Range())
			}
			attr, ok := trav[1].(hcl.TraverseAttr)
			if !ok {
				return graph.NodeInput{}, fmt.Errorf("%s: input references have the form input.<name>", expr.Range())
			}
			idx, ok := n.InputIndex(attr.Name)
			if !ok {
				return graph.NodeInput{}, fmt.Errorf("%s: network '%s' has no input '%s'", expr.Range(), n.Name, attr.Name)
			}
			return graph.NetworkInput(idx), nil
		}
	}

	v, err := evalConst(expr)
	if err != nil {
		return graph.NodeInput{}, err
	}
	return graph.Value(v), nil
}

func nodeRef(trav hcl.Traversal, rng hcl.Range) (graph.NodeInput, error) {
	if len(trav) < 2 || len(trav) > 3 {
		return graph.NodeInput{}, fmt.Errorf("%s: node references have the form node.<id> or node.<id>[k]", rng)
	}
	attr, ok := trav[1].(hcl.TraverseAttr)
	if !ok {
		return graph.NodeInput{}, fmt.Errorf("%s: node references have the form node.<id>", rng)
	}
	if len(trav) == 2 {
		return graph.Ref(graph.NodeID(attr.Name)), nil
	}
	idx, ok := trav[2].(hcl.TraverseIndex)
	if !ok || idx.Key.Type() != cty.Number {
		return graph.NodeInput{}, fmt.Errorf("%s: output index must be a number", rng)
	}
	bf := idx.Key.AsBigFloat()
	out, acc := bf.Int64()
	if acc != big.Exact || out < 0 {
		return graph.NodeInput{}, fmt.Errorf("%s: output index must be a non-negative integer", rng)
	}
	return graph.RefOutput(graph.NodeID(attr.Name), int(out)), nil
}

// evalConst evaluates expr without variables. Tuples and objects are
// normalized to lists and maps when their elements share a type.
func evalConst(expr hcl.Expression) (cty.Value, error) {
	v, diags := expr.Value(&hcl.EvalContext{Functions: constFuncs})
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("invalid constant: %w", diags)
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, fmt.Errorf("%s: constant is not known at load time", expr.Range())
	}
	return normalize(v), nil
}

func normalize(v cty.Value) cty.Value {
	ty := v.Type()
	switch {
	case ty.IsTupleType() && v.LengthInt() > 0:
		if list, err := convert.Convert(v, cty.List(cty.DynamicPseudoType)); err == nil {
			return list
		}
	case ty.IsObjectType() && v.LengthInt() > 0:
		if m, err := convert.Convert(v, cty.Map(cty.DynamicPseudoType)); err == nil {
			return m
		}
	}
	return v
}

// ParseValue parses and evaluates a constant expression from src.
func ParseValue(src []byte, filename string) (cty.Value, error) {
	expr, diags := hclsyntax.ParseExpression(src, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("invalid expression: %w", diags)
	}
	return evalConst(expr)
}
