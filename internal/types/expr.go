package types

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

type exprKind int

const (
	kindConcrete exprKind = iota
	kindParam
	kindList
	kindMap
)

// Expr is a type expression: a concrete type, a generic parameter, or a
// list or map whose element type is itself an expression.
type Expr struct {
	kind     exprKind
	concrete cty.Type
	param    string
	elem     *Expr
}

// Concrete wraps a cty type. cty.DynamicPseudoType stands for `any`.
func Concrete(t cty.Type) Expr { return Expr{kind: kindConcrete, concrete: t} }

// Param is a generic parameter such as T.
func Param(name string) Expr { return Expr{kind: kindParam, param: name} }

// ListOf builds list(e).
func ListOf(e Expr) Expr {
	if e.kind == kindConcrete {
		return Concrete(cty.List(e.concrete))
	}
	return Expr{kind: kindList, elem: &e}
}

// MapOf builds map(e).
func MapOf(e Expr) Expr {
	if e.kind == kindConcrete {
		return Concrete(cty.Map(e.concrete))
	}
	return Expr{kind: kindMap, elem: &e}
}

// IsConcrete reports whether the expression mentions no generic parameter
// and is not `any`.
func (e Expr) IsConcrete() bool {
	return e.kind == kindConcrete && e.concrete != cty.DynamicPseudoType
}

// Type returns the concrete type of a parameter-free expression.
func (e Expr) Type() (cty.Type, bool) {
	if e.kind != kindConcrete {
		return cty.NilType, false
	}
	return e.concrete, true
}

// Params returns the generic parameters mentioned by e in order of appearance.
func (e Expr) Params() []string {
	switch e.kind {
	case kindParam:
		return []string{e.param}
	case kindList, kindMap:
		return e.elem.Params()
	}
	return nil
}

func (e Expr) String() string {
	switch e.kind {
	case kindParam:
		return e.param
	case kindList:
		return "list(" + e.elem.String() + ")"
	case kindMap:
		return "map(" + e.elem.String() + ")"
	}
	return TypeString(e.concrete)
}

// Equal is structural equality of two expressions.
func (e Expr) Equal(o Expr) bool {
	if e.kind != o.kind {
		return false
	}
	switch e.kind {
	case kindParam:
		return e.param == o.param
	case kindList, kindMap:
		return e.elem.Equal(*o.elem)
	}
	return e.concrete.Equals(o.concrete)
}

// TypeString renders a concrete type in the same syntax ParseExpr accepts.
func TypeString(t cty.Type) string {
	switch {
	case t == cty.DynamicPseudoType:
		return "any"
	case t == cty.Number:
		return "number"
	case t == cty.String:
		return "string"
	case t == cty.Bool:
		return "bool"
	case t.IsListType():
		return "list(" + TypeString(t.ElementType()) + ")"
	case t.IsMapType():
		return "map(" + TypeString(t.ElementType()) + ")"
	case t.IsSetType():
		return "set(" + TypeString(t.ElementType()) + ")"
	case t.IsCapsuleType():
		return t.FriendlyName()
	}
	return t.FriendlyName()
}

// Bindings maps generic parameter names to the concrete types bound to them.
type Bindings map[string]cty.Type

// bind unifies e with an actual input type, extending b. Dynamic actual types
// are accepted without binding anything; they are checked when values flow.
func (e Expr) bind(actual cty.Type, b Bindings) error {
	if actual == cty.DynamicPseudoType {
		return nil
	}
	switch e.kind {
	case kindConcrete:
		if e.concrete == cty.DynamicPseudoType || e.concrete.Equals(actual) {
			return nil
		}
		return fmt.Errorf("expected %s, got %s", TypeString(e.concrete), TypeString(actual))
	case kindParam:
		if prev, ok := b[e.param]; ok && prev != cty.DynamicPseudoType {
			if !prev.Equals(actual) {
				return fmt.Errorf("%s is bound to %s, got %s", e.param, TypeString(prev), TypeString(actual))
			}
			return nil
		}
		b[e.param] = actual
		return nil
	case kindList:
		if !actual.IsListType() {
			return fmt.Errorf("expected %s, got %s", e, TypeString(actual))
		}
		return e.elem.bind(actual.ElementType(), b)
	case kindMap:
		if !actual.IsMapType() {
			return fmt.Errorf("expected %s, got %s", e, TypeString(actual))
		}
		return e.elem.bind(actual.ElementType(), b)
	}
	return fmt.Errorf("invalid type expression")
}

// Substitute replaces parameters using b. Unbound parameters become `any`.
func (e Expr) Substitute(b Bindings) cty.Type {
	switch e.kind {
	case kindParam:
		if t, ok := b[e.param]; ok {
			return t
		}
		return cty.DynamicPseudoType
	case kindList:
		el := e.elem.Substitute(b)
		if el == cty.DynamicPseudoType {
			return cty.DynamicPseudoType
		}
		return cty.List(el)
	case kindMap:
		el := e.elem.Substitute(b)
		if el == cty.DynamicPseudoType {
			return cty.DynamicPseudoType
		}
		return cty.Map(el)
	}
	return e.concrete
}
