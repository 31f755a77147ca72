package types

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Signature describes the input slots and output of one node implementation.
type Signature struct {
	Inputs []Expr
	Output Expr
}

// NewSignature builds a signature from already parsed expressions.
func NewSignature(output Expr, inputs ...Expr) Signature {
	return Signature{Inputs: inputs, Output: output}
}

func (s Signature) String() string {
	parts := make([]string, len(s.Inputs))
	for i, in := range s.Inputs {
		parts[i] = in.String()
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + s.Output.String()
}

// Arity is the number of input slots.
func (s Signature) Arity() int { return len(s.Inputs) }

// Equal reports whether s and o accept and produce the same types.
// Generic parameters compare up to a consistent renaming, so (T) -> T
// equals (U) -> U but (T, U) -> T does not equal (T, T) -> T.
func (s Signature) Equal(o Signature) bool {
	if len(s.Inputs) != len(o.Inputs) {
		return false
	}
	r := renaming{fwd: make(map[string]string), back: make(map[string]string)}
	for i := range s.Inputs {
		if !r.equal(s.Inputs[i], o.Inputs[i]) {
			return false
		}
	}
	return r.equal(s.Output, o.Output)
}

// renaming is a one-to-one mapping between the parameters of two signatures.
type renaming struct {
	fwd, back map[string]string
}

func (r renaming) equal(a, b Expr) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case kindParam:
		if to, ok := r.fwd[a.param]; ok {
			return to == b.param
		}
		if _, taken := r.back[b.param]; taken {
			return false
		}
		r.fwd[a.param] = b.param
		r.back[b.param] = a.param
		return true
	case kindList, kindMap:
		return r.equal(*a.elem, *b.elem)
	}
	return a.concrete.Equals(b.concrete)
}

// Specificity counts the input slots with a fully concrete declared type.
// Between two matching overloads the higher score is the better fit.
func (s Signature) Specificity() int {
	n := 0
	for _, in := range s.Inputs {
		if in.IsConcrete() {
			n++
		}
	}
	return n
}

func (s Signature) validate() error {
	declared := make(map[string]bool)
	for _, in := range s.Inputs {
		for _, p := range in.Params() {
			declared[p] = true
		}
	}
	for _, p := range s.Output.Params() {
		if !declared[p] {
			return fmt.Errorf("output parameter %s does not appear in any input", p)
		}
	}
	return nil
}

// Resolved is a signature with every parameter substituted.
type Resolved struct {
	Inputs   []cty.Type
	Output   cty.Type
	Bindings Bindings
}

// MatchError explains why a signature rejected the actual input types.
type MatchError struct {
	Signature Signature
	Slot      int
	Reason    string
}

func (e *MatchError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("%s: %s", e.Signature, e.Reason)
	}
	return fmt.Sprintf("%s: input %d: %s", e.Signature, e.Slot, e.Reason)
}

// Match unifies s against the actual input types.
func (s Signature) Match(actual []cty.Type) (*Resolved, error) {
	if len(actual) != len(s.Inputs) {
		return nil, &MatchError{Signature: s, Slot: -1, Reason: fmt.Sprintf("expects %d inputs, got %d", len(s.Inputs), len(actual))}
	}
	b := make(Bindings)
	for i, in := range s.Inputs {
		if err := in.bind(actual[i], b); err != nil {
			return nil, &MatchError{Signature: s, Slot: i, Reason: err.Error()}
		}
	}
	r := &Resolved{Inputs: make([]cty.Type, len(s.Inputs)), Output: s.Output.Substitute(b), Bindings: b}
	for i, in := range s.Inputs {
		r.Inputs[i] = in.Substitute(b)
	}
	return r, nil
}
