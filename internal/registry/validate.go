package registry

import (
	"fmt"
	"image"
	"reflect"
	"sort"

	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	"go.uber.org/multierr"
)

var (
	ctyValueType = reflect.TypeOf(cty.Value{})
	imagePtrType = reflect.TypeOf((*image.RGBA)(nil))
)

// validate performs a parity check between each declared signature and the
// Go types of its typed handler.
func (b *Builder) validate() error {
	ids := make([]string, 0, len(b.defs))
	for id := range b.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs error
	for _, id := range ids {
		for _, impl := range b.defs[id].impls {
			errs = multierr.Append(errs, b.validateImpl(impl))
		}
	}
	if errs != nil {
		return fmt.Errorf("registry validation failed: %w", errs)
	}
	return nil
}

func (b *Builder) validateImpl(impl *Implementation) error {
	h := impl.handler
	if h.in == nil {
		return nil
	}
	sig := impl.Signature
	if len(h.in) != sig.Arity() {
		return fmt.Errorf("node '%s' %s: Go handler takes %d inputs", impl.Identifier, sig, len(h.in))
	}

	var errs error
	for i, goType := range h.in {
		errs = multierr.Append(errs, checkSlot(impl, fmt.Sprintf("input %d", i), sig.Inputs[i], goType))
	}
	errs = multierr.Append(errs, checkSlot(impl, "output", sig.Output, h.out))
	return errs
}

func checkSlot(impl *Implementation, slot string, declared types.Expr, goType reflect.Type) error {
	if goType == ctyValueType {
		return nil
	}
	want, ok := declared.Type()
	if !ok || want == cty.DynamicPseudoType {
		return fmt.Errorf("node '%s' %s: %s has generic type %s and needs a cty.Value handler argument",
			impl.Identifier, impl.Signature, slot, declared)
	}
	got, err := impliedType(goType)
	if err != nil {
		return fmt.Errorf("node '%s' %s: could not imply type from Go type %s: %w", impl.Identifier, slot, goType, err)
	}
	if !want.Equals(got) {
		return fmt.Errorf("node '%s' %s: type mismatch. Signature requires '%s' but Go handler provides '%s'",
			impl.Identifier, slot, types.TypeString(want), types.TypeString(got))
	}
	return nil
}

func impliedType(goType reflect.Type) (cty.Type, error) {
	if goType == imagePtrType {
		return types.Image, nil
	}
	return gocty.ImpliedType(reflect.Zero(goType).Interface())
}
