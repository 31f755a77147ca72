package types

import (
	"errors"
	"fmt"
	"image"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Image is the raster value type. Values hold an *image.RGBA that is never
// mutated after the value is created.
var Image = cty.Capsule("image", reflect.TypeOf(image.RGBA{}))

// ImageVal wraps img as an image value.
func ImageVal(img *image.RGBA) cty.Value {
	return cty.CapsuleVal(Image, img)
}

// AsImage unwraps an image value.
func AsImage(v cty.Value) (*image.RGBA, error) {
	if !v.Type().Equals(Image) || v.IsNull() || !v.IsKnown() {
		return nil, &DowncastError{Want: "image", Got: v.Type()}
	}
	return v.EncapsulatedValue().(*image.RGBA), nil
}

// ErrDowncast is matched by every *DowncastError.
var ErrDowncast = errors.New("downcast failed")

// DowncastError is returned when a type-erased value does not have the
// type the receiving code expects.
type DowncastError struct {
	Want string
	Got  cty.Type
	Err  error
}

func (e *DowncastError) Error() string {
	msg := fmt.Sprintf("cannot use value of type %s as %s", TypeString(e.Got), e.Want)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DowncastError) Unwrap() error { return e.Err }

func (e *DowncastError) Is(target error) bool { return target == ErrDowncast }

// Conforms reports whether v is a known value of type t. `any` accepts
// every known value.
func Conforms(v cty.Value, t cty.Type) bool {
	if !v.IsWhollyKnown() {
		return false
	}
	if t == cty.DynamicPseudoType {
		return true
	}
	return v.Type().Equals(t)
}

// Check is Conforms returning a *DowncastError.
func Check(v cty.Value, t cty.Type) error {
	if Conforms(v, t) {
		return nil
	}
	return &DowncastError{Want: TypeString(t), Got: v.Type()}
}

var ctyValueType = reflect.TypeOf(cty.Value{})

// FromValue decodes v into the Go value pointed to by target.
func FromValue(v cty.Value, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	elem := rv.Elem()

	if elem.Type() == ctyValueType {
		elem.Set(reflect.ValueOf(v))
		return nil
	}
	if v.Type().IsCapsuleType() {
		if v.IsNull() || !v.IsKnown() {
			return &DowncastError{Want: elem.Type().String(), Got: v.Type()}
		}
		native := reflect.ValueOf(v.EncapsulatedValue())
		if !native.Type().AssignableTo(elem.Type()) {
			return &DowncastError{Want: elem.Type().String(), Got: v.Type()}
		}
		elem.Set(native)
		return nil
	}
	if err := gocty.FromCtyValue(v, target); err != nil {
		return &DowncastError{Want: elem.Type().String(), Got: v.Type(), Err: err}
	}
	return nil
}

// ToValue encodes a Go value as t. When t is `any` the type is implied from
// the Go value.
func ToValue(goVal any, t cty.Type) (cty.Value, error) {
	if v, ok := goVal.(cty.Value); ok {
		return v, nil
	}
	if img, ok := goVal.(*image.RGBA); ok {
		return ImageVal(img), nil
	}
	if t == cty.DynamicPseudoType {
		implied, err := gocty.ImpliedType(goVal)
		if err != nil {
			return cty.NilVal, fmt.Errorf("cannot infer type of %T: %w", goVal, err)
		}
		t = implied
	}
	v, err := gocty.ToCtyValue(goVal, t)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot encode %T as %s: %w", goVal, TypeString(t), err)
	}
	return v, nil
}

// Display renders v for humans: JSON for plain values, a short summary for
// images.
func Display(v cty.Value) string {
	switch {
	case !v.IsKnown():
		return "(unknown)"
	case v.IsNull():
		return "null"
	case v.Type().Equals(Image):
		b := v.EncapsulatedValue().(*image.RGBA).Bounds()
		return fmt.Sprintf("image(%dx%d)", b.Dx(), b.Dy())
	}
	out, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(out)
}
