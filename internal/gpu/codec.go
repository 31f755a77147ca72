package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
)

// ElementSize is the size in bytes of every buffer element; numbers are f32
// and bools u32.
const ElementSize = 4

// encodeElement writes v at the start of dst.
func encodeElement(dst []byte, t cty.Type, v cty.Value) error {
	if v.IsNull() || !v.IsKnown() {
		return fmt.Errorf("lane value must be known and not null")
	}
	if !v.Type().Equals(t) {
		return fmt.Errorf("lane value has type %s, want %s", types.TypeString(v.Type()), types.TypeString(t))
	}
	switch {
	case t.Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
	case t.Equals(cty.Bool):
		var u uint32
		if v.True() {
			u = 1
		}
		binary.LittleEndian.PutUint32(dst, u)
	default:
		return fmt.Errorf("type %s cannot be stored in a device buffer", types.TypeString(t))
	}
	return nil
}

// decodeElement reads the element at the start of src.
func decodeElement(src []byte, t cty.Type) (cty.Value, error) {
	u := binary.LittleEndian.Uint32(src)
	switch {
	case t.Equals(cty.Number):
		return cty.NumberFloatVal(float64(math.Float32frombits(u))), nil
	case t.Equals(cty.Bool):
		return cty.BoolVal(u != 0), nil
	}
	return cty.NilVal, fmt.Errorf("type %s cannot be read from a device buffer", types.TypeString(t))
}

// EncodeColumn packs lane values of element type t.
func EncodeColumn(t cty.Type, lanes []cty.Value) ([]byte, error) {
	buf := make([]byte, len(lanes)*ElementSize)
	for i, v := range lanes {
		if err := encodeElement(buf[i*ElementSize:], t, v); err != nil {
			return nil, fmt.Errorf("lane %d: %w", i, err)
		}
	}
	return buf, nil
}

// DecodeColumn unpacks a buffer into lane values of element type t.
func DecodeColumn(t cty.Type, buf []byte) ([]cty.Value, error) {
	if len(buf)%ElementSize != 0 {
		return nil, fmt.Errorf("buffer of %d bytes is not a whole number of elements", len(buf))
	}
	out := make([]cty.Value, len(buf)/ElementSize)
	for i := range out {
		v, err := decodeElement(buf[i*ElementSize:], t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Column converts a list, set or tuple value into its lane values.
func Column(v cty.Value) ([]cty.Value, error) {
	t := v.Type()
	if v.IsNull() || !v.IsKnown() || !(t.IsListType() || t.IsSetType() || t.IsTupleType()) {
		return nil, fmt.Errorf("lane input must be a known list, got %s", types.TypeString(t))
	}
	out := make([]cty.Value, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		out = append(out, ev)
	}
	return out, nil
}
