package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"image"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Digest is a sha256 content hash.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short is the first 12 hex characters, for logs.
func (d Digest) Short() string { return d.String()[:12] }

// ContentHasher is implemented by capsule payloads that can be hashed.
type ContentHasher interface {
	ContentHash() Digest
}

// ErrUnhashable is returned for values that have no stable content hash.
var ErrUnhashable = errors.New("value has no content hash")

// Hasher accumulates length-prefixed fields into a sha256 digest, so that
// distinct field sequences can never collide by concatenation.
type Hasher struct {
	h hash.Hash
}

// NewHasher starts a new digest.
func NewHasher() *Hasher { return &Hasher{h: sha256.New()} }

// Str writes a length-prefixed string.
func (x *Hasher) Str(s string) *Hasher {
	x.Int(len(s))
	x.h.Write([]byte(s))
	return x
}

// Bytes writes a length-prefixed byte slice.
func (x *Hasher) Bytes(b []byte) *Hasher {
	x.Int(len(b))
	x.h.Write(b)
	return x
}

// Int writes a fixed-width integer.
func (x *Hasher) Int(n int) *Hasher {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	x.h.Write(buf[:])
	return x
}

// Digest writes another digest.
func (x *Hasher) Digest(d Digest) *Hasher {
	x.h.Write(d[:])
	return x
}

// Value writes the content of v. Values that compare RawEquals always hash
// the same.
func (x *Hasher) Value(v cty.Value) error {
	return writeValue(x, v)
}

// Sum finishes the digest.
func (x *Hasher) Sum() Digest {
	var d Digest
	copy(d[:], x.h.Sum(nil))
	return d
}

// HashValue is the content hash of a single value.
func HashValue(v cty.Value) (Digest, error) {
	x := NewHasher()
	if err := x.Value(v); err != nil {
		return Digest{}, err
	}
	return x.Sum(), nil
}

// HashImage hashes the bounds and pixels of img.
func HashImage(img *image.RGBA) Digest {
	x := NewHasher()
	b := img.Bounds()
	x.Int(b.Min.X).Int(b.Min.Y).Int(b.Max.X).Int(b.Max.Y).Int(img.Stride)
	x.Bytes(img.Pix)
	return x.Sum()
}

func writeValue(x *Hasher, v cty.Value) error {
	ty := v.Type()
	x.Str(ty.GoString())
	if !v.IsKnown() {
		return fmt.Errorf("%w: unknown value", ErrUnhashable)
	}
	if v.IsNull() {
		x.Int(0)
		return nil
	}
	x.Int(1)

	switch {
	case ty == cty.Number:
		x.Str(v.AsBigFloat().Text('g', -1))
	case ty == cty.String:
		x.Str(v.AsString())
	case ty == cty.Bool:
		if v.True() {
			x.Int(1)
		} else {
			x.Int(0)
		}
	case ty.IsCapsuleType():
		switch payload := v.EncapsulatedValue().(type) {
		case ContentHasher:
			x.Digest(payload.ContentHash())
		case *image.RGBA:
			x.Digest(HashImage(payload))
		default:
			return fmt.Errorf("%w: capsule %s", ErrUnhashable, ty.FriendlyName())
		}
	case ty.IsListType(), ty.IsSetType(), ty.IsTupleType():
		x.Int(v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if err := writeValue(x, ev); err != nil {
				return err
			}
		}
	case ty.IsMapType(), ty.IsObjectType():
		elems := v.AsValueMap()
		keys := make([]string, 0, len(elems))
		for k := range elems {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		x.Int(len(keys))
		for _, k := range keys {
			x.Str(k)
			if err := writeValue(x, elems[k]); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnhashable, ty.FriendlyName())
	}
	return nil
}
