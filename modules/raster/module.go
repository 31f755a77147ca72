// Package raster provides image nodes and the encoders used to write image
// results to disk.
package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/image/draw"
)

// MaxSide bounds the width and height of images created by nodes.
const MaxSide = 16384

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the image nodes.
func (m *Module) Register(b *registry.Builder) error {
	regs := []struct {
		id, sig string
		h       registry.Handler
	}{
		{"raster.fill", "(number, number, number, number, number, number) -> image", registry.Raw(fill)},
		{"raster.resize", "(image, number, number) -> image", registry.Func3(resize)},
		{"raster.brightness", "(image, number) -> image", registry.Func2(brightness)},
		{"raster.width", "(image) -> number", registry.Pure1(func(img *image.RGBA) int { return img.Bounds().Dx() })},
		{"raster.height", "(image) -> number", registry.Pure1(func(img *image.RGBA) int { return img.Bounds().Dy() })},
	}
	for _, r := range regs {
		if err := b.Register(r.id, r.sig, r.h); err != nil {
			return err
		}
	}
	return nil
}

func checkSize(w, h int) error {
	if w <= 0 || h <= 0 || w > MaxSide || h > MaxSide {
		return fmt.Errorf("invalid image size %dx%d", w, h)
	}
	return nil
}

// fill creates a w×h image of a single colour. Channels are in [0, 1].
func fill(_ context.Context, args []cty.Value, _ cty.Type) (cty.Value, error) {
	var f [6]float64
	for i := range f {
		if err := types.FromValue(args[i], &f[i]); err != nil {
			return cty.NilVal, fmt.Errorf("input %d: %w", i, err)
		}
	}
	w, h := int(f[0]), int(f[1])
	if err := checkSize(w, h); err != nil {
		return cty.NilVal, err
	}
	c := color.RGBA{R: channel(f[2]), G: channel(f[3]), B: channel(f[4]), A: channel(f[5])}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return types.ImageVal(img), nil
}

func resize(ctx context.Context, src *image.RGBA, w, h int) (*image.RGBA, error) {
	if err := checkSize(w, h); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// brightness scales every colour channel by factor. Alpha is kept.
func brightness(_ context.Context, src *image.RGBA, factor float64) (*image.RGBA, error) {
	if factor < 0 {
		return nil, fmt.Errorf("brightness factor must not be negative, got %g", factor)
	}
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	for i := 0; i < len(dst.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			dst.Pix[i+c] = clamp(float64(dst.Pix[i+c]) * factor)
		}
	}
	return dst, nil
}

func channel(f float64) uint8 { return clamp(f * 255) }

func clamp(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f + 0.5)
}
