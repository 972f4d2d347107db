// Package render composites sigil marks onto a base image.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"

	"sigil-overlay/internal/placement"
	"sigil-overlay/internal/transform"
	"sigil-overlay/pkg/geometry"

	"golang.org/x/image/draw"
)

// ErrInvalidScale is returned when the display scale is not a positive number.
var ErrInvalidScale = errors.New("display scale must be positive")

// Interpolation selects the resampling kernel used to draw sigils.
type Interpolation int

const (
	InterpCatmullRom Interpolation = iota
	InterpBiLinear
	InterpNearest
)

func (i Interpolation) String() string {
	switch i {
	case InterpCatmullRom:
		return "catmullrom"
	case InterpBiLinear:
		return "bilinear"
	case InterpNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// ParseInterpolation maps a config name to an Interpolation. Unknown names
// fall back to CatmullRom.
func ParseInterpolation(name string) Interpolation {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bilinear", "approxbilinear":
		return InterpBiLinear
	case "nearest", "nearestneighbor":
		return InterpNearest
	default:
		return InterpCatmullRom
	}
}

func (i Interpolation) transformer() draw.Transformer {
	switch i {
	case InterpBiLinear:
		return draw.ApproxBiLinear
	case InterpNearest:
		return draw.NearestNeighbor
	default:
		return draw.CatmullRom
	}
}

// Params are the user-controlled sizing and transparency of every mark.
type Params struct {
	SizePercent    float64 // 0..300
	OpacityPercent float64 // 0..100
}

// SigilSize returns the side length of a drawn sigil in source pixels. The
// footprint is a quarter of the image's shorter side at 100%.
func SigilSize(sizePercent float64, width, height float64) float64 {
	return (sizePercent / 100) * math.Min(width, height) / 4
}

// MarkTransform returns the affine map from sigil pixel space to output space
// for a mark whose centre is at p (source pixels), rotated by rotation degrees
// and drawn size pixels square.
func MarkTransform(p geometry.Point2D, rotation, size float64, sigilBounds image.Rectangle) geometry.AffineTransform {
	sw := float64(sigilBounds.Dx())
	sh := float64(sigilBounds.Dy())
	return geometry.Translation(p.X, p.Y).
		Compose(geometry.Rotation(geometry.Degrees(rotation))).
		Compose(geometry.Translation(-size/2, -size/2)).
		Compose(geometry.Scale(size/sw, size/sh)).
		Compose(geometry.Translation(-float64(sigilBounds.Min.X), -float64(sigilBounds.Min.Y)))
}

// Renderer draws marks. The zero value uses CatmullRom and discards logs.
type Renderer struct {
	Interp Interpolation
	Log    *slog.Logger
}

// NewRenderer creates a renderer with the given interpolation.
func NewRenderer(interp Interpolation, log *slog.Logger) *Renderer {
	return &Renderer{Interp: interp, Log: log}
}

// Render produces a new image the size of base with the sigil drawn once per
// mark, in order. Marks are in display space and are converted to source
// space with scale. A nil sigil yields a copy of the base.
func (r *Renderer) Render(base image.Image, marks []placement.Mark, sigil image.Image, p Params, scale float64) (*image.RGBA, error) {
	if base == nil {
		return nil, errors.New("render: no base image")
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("render: scale %v: %w", scale, ErrInvalidScale)
	}

	bounds := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), base, bounds.Min, draw.Src)

	if sigil == nil || len(marks) == 0 {
		return out, nil
	}
	sb := sigil.Bounds()
	if sb.Empty() {
		return out, nil
	}

	size := SigilSize(p.SizePercent, float64(bounds.Dx()), float64(bounds.Dy()))
	alpha := math.Max(0, math.Min(1, p.OpacityPercent/100))
	if size <= 0 || alpha == 0 {
		return out, nil
	}

	opts := &draw.Options{
		SrcMask: image.NewUniform(color.Alpha{A: uint8(math.Round(alpha * 255))}),
	}
	interp := r.Interp.transformer()

	for i, m := range marks {
		if !m.Valid() {
			continue
		}
		pt := transform.DisplayToSource(m.Position(), scale)
		aff := MarkTransform(pt, m.Rotation, size, sb)
		interp.Transform(out, aff.Aff3(), sigil, sb, draw.Over, opts)
		r.logger().Debug("drew mark", "index", i, "x", pt.X, "y", pt.Y, "rotation", m.Rotation, "size", size)
	}
	return out, nil
}

func (r *Renderer) logger() *slog.Logger {
	if r == nil || r.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Log
}
