package render

import (
	"fmt"
	"image"
	"image/color"

	"sigil-overlay/internal/placement"
	"sigil-overlay/pkg/geometry"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Handle geometry in display units. HitHalfSize covers the handle plus its
// selection border and is what pointer presses are tested against.
const (
	HandleRadius = 10.0
	HitHalfSize  = 14.0
	borderWidth  = 2.0
)

var (
	handleSelected = color.NRGBA{R: 0x00, G: 0x66, B: 0xCC, A: 0x80}
	handleIdle     = color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0x80}
	handleBorder   = color.NRGBA{R: 0x00, G: 0x66, B: 0xCC, A: 0xFF}
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// DrawHandles returns a copy of preview with a translucent grab handle at
// every mark. preview must already be display-sized, since marks are in
// display space. Handles are an editing aid and never appear in exports.
func DrawHandles(preview image.Image, marks []placement.Mark, selected int) (image.Image, error) {
	if preview == nil {
		return nil, fmt.Errorf("draw handles: no preview")
	}
	if len(marks) == 0 {
		return preview, nil
	}

	b := preview.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, preview, b.Min, draw.Src)
	origin := geometry.NewPoint2D(float64(b.Min.X), float64(b.Min.Y))

	for i, m := range marks {
		if !m.Valid() {
			continue
		}
		c := m.Position().Sub(origin)

		fill := handleIdle
		if i == selected {
			fill = handleSelected
		}
		z := vector.NewRasterizer(b.Dx(), b.Dy())
		addCircle(z, c, HandleRadius)
		z.Draw(out, b, image.NewUniform(fill), image.Point{})

		if i != selected {
			continue
		}
		// Selection border, turned with the mark.
		frame := geometry.Translation(c.X, c.Y).Compose(geometry.Rotation(geometry.Degrees(m.Rotation)))
		z = vector.NewRasterizer(b.Dx(), b.Dy())
		addSquare(z, frame, HitHalfSize+borderWidth/2, false)
		addSquare(z, frame, HitHalfSize-borderWidth/2, true)
		z.Draw(out, b, image.NewUniform(handleBorder), image.Point{})
	}
	return out, nil
}

func addCircle(z *vector.Rasterizer, c geometry.Point2D, r float64) {
	k := kappa * r
	z.MoveTo(f32(c.X+r), f32(c.Y))
	z.CubeTo(f32(c.X+r), f32(c.Y+k), f32(c.X+k), f32(c.Y+r), f32(c.X), f32(c.Y+r))
	z.CubeTo(f32(c.X-k), f32(c.Y+r), f32(c.X-r), f32(c.Y+k), f32(c.X-r), f32(c.Y))
	z.CubeTo(f32(c.X-r), f32(c.Y-k), f32(c.X-k), f32(c.Y-r), f32(c.X), f32(c.Y-r))
	z.CubeTo(f32(c.X+k), f32(c.Y-r), f32(c.X+r), f32(c.Y-k), f32(c.X+r), f32(c.Y))
	z.ClosePath()
}

// addSquare adds a square of half size h centred on the frame origin.
// Reversed squares wind the other way, cutting a hole in an enclosing one.
func addSquare(z *vector.Rasterizer, frame geometry.AffineTransform, h float64, reversed bool) {
	corners := []geometry.Point2D{{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h}}
	if reversed {
		corners[1], corners[3] = corners[3], corners[1]
	}
	for i, p := range corners {
		q := frame.Apply(p)
		if i == 0 {
			z.MoveTo(f32(q.X), f32(q.Y))
			continue
		}
		z.LineTo(f32(q.X), f32(q.Y))
	}
	z.ClosePath()
}

func f32(v float64) float32 { return float32(v) }
