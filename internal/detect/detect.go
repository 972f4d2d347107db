// Package detect defines how landmark detectors are consumed: an image goes
// in, at most MaxPoints normalized points come out.
package detect

import (
	"context"
	"errors"
	"image"
	"sort"

	"sigil-overlay/pkg/geometry"
)

// MaxPoints is the most points a detector reports: the two eye centres.
const MaxPoints = 2

// ErrNoCascade is returned when a classifier model cannot be loaded.
var ErrNoCascade = errors.New("cascade model not loaded")

// Detector finds landmark points in an image. Points are normalized to
// [0,1]x[0,1] with the origin at the top-left. An empty result with a nil
// error means nothing was found, which is not a failure.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]geometry.Point2D, error)
}

// Func adapts an ordinary function to the Detector interface.
type Func func(ctx context.Context, img image.Image) ([]geometry.Point2D, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, img image.Image) ([]geometry.Point2D, error) {
	return f(ctx, img)
}

// Normalize converts pixel-space points within bounds to normalized points.
// Points that land outside [0,1] or are not finite are dropped.
func Normalize(points []geometry.Point2D, bounds image.Rectangle) []geometry.Point2D {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	if w <= 0 || h <= 0 {
		return nil
	}
	out := make([]geometry.Point2D, 0, len(points))
	for _, p := range points {
		n := geometry.Point2D{
			X: (p.X - float64(bounds.Min.X)) / w,
			Y: (p.Y - float64(bounds.Min.Y)) / h,
		}
		if !n.IsFinite() || n.X < 0 || n.X > 1 || n.Y < 0 || n.Y > 1 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Arrange sorts points left to right and keeps at most MaxPoints, so index 0
// is the left eye as seen in the image and index 1 the right.
func Arrange(points []geometry.Point2D) []geometry.Point2D {
	out := append([]geometry.Point2D(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].X < out[j].X })
	if len(out) > MaxPoints {
		out = out[:MaxPoints]
	}
	return out
}

// Eyes selects which of the arranged eye points become marks.
type Eyes struct {
	Left  bool
	Right bool
}

// BothEyes enables both eyes.
var BothEyes = Eyes{Left: true, Right: true}

// Filter returns the points whose eye is enabled. Points beyond the second
// are passed through unchanged.
func (e Eyes) Filter(points []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, 0, len(points))
	for i, p := range points {
		switch {
		case i == 0 && !e.Left:
			continue
		case i == 1 && !e.Right:
			continue
		}
		out = append(out, p)
	}
	return out
}

// RectCentre returns the centre of r in pixel coordinates.
func RectCentre(r image.Rectangle) geometry.Point2D {
	return geometry.Point2D{
		X: float64(r.Min.X+r.Max.X) / 2,
		Y: float64(r.Min.Y+r.Max.Y) / 2,
	}
}

// PickEyes chooses up to two eye rectangles, given in face-relative
// coordinates, and returns their centres in image coordinates. Candidates in
// the lower part of the face (nostrils, mouth corners) are ignored and the
// largest remaining candidates win.
func PickEyes(face image.Rectangle, eyes []image.Rectangle) []geometry.Point2D {
	limit := face.Dy() * 3 / 5
	cands := make([]image.Rectangle, 0, len(eyes))
	for _, e := range eyes {
		if e.Empty() || RectCentre(e).Y > float64(limit) {
			continue
		}
		cands = append(cands, e)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return area(cands[i]) > area(cands[j])
	})
	if len(cands) > MaxPoints {
		cands = cands[:MaxPoints]
	}

	out := make([]geometry.Point2D, 0, len(cands))
	for _, e := range cands {
		out = append(out, RectCentre(e.Add(face.Min)))
	}
	return out
}

// LargestRect returns the rectangle with the biggest area.
func LargestRect(rects []image.Rectangle) (image.Rectangle, bool) {
	if len(rects) == 0 {
		return image.Rectangle{}, false
	}
	best := rects[0]
	for _, r := range rects[1:] {
		if area(r) > area(best) {
			best = r
		}
	}
	return best, true
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
