// Package transform converts points between the three coordinate spaces a
// sigil passes through: normalized detector output, source-image pixels, and
// the display surface the image is fitted into.
//
// Display space is the stored space. A point is multiplied by the scale once
// on the way in (NormalizedToDisplay) and divided once on the way out to the
// renderer (DisplayToSource); nothing else applies the scale.
package transform

import (
	"errors"
	"fmt"

	"sigil-overlay/pkg/geometry"
)

// ErrInvalidDimensions is returned when a scale cannot be derived because a
// width is zero, negative or not finite.
var ErrInvalidDimensions = errors.New("invalid dimensions")

// NormalizedToDisplay maps a detector point in [0,1]x[0,1] onto the display
// surface of a sourceWidth x sourceHeight image shown at the given scale.
func NormalizedToDisplay(p geometry.Point2D, sourceWidth, sourceHeight, scale float64) geometry.Point2D {
	return geometry.Point2D{
		X: p.X * sourceWidth * scale,
		Y: p.Y * sourceHeight * scale,
	}
}

// DisplayToSource maps a display-space point back to source pixels.
func DisplayToSource(p geometry.Point2D, scale float64) geometry.Point2D {
	return geometry.Point2D{X: p.X / scale, Y: p.Y / scale}
}

// SourceToDisplay maps a source pixel onto the display surface.
func SourceToDisplay(p geometry.Point2D, scale float64) geometry.Point2D {
	return geometry.Point2D{X: p.X * scale, Y: p.Y * scale}
}

// FitScale returns the display scale that fits an image of sourceWidth
// pixels into a viewport viewportWidth units wide.
func FitScale(viewportWidth, sourceWidth float64) (float64, error) {
	if !(viewportWidth > 0) || !(sourceWidth > 0) ||
		!geometry.IsFinite(viewportWidth) || !geometry.IsFinite(sourceWidth) {
		return 0, fmt.Errorf("fit %v into %v: %w", sourceWidth, viewportWidth, ErrInvalidDimensions)
	}
	return viewportWidth / sourceWidth, nil
}

// DisplaySize returns the size of the display surface for a source image.
func DisplaySize(source geometry.Size, scale float64) geometry.Size {
	return geometry.Size{Width: source.Width * scale, Height: source.Height * scale}
}

// Rescale carries a display-space point from one scale to another so that it
// keeps pointing at the same source pixel.
func Rescale(p geometry.Point2D, from, to float64) geometry.Point2D {
	return SourceToDisplay(DisplayToSource(p, from), to)
}
