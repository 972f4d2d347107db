package render

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ScaleToDisplay resamples a source-sized composite to the display surface.
func ScaleToDisplay(src image.Image, scale float64) *image.RGBA {
	b := src.Bounds()
	w := int(math.Max(1, math.Round(float64(b.Dx())*scale)))
	h := int(math.Max(1, math.Round(float64(b.Dy())*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
