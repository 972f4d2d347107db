package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"sigil-overlay/internal/placement"
	"sigil-overlay/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
)

func rgba(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestSigilSize(t *testing.T) {
	assert.Equal(t, 37.5, SigilSize(25, 800, 600))
	assert.Equal(t, 0.0, SigilSize(0, 800, 600))
	assert.Equal(t, 450.0, SigilSize(300, 800, 600))
}

func TestMarkTransform_CentresSigilOnPoint(t *testing.T) {
	p := geometry.NewPoint2D(400, 300)
	sb := image.Rect(0, 0, 10, 20)

	aff := MarkTransform(p, 0, 37.5, sb)
	centre := aff.Apply(geometry.NewPoint2D(5, 10))
	assert.InDelta(t, 400, centre.X, 1e-9)
	assert.InDelta(t, 300, centre.Y, 1e-9)
	corner := aff.Apply(geometry.NewPoint2D(0, 0))
	assert.InDelta(t, 400-18.75, corner.X, 1e-9)
	assert.InDelta(t, 300-18.75, corner.Y, 1e-9)

	rotated := MarkTransform(p, 123, 37.5, sb).Apply(geometry.NewPoint2D(5, 10))
	assert.InDelta(t, 400, rotated.X, 1e-9)
	assert.InDelta(t, 300, rotated.Y, 1e-9)

	// Sigil bounds that do not start at the origin are handled.
	offset := MarkTransform(p, 0, 37.5, image.Rect(3, 4, 13, 24)).Apply(geometry.NewPoint2D(8, 14))
	assert.InDelta(t, 400, offset.X, 1e-9)
	assert.InDelta(t, 300, offset.Y, 1e-9)
}

func TestRender_OutputIsSourceSized(t *testing.T) {
	base := solid(800, 600, white)
	out, err := (&Renderer{}).Render(base, []placement.Mark{{X: 200, Y: 150}}, solid(10, 10, red), Params{25, 100}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), out.Bounds())
}

func TestRender_DrawsCentredOnSourcePoint(t *testing.T) {
	base := solid(800, 600, white)
	marks := []placement.Mark{{X: 200, Y: 150}} // source (400, 300) at scale 0.5

	out, err := (&Renderer{}).Render(base, marks, solid(10, 10, red), Params{SizePercent: 25, OpacityPercent: 100}, 0.5)
	require.NoError(t, err)

	assert.Equal(t, red, rgba(out, 400, 300))
	assert.Equal(t, red, rgba(out, 400+15, 300-15), "inside the 37.5px square")
	assert.Equal(t, white, rgba(out, 400+25, 300), "outside the square")
	assert.Equal(t, white, rgba(out, 200, 150), "display position is not drawn")
}

func TestRender_OpacityBlends(t *testing.T) {
	base := solid(200, 200, white)
	marks := []placement.Mark{{X: 100, Y: 100}}

	out, err := NewRenderer(InterpNearest, nil).Render(base, marks, solid(8, 8, red), Params{SizePercent: 100, OpacityPercent: 50}, 1)
	require.NoError(t, err)

	c := rgba(out, 100, 100)
	assert.Equal(t, uint8(255), c.R)
	assert.InDelta(t, 128, int(c.G), 2)
	assert.InDelta(t, 128, int(c.B), 2)
	assert.Equal(t, uint8(255), c.A)
}

func TestRender_ZeroOpacityOrSizeLeavesBase(t *testing.T) {
	base := solid(100, 80, white)
	marks := []placement.Mark{{X: 50, Y: 40}, {X: 10, Y: 10, Rotation: 30}}
	r := &Renderer{}

	for _, p := range []Params{{SizePercent: 100, OpacityPercent: 0}, {SizePercent: 0, OpacityPercent: 100}} {
		out, err := r.Render(base, marks, solid(4, 4, red), p, 1)
		require.NoError(t, err)
		assert.Equal(t, base.Pix, out.Pix, "params %+v", p)
	}
}

func TestRender_NilSigilCopiesBase(t *testing.T) {
	base := solid(30, 20, white)
	out, err := (&Renderer{}).Render(base, []placement.Mark{{X: 5, Y: 5}}, nil, Params{100, 100}, 1)
	require.NoError(t, err)
	assert.Equal(t, base.Pix, out.Pix)

	out.Set(0, 0, red)
	assert.Equal(t, white, rgba(base, 0, 0), "output does not alias the base")
}

func TestRender_InvalidScale(t *testing.T) {
	base := solid(10, 10, white)
	for _, s := range []float64{0, -1} {
		_, err := (&Renderer{}).Render(base, nil, nil, Params{}, s)
		assert.ErrorIs(t, err, ErrInvalidScale)
	}
}

func TestRender_RotationDoesNotLeakBetweenMarks(t *testing.T) {
	base := solid(800, 600, white)
	marks := []placement.Mark{
		{X: 600, Y: 300, Rotation: 45},
		{X: 200, Y: 300},
	}
	out, err := NewRenderer(InterpNearest, nil).Render(base, marks, solid(10, 10, red), Params{25, 100}, 1)
	require.NoError(t, err)

	// Near the corner of an unrotated 37.5px square but outside the diamond.
	assert.Equal(t, white, rgba(out, 600+16, 300+16))
	assert.Equal(t, red, rgba(out, 600+22, 300))
	// The second mark is square-on again.
	assert.Equal(t, red, rgba(out, 200+16, 300+16))
	assert.Equal(t, white, rgba(out, 200+24, 300))
}

func TestRender_OverlappingMarksComposite(t *testing.T) {
	base := solid(100, 100, white)
	// Half-transparent sigil: where marks overlap the later one is drawn over
	// the earlier, giving two coats.
	sigil := solid(4, 4, color.RGBA{0, 0, 128, 128})
	marks := []placement.Mark{{X: 40, Y: 50}, {X: 60, Y: 50}}

	out, err := NewRenderer(InterpNearest, nil).Render(base, marks, sigil, Params{SizePercent: 100, OpacityPercent: 100}, 1)
	require.NoError(t, err)

	single := rgba(out, 30, 50)
	overlap := rgba(out, 50, 50)
	assert.Less(t, overlap.R, single.R)
}

func TestParseInterpolation(t *testing.T) {
	assert.Equal(t, InterpBiLinear, ParseInterpolation("BiLinear"))
	assert.Equal(t, InterpNearest, ParseInterpolation("nearest"))
	assert.Equal(t, InterpCatmullRom, ParseInterpolation(""))
	assert.Equal(t, "catmullrom", InterpCatmullRom.String())
}

func TestPNGBytes(t *testing.T) {
	img := solid(3, 2, red)
	data, err := PNGBytes(img)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	assert.Equal(t, red, rgba(decoded, 2, 1))
}

func TestDrawHandles(t *testing.T) {
	preview := solid(100, 60, white)
	marks := []placement.Mark{{X: 25, Y: 30}, {X: 75, Y: 30}}

	out, err := DrawHandles(preview, marks, 1)
	require.NoError(t, err)

	sel := rgba(out, 75, 30)
	other := rgba(out, 25, 30)
	assert.Greater(t, int(sel.B)-int(sel.R), 40, "selected handle is blue")
	assert.InDelta(t, int(other.R), int(other.B), 4, "unselected handle is grey")
	assert.Less(t, other.R, uint8(250))
	assert.Equal(t, white, rgba(out, 50, 5), "away from handles")
	assert.Equal(t, white, rgba(preview, 75, 30), "preview is not modified")

	border := rgba(out, 75+int(HitHalfSize), 30)
	assert.Less(t, border.R, uint8(30), "selected handle has a border")
	assert.Greater(t, border.B, uint8(180))
	assert.Equal(t, white, rgba(out, 25+int(HitHalfSize), 30), "unselected handle has none")
}

func TestDrawHandles_NoMarksReturnsPreview(t *testing.T) {
	preview := solid(10, 10, white)
	out, err := DrawHandles(preview, nil, -1)
	require.NoError(t, err)
	assert.Same(t, preview, out)

	_, err = DrawHandles(nil, nil, -1)
	assert.Error(t, err)
}
