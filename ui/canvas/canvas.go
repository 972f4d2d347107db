// Package canvas provides the editing surface: the composited preview with
// grab handles, plus the pointer and keyboard routing that moves marks.
package canvas

import (
	"errors"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"sigil-overlay/internal/app"
	"sigil-overlay/internal/interact"
	"sigil-overlay/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"golang.org/x/image/draw"
)

var (
	emptySize  = fyne.NewSize(400, 300)
	background = color.NRGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF}
)

// SigilCanvas shows the session preview at display scale. It is the pointer
// and key source for the session's drag and nudge controllers.
type SigilCanvas struct {
	widget.BaseWidget

	state *app.State
	log   *slog.Logger

	raster  *fynecanvas.Raster
	content *surface
	scroll  *container.Scroll

	mu        sync.Mutex
	pointer   interact.PointerListener
	keys      interact.KeyListener
	shift     bool
	lastDrag  fyne.Position
	lastWidth float32
}

var (
	_ interact.PointerSource = (*SigilCanvas)(nil)
	_ interact.KeySource     = (*SigilCanvas)(nil)
)

// NewSigilCanvas creates the surface and binds it to state as its input
// source.
func NewSigilCanvas(state *app.State, log *slog.Logger) *SigilCanvas {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := &SigilCanvas{
		state: state,
		log:   log,
	}

	c.raster = fynecanvas.NewRaster(c.draw)
	c.raster.ScaleMode = fynecanvas.ImageScalePixels
	c.raster.SetMinSize(emptySize)

	c.content = newSurface(c, c.raster)
	c.scroll = container.NewVScroll(c.content)

	state.On(app.EventRedraw, func(interface{}) { c.raster.Refresh() })
	for _, ev := range []app.EventType{app.EventImageLoaded, app.EventImageCleared, app.EventScaleChanged} {
		state.On(ev, func(interface{}) { c.updateContentSize() })
	}
	state.BindInput(c, c)

	c.ExtendBaseWidget(c)
	return c
}

// ListenPointer implements interact.PointerSource. Drag motion and release
// are delivered wherever the pointer goes until cancel is called.
func (c *SigilCanvas) ListenPointer(l interact.PointerListener) func() {
	c.mu.Lock()
	c.pointer = l
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		if c.pointer == l {
			c.pointer = nil
		}
		c.mu.Unlock()
	}
}

// ListenKeys implements interact.KeySource.
func (c *SigilCanvas) ListenKeys(l interact.KeyListener) func() {
	c.mu.Lock()
	c.keys = l
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		if c.keys == l {
			c.keys = nil
		}
		c.mu.Unlock()
	}
}

// AttachKeys routes the window's unclaimed key presses to the nudge
// controller. Shift is tracked on desktop drivers for fine adjustment.
func (c *SigilCanvas) AttachKeys(cv fyne.Canvas) {
	cv.SetOnTypedKey(c.typedKey)
	dc, ok := cv.(desktop.Canvas)
	if !ok {
		return
	}
	dc.SetOnKeyDown(func(ev *fyne.KeyEvent) {
		if isShift(ev.Name) {
			c.setShift(true)
		}
	})
	dc.SetOnKeyUp(func(ev *fyne.KeyEvent) {
		if isShift(ev.Name) {
			c.setShift(false)
		}
	})
}

func isShift(name fyne.KeyName) bool {
	return name == desktop.KeyShiftLeft || name == desktop.KeyShiftRight
}

func (c *SigilCanvas) setShift(down bool) {
	c.mu.Lock()
	c.shift = down
	c.mu.Unlock()
}

func (c *SigilCanvas) typedKey(ev *fyne.KeyEvent) {
	key := interact.ParseKey(string(ev.Name))
	if key == interact.KeyNone {
		return
	}
	c.mu.Lock()
	l, precise := c.keys, c.shift
	c.mu.Unlock()
	if l == nil {
		return
	}
	c.state.Do(func() { l.KeyPressed(interact.KeyEvent{Key: key, Precise: precise}) })
}

func (c *SigilCanvas) press(pos fyne.Position) {
	c.mu.Lock()
	c.lastDrag = pos
	c.mu.Unlock()
	c.state.PressAt(toPoint(pos))
}

func (c *SigilCanvas) move(pos fyne.Position) {
	c.mu.Lock()
	l := c.pointer
	c.lastDrag = pos
	c.mu.Unlock()
	if l == nil {
		return
	}
	c.state.Do(func() { l.PointerMoved(toPoint(pos)) })
}

func (c *SigilCanvas) release(pos *fyne.Position) {
	c.mu.Lock()
	l := c.pointer
	at := c.lastDrag
	c.mu.Unlock()
	if l == nil {
		return
	}
	if pos != nil {
		at = *pos
	}
	c.state.Do(func() { l.PointerReleased(toPoint(at)) })
}

func toPoint(pos fyne.Position) geometry.Point2D {
	return geometry.NewPoint2D(float64(pos.X), float64(pos.Y))
}

// Refresh redraws the preview.
func (c *SigilCanvas) Refresh() {
	c.raster.Refresh()
}

// updateContentSize sizes the raster to the session's display surface.
func (c *SigilCanvas) updateContentSize() {
	size := emptySize
	if ds := c.state.DisplaySize(); ds.Width > 0 && ds.Height > 0 {
		size = fyne.NewSize(float32(ds.Width), float32(ds.Height))
	}
	c.raster.SetMinSize(size)
	c.raster.Resize(size)
	c.content.Refresh()
	c.scroll.Refresh()
}

// setViewportWidth reports a new surface width to the session.
func (c *SigilCanvas) setViewportWidth(w float32) {
	if w <= 0 || w == c.lastWidth {
		return
	}
	c.lastWidth = w
	if err := c.state.SetViewportWidth(float64(w)); err != nil {
		c.log.Warn("viewport resize", "width", w, "error", err)
	}
}

func (c *SigilCanvas) draw(w, h int) image.Image {
	img, err := c.state.Preview()
	if err == nil {
		return img
	}
	if !errors.Is(err, app.ErrNoImage) {
		c.log.Error("preview", "error", err)
	}
	out := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.Draw(out, out.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	return out
}

// CreateRenderer implements fyne.Widget.
func (c *SigilCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &sigilCanvasRenderer{canvas: c}
}

type sigilCanvasRenderer struct {
	canvas *SigilCanvas
}

func (r *sigilCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.scroll.Resize(size)
	r.canvas.setViewportWidth(size.Width)
}

func (r *sigilCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *sigilCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *sigilCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.scroll}
}

func (r *sigilCanvasRenderer) Destroy() {}

// surface wraps the raster to receive mouse events. Event positions are
// relative to the raster's top-left corner, which is display space.
type surface struct {
	widget.BaseWidget
	canvas *SigilCanvas
	raster *fynecanvas.Raster
}

var (
	_ desktop.Mouseable = (*surface)(nil)
	_ fyne.Draggable    = (*surface)(nil)
)

func newSurface(c *SigilCanvas, raster *fynecanvas.Raster) *surface {
	s := &surface{canvas: c, raster: raster}
	s.ExtendBaseWidget(s)
	return s
}

func (s *surface) CreateRenderer() fyne.WidgetRenderer {
	return &surfaceRenderer{surface: s}
}

func (s *surface) MinSize() fyne.Size {
	return s.raster.MinSize()
}

func (s *surface) MouseDown(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	s.canvas.press(ev.Position)
}

// MouseUp ends a press that never turned into a drag.
func (s *surface) MouseUp(ev *desktop.MouseEvent) {
	pos := ev.Position
	s.canvas.release(&pos)
}

func (s *surface) Dragged(ev *fyne.DragEvent) {
	s.canvas.move(ev.Position)
}

func (s *surface) DragEnd() {
	s.canvas.release(nil)
}

type surfaceRenderer struct {
	surface *surface
}

// Layout pins the raster at its own size so the preview is never stretched
// and pointer positions stay in display space.
func (r *surfaceRenderer) Layout(fyne.Size) {
	r.surface.raster.Move(fyne.NewPos(0, 0))
	r.surface.raster.Resize(r.surface.raster.MinSize())
}

func (r *surfaceRenderer) MinSize() fyne.Size {
	return r.surface.raster.MinSize()
}

func (r *surfaceRenderer) Refresh() {
	r.surface.raster.Refresh()
}

func (r *surfaceRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.surface.raster}
}

func (r *surfaceRenderer) Destroy() {}
