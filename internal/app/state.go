// Package app provides the editing session: the loaded image, its marks, the
// active sigil and the render parameters, plus the events the UI listens to.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"sigil-overlay/internal/assets"
	"sigil-overlay/internal/detect"
	"sigil-overlay/internal/interact"
	"sigil-overlay/internal/params"
	"sigil-overlay/internal/placement"
	"sigil-overlay/internal/render"
	"sigil-overlay/internal/transform"
	"sigil-overlay/pkg/geometry"
)

// ErrNoImage is returned by operations that need a base image.
var ErrNoImage = errors.New("no image loaded")

// EventType identifies different session events.
type EventType int

const (
	EventImageLoaded EventType = iota
	EventImageCleared
	EventScaleChanged
	EventMarksChanged
	EventDetecting
	EventSigilChanged
	EventSigilsListed
	EventParamsChanged
	EventRedraw
	EventNotice
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NoticeLevel grades a user-visible notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

// Notice is a non-fatal message for the user. Every failure in a session ends
// as a notice; none of them end the session.
type Notice struct {
	Level   NoticeLevel
	Title   string
	Message string
}

type pendingEvent struct {
	event EventType
	data  interface{}
}

// State is one editing session.
//
// All session data is guarded by a single lock that plays the role of an
// event loop: exported methods run under it one at a time, detection and
// asset loads run elsewhere and re-enter through Do with their result.
// Events raised while the lock is held are delivered after it is released,
// so listeners may call back into the State.
type State struct {
	mu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
	run    func(func())

	detector detect.Detector
	assets   assets.Store
	renderer *render.Renderer

	marks   *placement.Store
	size    *params.Control
	opacity *params.Control
	eyes    detect.Eyes

	drag  *interact.DragController
	nudge *interact.NudgeController

	base          image.Image
	baseName      string
	viewportWidth float64
	scale         float64

	generation   uint64
	cancelDetect context.CancelFunc
	detecting    bool

	sigil     image.Image
	sigilName string
	sigilGen  uint64

	pending []pendingEvent
	jobs    []func()

	listenersMu sync.RWMutex
	listeners   map[EventType][]EventListener
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *State) { s.log = log }
}

// WithDetector sets the landmark detector. Without one, detection reports
// that nothing was found.
func WithDetector(d detect.Detector) Option {
	return func(s *State) { s.detector = d }
}

// WithAssets sets the sigil store.
func WithAssets(a assets.Store) Option {
	return func(s *State) { s.assets = a }
}

// WithRenderer sets the renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(s *State) { s.renderer = r }
}

// WithRunner sets how background work is started. The default starts a
// goroutine per job.
func WithRunner(run func(func())) Option {
	return func(s *State) { s.run = run }
}

// WithParams sets the initial size and opacity percentages.
func WithParams(sizePercent, opacityPercent float64) Option {
	return func(s *State) {
		s.size = params.NewSizeControl(sizePercent)
		s.opacity = params.NewOpacityControl(opacityPercent)
	}
}

// WithViewportWidth sets the initial width of the display surface.
func WithViewportWidth(w float64) Option {
	return func(s *State) { s.viewportWidth = w }
}

// NewState creates an empty session.
func NewState(opts ...Option) *State {
	s := &State{
		marks:     placement.NewStore(),
		size:      params.NewSizeControl(25),
		opacity:   params.NewOpacityControl(35),
		eyes:      detect.BothEyes,
		run:       func(f func()) { go f() },
		listeners: make(map[EventType][]EventListener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.renderer == nil {
		s.renderer = render.NewRenderer(render.InterpCatmullRom, s.log)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.marks.OnChange(func(c placement.Change) {
		s.queue(EventMarksChanged, c)
		s.queue(EventRedraw, nil)
	})
	return s
}

// Close cancels any background work still in flight.
func (s *State) Close() {
	s.cancel()
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.listenersMu.RLock()
	listeners := s.listeners[event]
	s.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Do runs f with exclusive access to the session, then delivers the events f
// raised and starts the background jobs it scheduled. f must not call other
// exported State methods.
func (s *State) Do(f func()) {
	s.mu.Lock()
	f()
	events, jobs := s.pending, s.jobs
	s.pending, s.jobs = nil, nil
	s.mu.Unlock()

	for _, e := range events {
		s.Emit(e.event, e.data)
	}
	for _, job := range jobs {
		s.run(job)
	}
}

func (s *State) queue(event EventType, data interface{}) {
	s.pending = append(s.pending, pendingEvent{event: event, data: data})
}

func (s *State) spawn(job func()) {
	s.jobs = append(s.jobs, job)
}

func (s *State) notify(level NoticeLevel, title, message string) {
	switch level {
	case NoticeError:
		s.log.Error(title, "detail", message)
	case NoticeWarning:
		s.log.Warn(title, "detail", message)
	default:
		s.log.Info(title, "detail", message)
	}
	s.queue(EventNotice, Notice{Level: level, Title: title, Message: message})
}

// BindInput attaches the pointer and key sources that drive dragging and
// nudging. Events from either source must be delivered through Do.
func (s *State) BindInput(pointer interact.PointerSource, keys interact.KeySource) {
	s.Do(func() {
		s.drag = interact.NewDragController(s.marks, pointer, s.log.With("component", "drag"))
		s.nudge = interact.NewNudgeController(s.marks, keys, s.log.With("component", "nudge"))
	})
}

// Marks returns a copy of the current marks.
func (s *State) Marks() []placement.Mark {
	var out []placement.Mark
	s.Do(func() { out = s.marks.Marks() })
	return out
}

// Selected returns the selected mark index.
func (s *State) Selected() (int, bool) {
	var (
		idx int
		ok  bool
	)
	s.Do(func() { idx, ok = s.marks.Selected() })
	return idx, ok
}

// HasImage reports whether a base image is loaded.
func (s *State) HasImage() bool {
	var ok bool
	s.Do(func() { ok = s.base != nil })
	return ok
}

// Scale returns the current display scale, or 0 with no image.
func (s *State) Scale() float64 {
	var v float64
	s.Do(func() { v = s.scale })
	return v
}

// DisplaySize returns the size of the display surface.
func (s *State) DisplaySize() geometry.Size {
	var sz geometry.Size
	s.Do(func() {
		if s.base != nil {
			sz = transform.DisplaySize(sourceSize(s.base), s.scale)
		}
	})
	return sz
}

// ImageName returns the name the base image was loaded under.
func (s *State) ImageName() string {
	var name string
	s.Do(func() { name = s.baseName })
	return name
}

// Detecting reports whether a detection pass is in flight.
func (s *State) Detecting() bool {
	var v bool
	s.Do(func() { v = s.detecting })
	return v
}

func sourceSize(img image.Image) geometry.Size {
	b := img.Bounds()
	return geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// LoadImage makes img the base image, discards all marks and starts a
// detection pass. Results of any earlier pass are ignored from now on.
func (s *State) LoadImage(img image.Image, name string) error {
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("load %s: %w", name, transform.ErrInvalidDimensions)
	}
	var err error
	s.Do(func() {
		width := s.viewportWidth
		if !(width > 0) {
			width = float64(img.Bounds().Dx())
		}
		var scale float64
		scale, err = transform.FitScale(width, float64(img.Bounds().Dx()))
		if err != nil {
			return
		}

		s.generation++
		s.stopDetection()
		s.base = img
		s.baseName = name
		s.scale = scale
		s.marks.Clear()
		s.log.Info("image loaded", "name", name,
			"width", img.Bounds().Dx(), "height", img.Bounds().Dy(), "scale", scale)

		s.queue(EventImageLoaded, name)
		s.queue(EventScaleChanged, scale)
		s.queue(EventRedraw, nil)
		s.startDetection()
	})
	return err
}

// LoadImageFile decodes the image at path and loads it.
func (s *State) LoadImageFile(path string) error {
	img, err := assets.LoadImageFile(path)
	if err != nil {
		return err
	}
	return s.LoadImage(img, path)
}

// ClearImage drops the base image and its marks.
func (s *State) ClearImage() {
	s.Do(func() {
		if s.base == nil {
			return
		}
		s.generation++
		s.stopDetection()
		s.base = nil
		s.baseName = ""
		s.scale = 0
		s.marks.Clear()
		s.queue(EventImageCleared, nil)
		s.queue(EventRedraw, nil)
	})
}

// SetViewportWidth changes the width of the display surface. Marks are
// carried to the new scale so they stay on the same source pixels.
func (s *State) SetViewportWidth(w float64) error {
	var err error
	s.Do(func() {
		if w == s.viewportWidth {
			return
		}
		if s.base == nil {
			if !(w > 0) {
				err = fmt.Errorf("viewport width %v: %w", w, transform.ErrInvalidDimensions)
				return
			}
			s.viewportWidth = w
			return
		}
		var scale float64
		scale, err = transform.FitScale(w, float64(s.base.Bounds().Dx()))
		if err != nil {
			return
		}
		s.viewportWidth = w
		if scale == s.scale {
			return
		}
		s.marks.Scale(scale / s.scale)
		s.scale = scale
		s.queue(EventScaleChanged, scale)
		s.queue(EventRedraw, nil)
	})
	return err
}

// Detect runs detection again on the current image. A pass still in flight
// is superseded and its result ignored.
func (s *State) Detect() {
	s.Do(func() {
		if s.base == nil {
			s.notify(NoticeWarning, "No image", "Load an image first")
			return
		}
		s.generation++
		s.stopDetection()
		s.startDetection()
	})
}

// SetEyes chooses which detected eyes become marks on the next detection.
func (s *State) SetEyes(eyes detect.Eyes) {
	s.Do(func() {
		s.eyes = eyes
		s.queue(EventParamsChanged, nil)
	})
}

// Eyes returns the enabled eyes.
func (s *State) Eyes() detect.Eyes {
	var e detect.Eyes
	s.Do(func() { e = s.eyes })
	return e
}

func (s *State) stopDetection() {
	if s.cancelDetect != nil {
		s.cancelDetect()
		s.cancelDetect = nil
	}
	if s.detecting {
		s.detecting = false
		s.queue(EventDetecting, false)
	}
}

func (s *State) startDetection() {
	if s.detector == nil {
		s.notify(NoticeWarning, "Detection unavailable", "Place sigils manually")
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelDetect = cancel
	s.detecting = true
	s.queue(EventDetecting, true)

	gen := s.generation
	img := s.base
	det := s.detector
	s.spawn(func() {
		pts, err := det.Detect(ctx, img)
		s.Do(func() { s.applyDetection(gen, pts, err) })
	})
}

func (s *State) applyDetection(gen uint64, pts []geometry.Point2D, err error) {
	if gen != s.generation || s.base == nil {
		s.log.Debug("discarding stale detection", "generation", gen, "current", s.generation)
		return
	}
	if s.cancelDetect != nil {
		s.cancelDetect()
		s.cancelDetect = nil
	}
	s.detecting = false
	s.queue(EventDetecting, false)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("detection failed", "error", err)
		s.notify(NoticeError, "Detection failed", "Try manual placement or a different image")
		return
	}

	pts = s.eyes.Filter(detect.Arrange(pts))
	if len(pts) == 0 {
		s.notify(NoticeWarning, "No faces detected", "Try manual placement or adjust the image")
		return
	}

	src := sourceSize(s.base)
	marks := make([]placement.Mark, 0, len(pts))
	for _, p := range pts {
		marks = append(marks, placement.NewMark(transform.NormalizedToDisplay(p, src.Width, src.Height, s.scale)))
	}
	s.marks.ReplaceAll(marks)

	noun := "eyes"
	if len(marks) == 1 {
		noun = "eye"
	}
	s.notify(NoticeInfo, "Success", fmt.Sprintf("Found %d %s", len(marks), noun))
}

// AddManualMark places a new mark in the middle of the display surface and
// selects it.
func (s *State) AddManualMark() (int, error) {
	idx := -1
	var err error
	s.Do(func() {
		if s.base == nil {
			err = ErrNoImage
			return
		}
		src := sourceSize(s.base)
		idx = s.marks.Append(placement.Mark{
			X: src.Width * s.scale / 2,
			Y: src.Height * s.scale / 2,
		})
	})
	return idx, err
}

// RemoveSelected deletes the selected mark.
func (s *State) RemoveSelected() bool {
	var ok bool
	s.Do(func() {
		if idx, sel := s.marks.Selected(); sel {
			ok = s.marks.RemoveAt(idx)
		}
	})
	return ok
}

// PressAt handles a pointer press in display space. A press on a mark starts
// dragging it; a press on the background clears the selection.
func (s *State) PressAt(p geometry.Point2D) bool {
	var hit bool
	s.Do(func() {
		idx, ok := s.marks.HitTest(p, render.HitHalfSize)
		if !ok {
			if s.drag != nil {
				s.drag.Release()
			}
			s.marks.ClearSelection()
			return
		}
		if s.drag != nil {
			hit = s.drag.Press(idx, p)
			return
		}
		s.marks.Select(idx)
		hit = true
	})
	return hit
}

// Dragging reports whether a mark is being dragged.
func (s *State) Dragging() bool {
	var v bool
	s.Do(func() { v = s.drag != nil && s.drag.State() == interact.Dragging })
	return v
}

// SetSizeText records typed size input. It reports whether the value was
// accepted as the new effective size.
func (s *State) SetSizeText(raw string) bool {
	return s.setText(s.size, raw)
}

// SetOpacityText records typed opacity input.
func (s *State) SetOpacityText(raw string) bool {
	return s.setText(s.opacity, raw)
}

func (s *State) setText(c *params.Control, raw string) bool {
	var ok bool
	s.Do(func() {
		before := c.Value()
		ok = c.SetText(raw)
		s.queue(EventParamsChanged, c.Name())
		if ok && c.Value() != before {
			s.queue(EventRedraw, nil)
		}
	})
	return ok
}

// SetSize sets the size percentage directly, as a slider does.
func (s *State) SetSize(v float64) bool {
	return s.setValue(s.size, v)
}

// SetOpacity sets the opacity percentage directly.
func (s *State) SetOpacity(v float64) bool {
	return s.setValue(s.opacity, v)
}

func (s *State) setValue(c *params.Control, v float64) bool {
	var ok bool
	s.Do(func() {
		before := c.Value()
		ok = c.SetValue(v)
		if ok && v != before {
			s.queue(EventParamsChanged, c.Name())
			s.queue(EventRedraw, nil)
		}
	})
	return ok
}

// ControlState is a snapshot of one numeric input.
type ControlState struct {
	Text  string
	Value float64
	Valid bool
}

// SizeControl returns the size input's raw text and effective value.
func (s *State) SizeControl() ControlState {
	return s.control(s.size)
}

// OpacityControl returns the opacity input's raw text and effective value.
func (s *State) OpacityControl() ControlState {
	return s.control(s.opacity)
}

func (s *State) control(c *params.Control) ControlState {
	var cs ControlState
	s.Do(func() { cs = ControlState{Text: c.Text(), Value: c.Value(), Valid: c.Valid()} })
	return cs
}

// Params returns the effective render parameters.
func (s *State) Params() render.Params {
	var p render.Params
	s.Do(func() { p = s.params() })
	return p
}

func (s *State) params() render.Params {
	return render.Params{SizePercent: s.size.Value(), OpacityPercent: s.opacity.Value()}
}

// ListSigils fetches the built-in sigil names. The result arrives as
// EventSigilsListed with a []string.
func (s *State) ListSigils() {
	s.Do(func() {
		store := s.assets
		if store == nil {
			s.queue(EventSigilsListed, []string(nil))
			return
		}
		ctx := s.ctx
		s.spawn(func() {
			names, err := store.ListNames(ctx)
			s.Do(func() {
				if err != nil {
					s.log.Error("listing sigils", "error", err)
					s.notify(NoticeError, "Error", "Failed to list sigils")
					return
				}
				s.queue(EventSigilsListed, names)
			})
		})
	})
}

// SelectSigil loads the named sigil and makes it active. Until it arrives
// the previous sigil stays in use, and it stays in use if loading fails.
func (s *State) SelectSigil(name string) {
	s.Do(func() { s.selectSigil(name) })
}

func (s *State) selectSigil(name string) {
	if s.assets == nil {
		s.notify(NoticeError, "Error", "Failed to load sigil image")
		return
	}
	s.sigilGen++
	gen := s.sigilGen
	store := s.assets
	ctx := s.ctx
	s.spawn(func() {
		var img image.Image
		data, err := store.Fetch(ctx, name)
		if err == nil {
			img, err = assets.Decode(data)
		}
		s.Do(func() { s.applySigil(gen, name, img, err) })
	})
}

func (s *State) applySigil(gen uint64, name string, img image.Image, err error) {
	if gen != s.sigilGen {
		s.log.Debug("discarding stale sigil", "name", name)
		return
	}
	if err != nil {
		s.log.Error("loading sigil", "name", name, "error", err)
		s.notify(NoticeError, "Error", "Failed to load sigil image")
		return
	}
	s.sigil = img
	s.sigilName = name
	s.log.Info("sigil active", "name", name)
	s.queue(EventSigilChanged, name)
	s.queue(EventRedraw, nil)
}

// SigilName returns the name of the active sigil.
func (s *State) SigilName() string {
	var name string
	s.Do(func() { name = s.sigilName })
	return name
}

// UploadSigil stores a custom sigil and, once stored, makes it active.
func (s *State) UploadSigil(originalName string, data []byte) {
	s.Do(func() {
		store := s.assets
		if store == nil {
			s.notify(NoticeError, "Error", "Failed to upload custom sigil")
			return
		}
		ctx := s.ctx
		s.spawn(func() {
			name, err := store.Put(ctx, originalName, data)
			s.Do(func() {
				if err != nil {
					s.log.Error("uploading sigil", "name", originalName, "error", err)
					s.notify(NoticeError, "Error", "Failed to upload custom sigil")
					return
				}
				s.selectSigil(name)
			})
		})
	})
}

// Render composites the current marks onto the base image at source size.
func (s *State) Render() (*image.RGBA, error) {
	var (
		out *image.RGBA
		err error
	)
	s.Do(func() { out, err = s.render() })
	return out, err
}

func (s *State) render() (*image.RGBA, error) {
	if s.base == nil {
		return nil, ErrNoImage
	}
	return s.renderer.Render(s.base, s.marks.Marks(), s.sigil, s.params(), s.scale)
}

// Preview renders the composite at display size with grab handles drawn on.
func (s *State) Preview() (image.Image, error) {
	var (
		out image.Image
		err error
	)
	s.Do(func() {
		var full *image.RGBA
		full, err = s.render()
		if err != nil {
			return
		}
		sel, _ := s.marks.Selected()
		out, err = render.DrawHandles(render.ScaleToDisplay(full, s.scale), s.marks.Marks(), sel)
	})
	return out, err
}

// Export writes the composite as PNG.
func (s *State) Export(w io.Writer) error {
	img, err := s.Render()
	if err != nil {
		return err
	}
	return render.EncodePNG(w, img)
}
