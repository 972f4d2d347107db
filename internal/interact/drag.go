// Package interact turns pointer and keyboard input into placement mutations.
//
// Both controllers are explicit state machines whose listener registration is
// an entry action and whose deregistration is the matching exit action, so a
// controller is listening exactly when its state says it should be.
package interact

import (
	"log/slog"

	"sigil-overlay/internal/placement"
	"sigil-overlay/pkg/geometry"
)

// PointerListener receives pointer events from a global source, including
// events that happen outside the drawing surface.
type PointerListener interface {
	PointerMoved(p geometry.Point2D)
	PointerReleased(p geometry.Point2D)
}

// PointerSource delivers global pointer events to a listener until the
// returned cancel function is called.
type PointerSource interface {
	ListenPointer(l PointerListener) (cancel func())
}

// DragState is the state of a DragController.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "Dragging"
	}
	return "Idle"
}

// DragController moves a single mark while the pointer is held.
type DragController struct {
	store  *placement.Store
	source PointerSource
	log    *slog.Logger

	state  DragState
	index  int
	offset geometry.Point2D
	cancel func()
}

// NewDragController creates an idle controller mutating store. The
// controller follows structural changes to the store so its handle never
// points at a different mark than the one pressed.
func NewDragController(store *placement.Store, source PointerSource, log *slog.Logger) *DragController {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	d := &DragController{
		store:  store,
		source: source,
		log:    log,
		index:  -1,
	}
	store.OnChange(d.storeChanged)
	return d
}

func (d *DragController) storeChanged(c placement.Change) {
	if d.state != Dragging {
		return
	}
	switch c.Kind {
	case placement.MarksReplaced:
		d.exit()
	case placement.MarkRemoved:
		switch {
		case c.Index == d.index:
			d.exit()
		case c.Index < d.index:
			d.index--
		}
	case placement.MarksScaled:
		d.offset = d.offset.Scale(c.Factor)
	}
}

// State returns the current state.
func (d *DragController) State() DragState {
	return d.state
}

// Index returns the mark being dragged, or -1 when idle.
func (d *DragController) Index() int {
	if d.state != Dragging {
		return -1
	}
	return d.index
}

// Press starts dragging mark index with the pointer at p. The offset between
// pointer and mark is kept for the whole drag so the mark does not jump under
// the pointer. The pressed mark becomes the selection.
func (d *DragController) Press(index int, p geometry.Point2D) bool {
	mark, ok := d.store.At(index)
	if !ok {
		return false
	}
	if d.state == Dragging {
		d.exit()
	}

	d.store.Select(index)
	d.enter(index, p.Sub(mark.Position()))
	return true
}

// PointerMoved moves the dragged mark so that it keeps its press offset.
func (d *DragController) PointerMoved(p geometry.Point2D) {
	if d.state != Dragging {
		return
	}
	mark, ok := d.store.At(d.index)
	if !ok {
		d.exit()
		return
	}
	d.store.UpdateAt(d.index, mark.WithPosition(p.Sub(d.offset)))
}

// PointerReleased ends the drag wherever the pointer is.
func (d *DragController) PointerReleased(geometry.Point2D) {
	d.Release()
}

// Release returns the controller to Idle unconditionally.
func (d *DragController) Release() {
	if d.state == Dragging {
		d.exit()
	}
}

func (d *DragController) enter(index int, offset geometry.Point2D) {
	d.state = Dragging
	d.index = index
	d.offset = offset
	if d.source != nil {
		d.cancel = d.source.ListenPointer(d)
	}
	d.log.Debug("drag start", "index", index, "offset_x", offset.X, "offset_y", offset.Y)
}

func (d *DragController) exit() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.log.Debug("drag end", "index", d.index)
	d.state = Idle
	d.index = -1
	d.offset = geometry.Point2D{}
}
