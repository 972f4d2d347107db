package interact

import (
	"log/slog"

	"sigil-overlay/internal/placement"
)

// Step sizes for keyboard adjustment, in display units or degrees.
const (
	NudgeStep   = 5.0
	PreciseStep = 1.0
)

// Key is a keyboard key the nudge controller understands.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyRotateCCW // [
	KeyRotateCW  // ]
)

func (k Key) String() string {
	switch k {
	case KeyLeft:
		return "Left"
	case KeyRight:
		return "Right"
	case KeyUp:
		return "Up"
	case KeyDown:
		return "Down"
	case KeyRotateCCW:
		return "["
	case KeyRotateCW:
		return "]"
	default:
		return "None"
	}
}

// ParseKey maps a key name to a Key. Both DOM-style ("ArrowLeft") and short
// ("Left") arrow names are accepted.
func ParseKey(name string) Key {
	switch name {
	case "ArrowLeft", "Left":
		return KeyLeft
	case "ArrowRight", "Right":
		return KeyRight
	case "ArrowUp", "Up":
		return KeyUp
	case "ArrowDown", "Down":
		return KeyDown
	case "[", "BracketLeft":
		return KeyRotateCCW
	case "]", "BracketRight":
		return KeyRotateCW
	default:
		return KeyNone
	}
}

// KeyEvent is a key press. Precise is set while the fine-adjust modifier is held.
type KeyEvent struct {
	Key     Key
	Precise bool
}

// Amount returns the adjustment step for the event.
func (e KeyEvent) Amount() float64 {
	if e.Precise {
		return PreciseStep
	}
	return NudgeStep
}

// KeyListener receives key presses. It returns true when it consumed the key,
// in which case the caller suppresses the key's default behaviour.
type KeyListener interface {
	KeyPressed(ev KeyEvent) bool
}

// KeySource delivers key presses to a listener until cancel is called.
type KeySource interface {
	ListenKeys(l KeyListener) (cancel func())
}

// Adjust returns m moved or rotated by amount for key. The bool is false for
// keys that do not adjust anything.
func Adjust(m placement.Mark, key Key, amount float64) (placement.Mark, bool) {
	switch key {
	case KeyLeft:
		m.X -= amount
	case KeyRight:
		m.X += amount
	case KeyUp:
		m.Y -= amount
	case KeyDown:
		m.Y += amount
	case KeyRotateCCW:
		m.Rotation -= amount
	case KeyRotateCW:
		m.Rotation += amount
	default:
		return m, false
	}
	return m, true
}

// NudgeController adjusts the selected mark from the keyboard. It listens to
// the key source only while the store has a selection.
type NudgeController struct {
	store  *placement.Store
	source KeySource
	log    *slog.Logger
	cancel func()
}

// NewNudgeController binds a controller to store and starts tracking its
// selection.
func NewNudgeController(store *placement.Store, source KeySource, log *slog.Logger) *NudgeController {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	n := &NudgeController{store: store, source: source, log: log}
	store.OnChange(func(c placement.Change) {
		switch c.Kind {
		case placement.SelectionChanged, placement.MarksReplaced, placement.MarkRemoved:
			n.sync()
		}
	})
	n.sync()
	return n
}

// Listening reports whether the controller is registered with its key source.
func (n *NudgeController) Listening() bool {
	return n.cancel != nil
}

// KeyPressed applies ev to the selected mark.
func (n *NudgeController) KeyPressed(ev KeyEvent) bool {
	idx, ok := n.store.Selected()
	if !ok {
		return false
	}
	mark, ok := n.store.At(idx)
	if !ok {
		return false
	}
	next, ok := Adjust(mark, ev.Key, ev.Amount())
	if !ok {
		return false
	}
	n.store.UpdateAt(idx, next)
	n.log.Debug("nudge", "index", idx, "key", ev.Key.String(), "amount", ev.Amount())
	return true
}

// sync registers or deregisters the key listener to match the selection.
func (n *NudgeController) sync() {
	_, selected := n.store.Selected()
	switch {
	case selected && n.cancel == nil && n.source != nil:
		n.cancel = n.source.ListenKeys(n)
	case !selected && n.cancel != nil:
		n.cancel()
		n.cancel = nil
	}
}
