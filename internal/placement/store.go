// Package placement holds the ordered collection of placed sigil marks and
// the current selection.
package placement

import (
	"math"

	"sigil-overlay/pkg/geometry"

	"gonum.org/v1/gonum/spatial/r2"
)

// Mark is one placed sigil instance. X and Y are display-space coordinates;
// Rotation is in degrees and is not wrapped.
type Mark struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

// NewMark creates a mark at p with no rotation.
func NewMark(p geometry.Point2D) Mark {
	return Mark{X: p.X, Y: p.Y}
}

// Position returns the mark's display-space position.
func (m Mark) Position() geometry.Point2D {
	return geometry.Point2D{X: m.X, Y: m.Y}
}

// WithPosition returns a copy of m moved to p, rotation preserved.
func (m Mark) WithPosition(p geometry.Point2D) Mark {
	m.X, m.Y = p.X, p.Y
	return m
}

// Valid reports whether every field is a finite number.
func (m Mark) Valid() bool {
	return geometry.IsFinite(m.X) && geometry.IsFinite(m.Y) && geometry.IsFinite(m.Rotation)
}

// ChangeKind identifies what a Change did to the store.
type ChangeKind int

const (
	MarksReplaced ChangeKind = iota
	MarkAdded
	MarkUpdated
	MarkRemoved
	MarksScaled
	SelectionChanged
)

func (k ChangeKind) String() string {
	switch k {
	case MarksReplaced:
		return "MarksReplaced"
	case MarkAdded:
		return "MarkAdded"
	case MarkUpdated:
		return "MarkUpdated"
	case MarkRemoved:
		return "MarkRemoved"
	case MarksScaled:
		return "MarksScaled"
	case SelectionChanged:
		return "SelectionChanged"
	default:
		return "Unknown"
	}
}

// Change describes a single mutation. Index is the affected mark, or -1 when
// the change is not about one mark. Factor is set for MarksScaled.
type Change struct {
	Kind   ChangeKind
	Index  int
	Factor float64
}

// ChangeListener is called after the store has been mutated.
type ChangeListener func(Change)

// Store is the single source of truth for marks and selection.
//
// A Store is owned by one event loop and is not safe for concurrent use.
type Store struct {
	marks     []Mark
	selected  int
	listeners []ChangeListener
}

// NewStore creates an empty store with no selection.
func NewStore() *Store {
	return &Store{selected: -1}
}

// OnChange registers a listener for every subsequent mutation.
func (s *Store) OnChange(listener ChangeListener) {
	s.listeners = append(s.listeners, listener)
}

func (s *Store) emit(kind ChangeKind, index int) {
	s.notify(Change{Kind: kind, Index: index})
}

func (s *Store) notify(c Change) {
	for _, l := range s.listeners {
		l(c)
	}
}

// Len returns the number of marks.
func (s *Store) Len() int {
	return len(s.marks)
}

// Marks returns a copy of the collection in order.
func (s *Store) Marks() []Mark {
	out := make([]Mark, len(s.marks))
	copy(out, s.marks)
	return out
}

// At returns the mark at index i.
func (s *Store) At(i int) (Mark, bool) {
	if i < 0 || i >= len(s.marks) {
		return Mark{}, false
	}
	return s.marks[i], true
}

// ReplaceAll swaps in a new collection and clears the selection. Marks with
// non-finite fields are dropped.
func (s *Store) ReplaceAll(marks []Mark) {
	next := make([]Mark, 0, len(marks))
	for _, m := range marks {
		if m.Valid() {
			next = append(next, m)
		}
	}
	s.marks = next
	hadSelection := s.selected >= 0
	s.selected = -1
	s.emit(MarksReplaced, -1)
	if hadSelection {
		s.emit(SelectionChanged, -1)
	}
}

// Append adds a mark at the end and selects it. It returns the new index, or
// -1 if the mark was rejected.
func (s *Store) Append(m Mark) int {
	if !m.Valid() {
		return -1
	}
	s.marks = append(s.marks, m)
	idx := len(s.marks) - 1
	s.emit(MarkAdded, idx)
	s.setSelected(idx)
	return idx
}

// UpdateAt replaces the mark at index i. Out-of-range indices and invalid
// marks leave the store untouched; a drag holding a stale index must not
// disturb other marks.
func (s *Store) UpdateAt(i int, m Mark) bool {
	if i < 0 || i >= len(s.marks) || !m.Valid() {
		return false
	}
	s.marks[i] = m
	s.emit(MarkUpdated, i)
	return true
}

// RemoveAt deletes the mark at index i, shifting later marks down by one.
func (s *Store) RemoveAt(i int) bool {
	if i < 0 || i >= len(s.marks) {
		return false
	}
	s.marks = append(s.marks[:i], s.marks[i+1:]...)
	s.emit(MarkRemoved, i)

	switch {
	case s.selected == i:
		s.setSelected(-1)
	case s.selected > i:
		s.setSelected(s.selected - 1)
	}
	return true
}

// Clear removes every mark and the selection.
func (s *Store) Clear() {
	s.ReplaceAll(nil)
}

// Select makes index i the selection. An invalid index clears it.
func (s *Store) Select(i int) {
	if i < 0 || i >= len(s.marks) {
		i = -1
	}
	s.setSelected(i)
}

// ClearSelection removes the selection, if any.
func (s *Store) ClearSelection() {
	s.setSelected(-1)
}

// Selected returns the selected index.
func (s *Store) Selected() (int, bool) {
	return s.selected, s.selected >= 0
}

func (s *Store) setSelected(i int) {
	if s.selected == i {
		return
	}
	s.selected = i
	s.emit(SelectionChanged, i)
}

// Scale multiplies every mark position by factor. Used when the display scale
// changes so marks stay on the same source pixels.
func (s *Store) Scale(factor float64) {
	if len(s.marks) == 0 || factor == 1 || !(factor > 0) {
		return
	}
	for i := range s.marks {
		s.marks[i].X *= factor
		s.marks[i].Y *= factor
	}
	s.notify(Change{Kind: MarksScaled, Index: -1, Factor: factor})
}

// HitTest returns the topmost mark whose square footprint of the given half
// size contains p. Footprints are rotated with their mark, and later marks
// win because they are drawn on top.
func (s *Store) HitTest(p geometry.Point2D, halfSize float64) (int, bool) {
	if halfSize <= 0 {
		return -1, false
	}
	for i := len(s.marks) - 1; i >= 0; i-- {
		m := s.marks[i]
		centre := r2.Vec{X: m.X, Y: m.Y}
		local := r2.Sub(r2.Rotate(r2.Vec{X: p.X, Y: p.Y}, -geometry.Degrees(m.Rotation), centre), centre)
		if math.Abs(local.X) <= halfSize && math.Abs(local.Y) <= halfSize {
			return i, true
		}
	}
	return -1, false
}
