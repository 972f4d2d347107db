// Package params holds the numeric render parameters that users type into
// text inputs.
package params

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrNotNumber  = errors.New("not a number")
	ErrOutOfRange = errors.New("out of range")
)

// Ranges accepted by the size and opacity inputs.
const (
	SizeMin    = 0.0
	SizeMax    = 300.0
	OpacityMin = 0.0
	OpacityMax = 100.0
)

// Control is a bounded numeric input. It keeps the raw text exactly as typed
// separately from the effective value, which only ever holds a parsed,
// in-range number.
type Control struct {
	name     string
	min, max float64
	text     string
	value    float64
}

// NewControl creates a control with an initial value. An initial value
// outside [min, max] is clamped.
func NewControl(name string, min, max, initial float64) *Control {
	v := math.Max(min, math.Min(max, initial))
	return &Control{
		name:  name,
		min:   min,
		max:   max,
		text:  format(v),
		value: v,
	}
}

// NewSizeControl returns the sigil size control, a percentage in [0, 300].
func NewSizeControl(initial float64) *Control {
	return NewControl("size", SizeMin, SizeMax, initial)
}

// NewOpacityControl returns the sigil opacity control, a percentage in [0, 100].
func NewOpacityControl(initial float64) *Control {
	return NewControl("opacity", OpacityMin, OpacityMax, initial)
}

// Name returns the control's name.
func (c *Control) Name() string { return c.name }

// Range returns the accepted bounds.
func (c *Control) Range() (min, max float64) { return c.min, c.max }

// Text returns the raw text last entered.
func (c *Control) Text() string { return c.text }

// Value returns the effective value.
func (c *Control) Value() float64 { return c.value }

// SetText records raw and, if it parses to a finite number within range,
// makes it the effective value. It reports whether the value was accepted.
func (c *Control) SetText(raw string) bool {
	c.text = raw
	v, ok := c.parse(raw)
	if !ok {
		return false
	}
	c.value = v
	return true
}

// SetValue sets both the value and its text, as a slider would. Out of range
// values are rejected.
func (c *Control) SetValue(v float64) bool {
	if !c.inRange(v) {
		return false
	}
	c.value = v
	c.text = format(v)
	return true
}

// Valid reports whether the raw text currently matches an accepted value.
func (c *Control) Valid() bool {
	_, ok := c.parse(c.text)
	return ok
}

func (c *Control) parse(raw string) (float64, bool) {
	v, err := Parse(raw, c.min, c.max)
	return v, err == nil
}

func (c *Control) inRange(v float64) bool {
	return inRange(v, c.min, c.max)
}

// Parse reads raw as a finite number within [min, max]. Surrounding spaces
// are ignored.
func Parse(raw string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q: %w", raw, ErrNotNumber)
	}
	if !inRange(v, min, max) {
		return 0, fmt.Errorf("%s must be between %s and %s: %w", format(v), format(min), format(max), ErrOutOfRange)
	}
	return v, nil
}

func inRange(v, min, max float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= min && v <= max
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
