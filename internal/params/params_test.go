package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpacityOutOfRangeKeepsRawText(t *testing.T) {
	c := NewOpacityControl(35)

	assert.False(t, c.SetText("150"))
	assert.Equal(t, "150", c.Text())
	assert.Equal(t, 35.0, c.Value())
	assert.False(t, c.Valid())
}

func TestIntermediateTyping(t *testing.T) {
	c := NewSizeControl(25)

	for _, raw := range []string{"", "-", "1e", "abc", "NaN", "Inf", "-0.5", "300.01"} {
		assert.False(t, c.SetText(raw), "raw=%q", raw)
		assert.Equal(t, raw, c.Text())
		assert.Equal(t, 25.0, c.Value(), "raw=%q", raw)
	}

	assert.True(t, c.SetText(" 120 "))
	assert.Equal(t, 120.0, c.Value())
	assert.True(t, c.SetText("300"))
	assert.Equal(t, 300.0, c.Value())
	assert.True(t, c.SetText("0"))
	assert.Equal(t, 0.0, c.Value())
}

func TestSetValue(t *testing.T) {
	c := NewOpacityControl(35)
	c.SetText("oops")

	assert.True(t, c.SetValue(60))
	assert.Equal(t, "60", c.Text())
	assert.True(t, c.Valid())

	assert.False(t, c.SetValue(101))
	assert.Equal(t, 60.0, c.Value())
}

func TestNewControlClampsInitial(t *testing.T) {
	c := NewOpacityControl(250)
	assert.Equal(t, 100.0, c.Value())
	lo, hi := c.Range()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 100.0, hi)
	assert.Equal(t, "opacity", c.Name())
}

func TestParse(t *testing.T) {
	v, err := Parse(" 42.5 ", SizeMin, SizeMax)
	assert.NoError(t, err)
	assert.Equal(t, 42.5, v)

	_, err = Parse("abc", SizeMin, SizeMax)
	assert.ErrorIs(t, err, ErrNotNumber)

	_, err = Parse("NaN", SizeMin, SizeMax)
	assert.ErrorIs(t, err, ErrNotNumber)

	_, err = Parse("150", OpacityMin, OpacityMax)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.EqualError(t, err, "150 must be between 0 and 100: out of range")
}
