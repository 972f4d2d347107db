package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffineCompose_AppliesRightFirst(t *testing.T) {
	// translate then rotate 90deg: (1,0) -> (1,0)+(10,0) = (11,0) -> (0,11)
	m := Rotation(math.Pi / 2).Compose(Translation(10, 0))
	got := m.Apply(NewPoint2D(1, 0))
	assert.InDelta(t, 0, got.X, 1e-9)
	assert.InDelta(t, 11, got.Y, 1e-9)
}

func TestAffineInverse(t *testing.T) {
	m := Translation(5, -3).Compose(Rotation(0.7)).Compose(Scale(2, 4))
	inv, ok := m.Inverse()
	require.True(t, ok)

	p := NewPoint2D(12.5, -7.25)
	back := inv.Apply(m.Apply(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)

	_, ok = Scale(0, 1).Inverse()
	assert.False(t, ok)
}

func TestAff3Layout(t *testing.T) {
	m := AffineTransform{A: 1, B: 2, TX: 3, C: 4, D: 5, TY: 6}
	assert.Equal(t, [6]float64{1, 2, 3, 4, 5, 6}, [6]float64(m.Aff3()))
}

func TestIsFinite(t *testing.T) {
	assert.True(t, NewPoint2D(1, -1).IsFinite())
	assert.False(t, NewPoint2D(math.NaN(), 0).IsFinite())
	assert.False(t, NewPoint2D(0, math.Inf(-1)).IsFinite())
}

func TestSizeMinSide(t *testing.T) {
	assert.Equal(t, 600.0, NewSize(800, 600).MinSide())
	assert.Equal(t, 10.0, NewSize(10, 20).MinSide())
}
