package bsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitFET(t *testing.T) {
	tests := []struct {
		name            string
		vnew, vold, vto float64
		want            float64
		clamped         bool
	}{
		{"middle region rising", 8, 1, 0.5, 4.5, true},
		{"middle region falling", -2, 1, 0.5, 0, true},
		{"middle region small step", 1.2, 1, 0.5, 1.2, false},
		{"off rising past threshold", 3, 0, 0.5, 1, true},
		{"off rising within bound", 0.3, 0, 0.5, 0.3, false},
		{"on going off", 4.1, 10, 0.5, 4.1, false},
		{"on large step within bound", 30, 10, 0.5, 30, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := LimitFET(tt.vnew, tt.vold, tt.vto)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.Equal(t, tt.clamped, clamped)
		})
	}
}

func TestLimitVds(t *testing.T) {
	v, hit := LimitVds(10, 1)
	assert.Equal(t, 4.0, v)
	assert.True(t, hit)

	v, hit = LimitVds(-3, 1)
	assert.Equal(t, -0.5, v)
	assert.True(t, hit)

	v, hit = LimitVds(20, 5)
	assert.Equal(t, 17.0, v)
	assert.True(t, hit)

	v, hit = LimitVds(1, 5)
	assert.Equal(t, 2.0, v)
	assert.True(t, hit)
}

func TestLimitJunction(t *testing.T) {
	const vt, vcrit = 0.025, 0.6

	v, hit := LimitJunction(2, 0.5, vt, vcrit)
	assert.True(t, hit)
	assert.Less(t, v, 2.0)
	assert.Greater(t, v, 0.5)

	v, hit = LimitJunction(0.4, 0.3, vt, vcrit)
	assert.False(t, hit)
	assert.Equal(t, 0.4, v)

	// Reverse steps are bounded
	v, hit = LimitJunction(-10, 0, vt, vcrit)
	assert.True(t, hit)
	assert.Equal(t, -1.0, v)
}

// An iterate that did not move is never limited.
func TestLimitersFixedPoint(t *testing.T) {
	for x := -5.0; x <= 10; x += 0.25 {
		for _, vto := range []float64{-0.7, 0, 0.4, 0.7} {
			v, hit := LimitFET(x, x, vto)
			assert.False(t, hit, "fet x=%g vto=%g", x, vto)
			assert.Equal(t, x, v)
		}
		v, hit := LimitVds(x, x)
		assert.False(t, hit, "vds x=%g", x)
		assert.Equal(t, x, v)

		v, hit = LimitJunction(x, x, 0.025, 0.6)
		assert.False(t, hit, "junction x=%g", x)
		assert.Equal(t, x, v)
	}
}

func TestLimitJunctionBoundsForwardStep(t *testing.T) {
	const vt, vcrit = 0.026, 0.65
	for vold := 0.1; vold < 0.9; vold += 0.1 {
		for vnew := vcrit; vnew < 5; vnew += 0.3 {
			v, _ := LimitJunction(vnew, vold, vt, vcrit)
			assert.LessOrEqual(t, v, vnew)
			// Repeated application from the same start makes progress but stays bounded
			w, _ := LimitJunction(v, vold, vt, vcrit)
			assert.LessOrEqual(t, w, v+1e-12)
		}
	}
}
