package mathx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.1, Clamp(0.01, 0.1, 4))
	assert.Equal(t, 4.0, Clamp(9.0, 0.1, 4))
	assert.Equal(t, 2.5, Clamp(2.5, 0.1, 4))
	assert.Equal(t, 7.0, Clamp(7, 0.02, math.Inf(1)))
	assert.Equal(t, 3, Clamp(5, 0, 3))
}

func TestWithin(t *testing.T) {
	assert.True(t, Within(1, 1+1e-4, 1e-3, 0))
	assert.False(t, Within(1, 1.01, 1e-3, 0))
	// The absolute floor governs near zero
	assert.True(t, Within(0, 1e-7, 1e-3, 1e-6))
	assert.False(t, Within(0, 1e-5, 1e-3, 1e-6))
	assert.Equal(t, 3.0, AbsMax(-3, 2))
}
