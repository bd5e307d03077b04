// Package mathx holds small numeric helpers shared by the device code.
package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AbsMax returns max(|a|, |b|).
func AbsMax(a, b float64) float64 {
	return math.Max(math.Abs(a), math.Abs(b))
}

// Within reports whether a and b agree to reltol*max(|a|,|b|) + abstol.
func Within(a, b, reltol, abstol float64) bool {
	return math.Abs(a-b) < reltol*AbsMax(a, b)+abstol
}
