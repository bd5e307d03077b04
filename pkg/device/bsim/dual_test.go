package bsim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDualDerivatives(t *testing.T) {
	fns := map[string]func(x dual) dual{
		"mul":      func(x dual) dual { return x.mul(x.addc(1)) },
		"div":      func(x dual) dual { return x.addc(2).div(x.sq().addc(1)) },
		"recip":    func(x dual) dual { return x.addc(3).recip() },
		"sqrt":     func(x dual) dual { return x.addc(2).sqrt() },
		"exp":      func(x dual) dual { return x.scale(3).exp() },
		"log":      func(x dual) dual { return x.addc(2).log() },
		"pow":      func(x dual) dual { return x.addc(2).pow(1.7) },
		"expLim":   func(x dual) dual { return x.scale(20).expLim() },
		"ramp":     func(x dual) dual { return smoothRamp(x, 0.01) },
		"scTheta":  func(x dual) dual { return scTheta(x.addc(2)) },
		"onePlus":  func(x dual) dual { return onePlus(x.scale(2)) },
		"dvt":      func(x dual) dual { return dvtFactor(x) },
		"softPlus": func(x dual) dual { return softPlus(x, 0.05) },
	}
	const h = 1e-7
	for name, f := range fns {
		for _, x0 := range []float64{-0.7, -0.2, 0.3, 1.1} {
			got := f(variable(x0, tG))
			fd := (f(cnst(x0+h)).v - f(cnst(x0-h)).v) / (2 * h)
			assert.InDelta(t, fd, got.d[tG], 1e-5*math.Max(1, math.Abs(fd)), "%s at %g", name, x0)
			for k := range got.d {
				if k != tG {
					assert.Zero(t, got.d[k])
				}
			}
		}
	}
}

func TestDualMinMaxKeepGradient(t *testing.T) {
	a := variable(1, tD)
	b := variable(2, tS)
	assert.Equal(t, a, dmin(a, b))
	assert.Equal(t, b, dmax(a, b))
}
