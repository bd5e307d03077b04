package bsim

import (
	"math"

	"github.com/edp1096/toy-bsim/internal/consts"
)

// dual is a value together with its gradient over the local terminal voltages.
// Every quantity of the DC and charge chains is carried as a dual so that
// conductances and capacitances come out exact.
type dual struct {
	v float64
	d [nTerm]float64
}

func cnst(v float64) dual { return dual{v: v} }

// variable is the voltage of terminal t as an independent variable.
func variable(v float64, t int) dual {
	x := dual{v: v}
	x.d[t] = 1
	return x
}

// chain returns f(a) given f and f'(a).
func (a dual) chain(f, df float64) dual {
	r := dual{v: f}
	for i := range a.d {
		r.d[i] = df * a.d[i]
	}
	return r
}

func (a dual) add(b dual) dual {
	r := dual{v: a.v + b.v}
	for i := range a.d {
		r.d[i] = a.d[i] + b.d[i]
	}
	return r
}

func (a dual) sub(b dual) dual {
	r := dual{v: a.v - b.v}
	for i := range a.d {
		r.d[i] = a.d[i] - b.d[i]
	}
	return r
}

func (a dual) mul(b dual) dual {
	r := dual{v: a.v * b.v}
	for i := range a.d {
		r.d[i] = a.d[i]*b.v + a.v*b.d[i]
	}
	return r
}

func (a dual) div(b dual) dual {
	inv := 1.0 / b.v
	r := dual{v: a.v * inv}
	for i := range a.d {
		r.d[i] = (a.d[i] - r.v*b.d[i]) * inv
	}
	return r
}

func (a dual) addc(c float64) dual {
	a.v += c
	return a
}

func (a dual) scale(c float64) dual {
	return a.chain(a.v*c, c)
}

func (a dual) neg() dual { return a.scale(-1) }

func (a dual) recip() dual {
	inv := 1.0 / a.v
	return a.chain(inv, -inv*inv)
}

func (a dual) sq() dual { return a.mul(a) }

func (a dual) sqrt() dual {
	s := math.Sqrt(a.v)
	return a.chain(s, 0.5/s)
}

func (a dual) exp() dual {
	e := math.Exp(a.v)
	return a.chain(e, e)
}

func (a dual) log() dual {
	return a.chain(math.Log(a.v), 1.0/a.v)
}

func (a dual) pow(p float64) dual {
	f := math.Pow(a.v, p)
	return a.chain(f, p*f/a.v)
}

// expLim is exp(a) continued linearly above EXP_THRESHOLD and floored at MIN_EXP below -EXP_THRESHOLD.
func (a dual) expLim() dual {
	switch {
	case a.v > consts.EXP_THRESHOLD:
		return a.chain(consts.MAX_EXP*(1+a.v-consts.EXP_THRESHOLD), consts.MAX_EXP)
	case a.v < -consts.EXP_THRESHOLD:
		return cnst(consts.MIN_EXP)
	}
	return a.exp()
}

// smoothRamp is 0.5*(a + sqrt(a*a + 4*eps)), a positive smooth max(a, 0).
func smoothRamp(a dual, eps float64) dual {
	return a.add(a.sq().addc(4 * eps).sqrt()).scale(0.5)
}

func dmin(a, b dual) dual {
	if a.v < b.v {
		return a
	}
	return b
}

func dmax(a, b dual) dual {
	if a.v > b.v {
		return a
	}
	return b
}

// scTheta is 1/(2*(cosh(x)-1)), the short channel shape factor, written in its exponential form.
func scTheta(x dual) dual {
	if x.v < consts.EXP_THRESHOLD {
		t1 := x.exp()
		t2 := t1.addc(-1)
		t4 := t2.sq().add(t1.scale(2 * consts.MIN_EXP))
		return t1.div(t4)
	}
	return cnst(1.0 / (consts.MAX_EXP - 2.0))
}
