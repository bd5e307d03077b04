package util

import "math"

type IntegrationMethod int

const (
	GearMethod IntegrationMethod = iota
	TrapezoidalMethod
)

// MaxOrder is the highest Gear order the integrator supports.
const MaxOrder = 6

type BackwardDifferentialFormula struct {
	coefficients []float64
	beta         float64
}

var BdfCoefficients = [6]BackwardDifferentialFormula{
	{[]float64{1.0}, 1.0},
	{[]float64{4.0 / 3.0, -1.0 / 3.0}, 2.0 / 3.0},
	{[]float64{18.0 / 11.0, -9.0 / 11.0, 2.0 / 11.0}, 6.0 / 11.0},
	{[]float64{48.0 / 25.0, -36.0 / 25.0, 16.0 / 25.0, -3.0 / 25.0}, 12.0 / 25.0},
	{[]float64{300.0 / 137.0, -300.0 / 137.0, 200.0 / 137.0, -75.0 / 137.0, 12.0 / 137.0}, 60.0 / 137.0},
	{[]float64{360.0 / 147.0, -450.0 / 147.0, 400.0 / 147.0, -225.0 / 147.0, 72.0 / 147.0, -10.0 / 147.0}, 60.0 / 147.0},
}

// Local truncation error constants per order.
var (
	gearTruncFactor = [MaxOrder]float64{0.5, 0.2222222222, 0.1363636364, 0.096, 0.07299270073, 0.05830903790}
	trapTruncFactor = [2]float64{0.5, 0.08333333333}
)

// ChargeState is one charge-storage state and its history.
// Index 0 is the time point being solved, 1 the last accepted point, and so on.
type ChargeState struct {
	Q  [MaxOrder + 2]float64 // Charge
	CQ [MaxOrder + 2]float64 // Integrated current dQ/dt
}

// Shift moves the history one slot back after a time point is accepted.
func (s *ChargeState) Shift() {
	for i := len(s.Q) - 1; i > 0; i-- {
		s.Q[i] = s.Q[i-1]
		s.CQ[i] = s.CQ[i-1]
	}
}

// Seed fills the history with the present value, used on the first transient point.
func (s *ChargeState) Seed() {
	for i := 1; i < len(s.Q); i++ {
		s.Q[i] = s.Q[0]
		s.CQ[i] = s.CQ[0]
	}
}

// Integrator is the reference implicit integration primitive: it turns a charge state into
// a companion conductance / equivalent current pair and bounds the local truncation error.
type Integrator struct {
	Method   IntegrationMethod
	Order    int
	Delta    float64              // Present step
	DeltaOld [MaxOrder + 2]float64 // DeltaOld[0] == Delta
	Xmu      float64              // Trapezoidal weighting, 0.5 is the classic rule

	Reltol float64
	Abstol float64
	Chgtol float64
	Trtol  float64

	ag [MaxOrder + 1]float64
}

func NewIntegrator(method IntegrationMethod, order int, dt float64) *Integrator {
	in := &Integrator{
		Method: method,
		Xmu:    0.5,
		Reltol: 1e-3,
		Abstol: 1e-12,
		Chgtol: 1e-14,
		Trtol:  7.0,
	}
	for i := range in.DeltaOld {
		in.DeltaOld[i] = dt
	}
	in.SetStep(order, dt)
	return in
}

// highestOrder is the largest order method supports.
func (m IntegrationMethod) highestOrder() int {
	if m == TrapezoidalMethod {
		return 2
	}
	return MaxOrder
}

// SetStep recomputes the coefficients for a new order and step without touching history.
// Out of range orders fall back to first order.
func (in *Integrator) SetStep(order int, dt float64) {
	if order < 1 || order > in.Method.highestOrder() {
		order = 1
	}
	in.Order = order
	in.Delta = dt
	in.DeltaOld[0] = dt
	in.ag = [MaxOrder + 1]float64{}
	copy(in.ag[:], GetIntegratorCoeffs(in.Method, order, dt, in.Xmu))
}

// Advance records an accepted step so the next divided differences see the real spacing.
func (in *Integrator) Advance(nextDt float64) {
	for i := len(in.DeltaOld) - 1; i > 0; i-- {
		in.DeltaOld[i] = in.DeltaOld[i-1]
	}
	in.SetStep(in.Order, nextDt)
}

// Coefficient is the derivative weight of the present charge (ag0).
func (in *Integrator) Coefficient() float64 {
	return in.ag[0]
}

// Integrate writes dQ/dt into s.CQ[0] and returns the companion pair
// geq = ag0*capacitance and ceq = CQ[0] - ag0*Q[0].
func (in *Integrator) Integrate(s *ChargeState, capacitance float64) (geq, ceq float64) {
	switch in.Method {
	case TrapezoidalMethod:
		if in.Order == 1 {
			s.CQ[0] = in.ag[0]*s.Q[0] + in.ag[1]*s.Q[1]
		} else {
			s.CQ[0] = -s.CQ[1]*in.ag[1] + in.ag[0]*(s.Q[0]-s.Q[1])
		}
	default:
		cq := 0.0
		for i := 0; i <= in.Order; i++ {
			cq += in.ag[i] * s.Q[i]
		}
		s.CQ[0] = cq
	}

	return in.ag[0] * capacitance, s.CQ[0] - in.ag[0]*s.Q[0]
}

// History is the part of dQ/dt that does not depend on Q[0].
func (in *Integrator) History(s *ChargeState) float64 {
	switch in.Method {
	case TrapezoidalMethod:
		if in.Order == 1 {
			return in.ag[1] * s.Q[1]
		}
		return -s.CQ[1]*in.ag[1] - in.ag[0]*s.Q[1]
	default:
		hist := 0.0
		for i := 1; i <= in.Order; i++ {
			hist += in.ag[i] * s.Q[i]
		}
		return hist
	}
}

// TruncationStep tightens timeStep to the largest step the local truncation error of s allows.
// It never increases timeStep.
func (in *Integrator) TruncationStep(s *ChargeState, timeStep *float64) {
	volttol := in.Abstol + in.Reltol*math.Max(math.Abs(s.CQ[0]), math.Abs(s.CQ[1]))
	chargetol := math.Max(math.Abs(s.Q[0]), math.Abs(s.Q[1]))
	chargetol = in.Reltol * math.Max(chargetol, in.Chgtol) / in.Delta
	tol := math.Max(volttol, chargetol)

	order := in.Order
	var diff [MaxOrder + 2]float64
	var deltmp [MaxOrder + 2]float64
	for i := order + 1; i >= 0; i-- {
		diff[i] = s.Q[i]
	}
	for i := 0; i <= order; i++ {
		deltmp[i] = in.DeltaOld[i]
	}
	for j := order; ; {
		for i := 0; i <= j; i++ {
			diff[i] = (diff[i] - diff[i+1]) / deltmp[i]
		}
		j--
		if j < 0 {
			break
		}
		for i := 0; i <= j; i++ {
			deltmp[i] = deltmp[i+1] + in.DeltaOld[i]
		}
	}

	var factor float64
	switch in.Method {
	case TrapezoidalMethod:
		factor = trapTruncFactor[order-1]
	default:
		factor = gearTruncFactor[order-1]
	}

	del := in.Trtol * tol / math.Max(in.Abstol, factor*math.Abs(diff[0]))
	switch {
	case order == 2:
		del = math.Sqrt(del)
	case order > 2:
		del = math.Exp(math.Log(del) / float64(order))
	}

	if del < *timeStep {
		*timeStep = del
	}
}

// GetIntegratorCoeffs returns ag0..agk for method at order and step dt. xmu only weights the
// second order trapezoidal rule.
func GetIntegratorCoeffs(method IntegrationMethod, order int, dt, xmu float64) []float64 {
	switch method {
	case TrapezoidalMethod:
		return GetTrapezoidalCoeffs(order, dt, xmu)
	default:
		return GetBDFcoeffs(order, dt)
	}
}

func GetBDFcoeffs(order int, dt float64) []float64 {
	if order < 1 || order > MaxOrder {
		order = 1
	}

	bdf := BdfCoefficients[order-1]
	coeffs := make([]float64, order+1)
	scale := 1.0 / (bdf.beta * dt)
	coeffs[0] = scale

	for i := 1; i <= order; i++ {
		coeffs[i] = -bdf.coefficients[i-1] * scale
	}

	return coeffs
}

// GetTrapezoidalCoeffs is backward Euler at order 1. At order 2, ag1 weights the previous
// derivative rather than a charge.
func GetTrapezoidalCoeffs(order int, dt, xmu float64) []float64 {
	if order != 2 {
		return []float64{1.0 / dt, -1.0 / dt}
	}
	return []float64{1.0 / dt / (1.0 - xmu), xmu / (1.0 - xmu)}
}
