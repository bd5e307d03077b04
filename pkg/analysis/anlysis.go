package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"github.com/edp1096/toy-bsim/internal/mathx"
	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/config"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/util"
)

var (
	ErrNoConvergence = errors.New("failed to converge")
	ErrNoCircuit     = errors.New("circuit not set")
)

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute() error
	GetResults() map[string][]float64
}

type BaseAnalysis struct {
	Circuit *circuit.Circuit
	Tol     config.Tolerances
	Counter device.ConvergenceCounter
	results map[string][]float64 // key: variable name, value: result by time, frequency or sweep point
}

func NewBaseAnalysis() *BaseAnalysis {
	return &BaseAnalysis{
		Tol:     config.DefaultTolerances(),
		Counter: &device.Counter{},
		results: make(map[string][]float64),
	}
}

// status returns a fresh circuit status for mode at the circuit temperature.
func (a *BaseAnalysis) status(mode device.AnalysisMode) *device.CircuitStatus {
	return &device.CircuitStatus{
		Mode:     mode,
		Temp:     a.Circuit.Temperature(),
		Gmin:     a.Tol.Gmin,
		Counter:  a.Counter,
		Tol:      a.Tol,
		Solution: make([]float64, a.Circuit.Size()+1),
	}
}

// CheckConvergence compares two Newton iterates node by node, voltages against vntol and
// branch currents against abstol.
func (a *BaseAnalysis) CheckConvergence(oldSol, newSol []float64) bool {
	if len(oldSol) != len(newSol) {
		return false
	}

	for i := 1; i < len(newSol); i++ {
		abstol := a.Tol.Vntol
		if a.Circuit.IsBranch(i) {
			abstol = a.Tol.Abstol
		}
		if !mathx.Within(newSol[i], oldSol[i], a.Tol.Reltol, abstol) {
			return false
		}
	}
	return true
}

// newton iterates the circuit from status.Solution until the solution settles, no device
// clamped its step and every device agrees in ConvTest. status.Solution holds the result.
func (a *BaseAnalysis) newton(status *device.CircuitStatus, gmin float64) (int, error) {
	ckt := a.Circuit
	mat := ckt.GetMatrix()
	old := make([]float64, len(status.Solution))

	for iter := 0; iter < a.Tol.MaxIter; iter++ {
		mat.Clear()
		a.Counter.Reset()
		if err := ckt.Stamp(status); err != nil {
			return iter, fmt.Errorf("stamping error: %w", err)
		}
		limited := a.Counter.Count()
		mat.LoadGmin(gmin)

		if err := mat.Solve(); err != nil {
			return iter, fmt.Errorf("matrix solve error: %w", err)
		}

		copy(old, status.Solution)
		sol := mat.Solution()
		for i := range status.Solution {
			if i > 0 && i < len(sol) {
				status.Solution[i] = sol[i]
			}
		}
		if hasNaN(status.Solution) {
			return iter, fmt.Errorf("solution is not finite at iteration %d: %w", iter, ErrNoConvergence)
		}

		if iter > 0 && status.Init == device.InitFloat && limited == 0 && a.CheckConvergence(old, status.Solution) {
			a.Counter.Reset()
			ckt.ConvTest(status)
			if a.Counter.Count() == 0 {
				return iter + 1, nil
			}
		}

		// Only the first load of a solve starts from the special initial point
		status.Init = device.InitFloat
	}

	return a.Tol.MaxIter, fmt.Errorf("%d iterations: %w", a.Tol.MaxIter, ErrNoConvergence)
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return true
		}
	}
	return false
}

// solveOP finds the operating point from status, falling back to gmin stepping when the
// direct Newton solve fails.
func (a *BaseAnalysis) solveOP(status *device.CircuitStatus) error {
	start := make([]float64, len(status.Solution))
	copy(start, status.Solution)
	init := status.Init

	iters, err := a.newton(status, 0)
	if err == nil {
		slog.Debug("operating point converged", slog.String("circuit", a.Circuit.Name()), slog.Int("iterations", iters))
		return nil
	}
	slog.Info("direct operating point failed, stepping gmin",
		slog.String("circuit", a.Circuit.Name()),
		slog.String("error", err.Error()))

	copy(status.Solution, start)
	status.Init = init
	return a.gminStepping(status)
}

// gminStepping shunts every node with a conductance that starts large and shrinks
// geometrically. A failed step is retried from the last good point with a smaller factor.
func (a *BaseAnalysis) gminStepping(status *device.CircuitStatus) error {
	ckt := a.Circuit
	const (
		startGmin = 1e-2
		minFactor = 1.00005
	)

	factor := 10.0
	gmin := startGmin
	lastGood := 0.0
	good := make([]float64, len(status.Solution))
	copy(good, status.Solution)

	for {
		ckt.SaveCheckpoints()
		_, err := a.newton(status, gmin)
		if err == nil {
			ckt.DiscardCheckpoints()
			copy(good, status.Solution)
			if gmin == 0 {
				return nil
			}
			lastGood = gmin
			factor = math.Min(factor*math.Sqrt(factor), 10)
			gmin /= factor
			if gmin < a.Tol.Gmin {
				gmin = 0
			}
			status.Init = device.InitFloat
			continue
		}

		if rerr := ckt.RestoreCheckpoints(); rerr != nil {
			return fmt.Errorf("gmin stepping: %w", rerr)
		}
		ckt.DiscardCheckpoints()
		copy(status.Solution, good)
		if lastGood == 0 {
			return fmt.Errorf("gmin stepping failed at the first step %g: %w", gmin, err)
		}
		factor = math.Sqrt(factor)
		if factor < minFactor {
			return fmt.Errorf("gmin stepping stalled at %g: %w", lastGood, err)
		}
		gmin = lastGood / factor
		status.Init = device.InitFloat
	}
}

func (a *BaseAnalysis) appendResult(name string, value float64) {
	a.results[name] = append(a.results[name], value)
}

func (a *BaseAnalysis) StoreTimeResult(time float64, solution map[string]float64) {
	// Ignore same time
	if times := a.results["TIME"]; len(times) > 0 {
		lastTime := times[len(times)-1]
		if time == lastTime {
			return
		}
		// Compare rounded string. 1.999999e-05 == 2.000000e-05
		if util.FormatValueFactor(time, "s") == util.FormatValueFactor(lastTime, "s") {
			return
		}
	}

	a.appendResult("TIME", time)
	for name, value := range solution {
		a.appendResult(name, value)
	}
}

func (a *BaseAnalysis) StoreACResult(freq float64, solution map[string]complex128) {
	a.appendResult("FREQ", freq)
	for name, value := range solution {
		a.appendResult(name+"_MAG", cmplx.Abs(value))
		a.appendResult(name+"_PHASE", cmplx.Phase(value)*180.0/math.Pi)
	}
}

func (a *BaseAnalysis) GetResults() map[string][]float64 {
	return a.results
}
