package analysis

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/util"
)

type Transient struct {
	BaseAnalysis
	op        *OperatingPoint
	startTime float64
	stopTime  float64
	timeStep  float64
	maxStep   float64
	minStep   float64
	useUIC    bool

	Method   util.IntegrationMethod
	MaxOrder int

	initial  []float64
	accepted int
	rejected int
}

func NewTransient(tStart, tStop, tStep, tMax float64, uic bool) *Transient {
	if tMax == 0 {
		tMax = math.Min(tStep, (tStop-tStart)/50)
	}

	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		startTime:    tStart,
		stopTime:     tStop,
		timeStep:     tStep,
		maxStep:      tMax,
		minStep:      1e-9 * tMax,
		useUIC:       uic,
		Method:       util.TrapezoidalMethod,
		MaxOrder:     2,
	}
}

func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	tr.Circuit = ckt
	tr.initial = make([]float64, ckt.Size()+1)

	if tr.useUIC {
		return nil
	}

	tr.op.Tol = tr.Tol
	tr.op.Counter = tr.Counter
	if err := tr.op.Setup(ckt); err != nil {
		return fmt.Errorf("operating point setup error: %w", err)
	}
	if err := tr.op.Execute(); err != nil {
		return fmt.Errorf("operating point analysis error: %w", err)
	}
	copy(tr.initial, tr.op.Solution())
	return nil
}

// Execute integrates from 0 to the stop time. Steps are chosen by the devices' truncation
// error estimates and land on every source breakpoint.
func (tr *Transient) Execute() error {
	if tr.Circuit == nil {
		return ErrNoCircuit
	}
	ckt := tr.Circuit

	delta := math.Min(tr.stopTime/100, tr.timeStep) / 10
	integ := util.NewIntegrator(tr.Method, 1, delta)
	integ.Reltol = tr.Tol.Reltol
	integ.Abstol = tr.Tol.Abstol
	integ.Chgtol = tr.Tol.Chgtol
	integ.Trtol = tr.Tol.Trtol
	integ.Xmu = tr.Tol.Xmu

	status := tr.status(device.TransientAnalysis)
	status.Integrator = integ
	status.UseIC = tr.useUIC
	copy(status.Solution, tr.initial)
	if tr.startTime == 0 {
		tr.StoreTimeResult(0, ckt.GetSolution(status.Solution))
	}

	breakpoints := ckt.Breakpoints(tr.stopTime)
	nextBreak := func(t float64) float64 {
		for _, bp := range breakpoints {
			if bp > t+tr.minStep {
				return bp
			}
		}
		return tr.stopTime
	}

	good := make([]float64, len(status.Solution))
	time := 0.0
	order := 1
	first := true

	for time < tr.stopTime-tr.minStep {
		dt := delta
		hitBreak := false
		if bp := nextBreak(time); time+dt >= bp-tr.minStep {
			dt = bp - time
			hitBreak = true
		}

		integ.SetStep(order, dt)
		status.Time = time + dt
		status.TimeStep = dt
		status.Init = device.InitPredict
		if first {
			status.Init = device.InitTransient
		}

		copy(good, status.Solution)
		ckt.SaveCheckpoints()
		_, err := tr.newton(status, 0)
		if err != nil {
			if rerr := ckt.RestoreCheckpoints(); rerr != nil {
				return fmt.Errorf("transient at t=%g: %w", time, rerr)
			}
			copy(status.Solution, good)
			tr.rejected++
			delta = dt / 8
			order = 1
			if delta < tr.minStep {
				return fmt.Errorf("time step too small at t=%g: %w", time, err)
			}
			continue
		}

		next := math.Min(2*dt, tr.maxStep)
		if !first {
			next = ckt.Truncate(status, next)
			if next < 0.9*dt {
				if rerr := ckt.RestoreCheckpoints(); rerr != nil {
					return fmt.Errorf("transient at t=%g: %w", time, rerr)
				}
				copy(status.Solution, good)
				tr.rejected++
				delta = next
				if delta < tr.minStep {
					return fmt.Errorf("truncation error step %g too small at t=%g", delta, time)
				}
				continue
			}
		}
		ckt.DiscardCheckpoints()

		time += dt
		tr.accepted++
		ckt.UpdateState(status)
		if time >= tr.startTime {
			tr.StoreTimeResult(time, ckt.GetSolution(status.Solution))
		}

		first = false
		delta = next
		order = min(order+1, tr.MaxOrder)
		if hitBreak {
			order = 1
			delta = math.Min(delta, dt)
		}
		integ.Advance(delta)
	}

	slog.Debug("transient done",
		slog.String("circuit", ckt.Name()),
		slog.Int("accepted", tr.accepted),
		slog.Int("rejected", tr.rejected))
	return nil
}

// Steps reports the accepted and rejected time point counts.
func (tr *Transient) Steps() (accepted, rejected int) { return tr.accepted, tr.rejected }
