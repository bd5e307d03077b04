package analysis

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/device"
)

// sweepable is an independent source whose DC value a sweep may replace.
type sweepable interface {
	device.Device
	GetValue() float64
	SetValue(value float64)
}

type DCSweep struct {
	BaseAnalysis
	sourceNames []string    // Names of voltage/current sources to sweep, outermost last
	startVals   []float64   // Start values for each source
	stopVals    []float64   // Stop values for each source
	increments  []float64   // Incremental value of steps for each source
	sweepVals   [][]float64 // Generated sweep values for each source
	origVals    []float64   // Original values of the sources
	sources     []sweepable
}

func NewDCSweep(sources []string, starts, stops, increments []float64) *DCSweep {
	if len(sources) != len(starts) || len(sources) != len(stops) || len(sources) != len(increments) {
		panic("inconsistent parameter lengths")
	}

	dc := &DCSweep{
		BaseAnalysis: *NewBaseAnalysis(),
		sourceNames:  sources,
		startVals:    starts,
		stopVals:     stops,
		increments:   increments,
		sweepVals:    make([][]float64, len(sources)),
		origVals:     make([]float64, len(sources)),
	}

	for i := range sources {
		dc.sweepVals[i] = sweepPoints(starts[i], stops[i], increments[i])
	}
	return dc
}

// sweepPoints spans start to stop inclusive without accumulating rounding.
func sweepPoints(start, stop, inc float64) []float64 {
	if inc == 0 || (stop-start)/inc < 0 {
		return []float64{start}
	}
	n := int(math.Floor((stop-start)/inc+1e-9)) + 1
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = start + float64(i)*inc
	}
	return vals
}

func (dc *DCSweep) Setup(ckt *circuit.Circuit) error {
	dc.Circuit = ckt
	dc.sources = make([]sweepable, len(dc.sourceNames))

	for i, name := range dc.sourceNames {
		dev, ok := ckt.Device(name)
		if !ok {
			return fmt.Errorf("source %s not found", name)
		}
		src, ok := dev.(sweepable)
		if !ok {
			return fmt.Errorf("device %s is not a sweepable source", name)
		}
		dc.sources[i] = src
		dc.origVals[i] = src.GetValue()
	}
	return nil
}

func (dc *DCSweep) Execute() error {
	if dc.Circuit == nil {
		return ErrNoCircuit
	}
	if len(dc.sources) == 0 || len(dc.sources) > 2 {
		return fmt.Errorf("unsupported number of sweep sources: %d", len(dc.sourceNames))
	}
	defer func() {
		for i, src := range dc.sources {
			src.SetValue(dc.origVals[i])
		}
	}()

	status := dc.status(device.DCSweep)
	status.Init = device.InitJunction

	outer := []float64{math.NaN()}
	if len(dc.sources) == 2 {
		outer = dc.sweepVals[1]
	}

	for _, val2 := range outer {
		if len(dc.sources) == 2 {
			dc.sources[1].SetValue(val2)
		}
		for _, val1 := range dc.sweepVals[0] {
			dc.sources[0].SetValue(val1)

			if err := dc.solvePoint(status); err != nil {
				return fmt.Errorf("convergence error at %s=%g: %w", dc.sourceNames[0], val1, err)
			}

			dc.appendResult("SWEEP1", val1)
			if len(dc.sources) == 2 {
				dc.appendResult("SWEEP2", val2)
			}
			for name, value := range dc.Circuit.GetSolution(status.Solution) {
				dc.appendResult(name, value)
			}
		}
	}

	return nil
}

// solvePoint continues from the previous point and falls back to a fresh operating point.
func (dc *DCSweep) solvePoint(status *device.CircuitStatus) error {
	if status.Init == device.InitJunction {
		return dc.solveOP(status)
	}

	prev := make([]float64, len(status.Solution))
	copy(prev, status.Solution)
	if _, err := dc.newton(status, 0); err == nil {
		return nil
	}

	copy(status.Solution, prev)
	status.Init = device.InitJunction
	return dc.solveOP(status)
}
