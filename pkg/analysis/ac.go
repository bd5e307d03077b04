package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/device"
)

type ACAnalysis struct {
	BaseAnalysis
	op          *OperatingPoint
	startFreq   float64
	stopFreq    float64
	numPoints   int
	pointsType  string // "DEC", "OCT", "LIN"
	frequencies []float64
}

func NewAC(fStart, fStop float64, nPoints int, pType string) *ACAnalysis {
	return &ACAnalysis{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		startFreq:    fStart,
		stopFreq:     fStop,
		numPoints:    nPoints,
		pointsType:   pType,
	}
}

func (ac *ACAnalysis) Setup(ckt *circuit.Circuit) error {
	ac.Circuit = ckt

	freqs, err := frequencyPoints(ac.startFreq, ac.stopFreq, ac.numPoints, ac.pointsType)
	if err != nil {
		return err
	}
	ac.frequencies = freqs

	ac.op.Tol = ac.Tol
	ac.op.Counter = ac.Counter
	if err := ac.op.Setup(ckt); err != nil {
		return fmt.Errorf("operating point setup error: %w", err)
	}
	if err := ac.op.Execute(); err != nil {
		return fmt.Errorf("operating point analysis error: %w", err)
	}
	return nil
}

func (ac *ACAnalysis) Execute() error {
	if ac.Circuit == nil {
		return ErrNoCircuit
	}

	status := ac.status(device.ACAnalysis)
	status.Init = device.InitSmallSignal
	mat := ac.Circuit.GetACMatrix()

	for _, freq := range ac.frequencies {
		status.Frequency = freq

		mat.Clear()
		if err := ac.Circuit.StampAC(status); err != nil {
			return fmt.Errorf("stamping error at f=%g: %w", freq, err)
		}
		if err := mat.Solve(); err != nil {
			return fmt.Errorf("matrix solve error at f=%g: %w", freq, err)
		}

		ac.StoreACResult(freq, ac.Circuit.GetComplexSolution())
	}
	return nil
}

// frequencyPoints spans start to stop with n points, logarithmically for DEC and OCT.
func frequencyPoints(start, stop float64, n int, kind string) ([]float64, error) {
	if n < 1 || start <= 0 || stop < start {
		return nil, fmt.Errorf("invalid frequency range %g..%g with %d points", start, stop, n)
	}
	if n == 1 {
		return []float64{start}, nil
	}

	freqs := make([]float64, n)
	switch kind {
	case "DEC", "OCT":
		floats.LogSpan(freqs, start, stop)
	case "LIN":
		floats.Span(freqs, start, stop)
	default:
		return nil, fmt.Errorf("unknown sweep type %q", kind)
	}
	return freqs, nil
}
