package analysis

import (
	"fmt"

	"github.com/edp1096/toy-bsim/pkg/circuit"
	"github.com/edp1096/toy-bsim/pkg/device"
)

type OperatingPoint struct {
	BaseAnalysis
	solution []float64
}

func NewOP() *OperatingPoint {
	return &OperatingPoint{
		BaseAnalysis: *NewBaseAnalysis(),
	}
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	op.Circuit = ckt
	return nil
}

// Execute solves the DC operating point from the junction initial guess and derives the
// device initial conditions from it.
func (op *OperatingPoint) Execute() error {
	if op.Circuit == nil {
		return ErrNoCircuit
	}

	status := op.status(device.OperatingPointAnalysis)
	status.Init = device.InitJunction
	if err := op.solveOP(status); err != nil {
		return fmt.Errorf("operating point: %w", err)
	}

	// One more load at the solution so every device stores its small-signal values there
	op.Circuit.GetMatrix().Clear()
	status.Init = device.InitSmallSignal
	if err := op.Circuit.Stamp(status); err != nil {
		return fmt.Errorf("operating point: %w", err)
	}

	op.solution = status.Solution
	op.Circuit.GetIC(op.solution)
	op.storeResults()
	return nil
}

// Solution is the raw solution vector, index 0 is ground.
func (op *OperatingPoint) Solution() []float64 { return op.solution }

func (op *OperatingPoint) storeResults() {
	for name, value := range op.Circuit.GetSolution(op.solution) {
		op.results[name] = []float64{value}
	}
}
