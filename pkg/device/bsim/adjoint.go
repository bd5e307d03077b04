package bsim

import (
	"fmt"

	"github.com/edp1096/toy-bsim/pkg/matrix"
)

// TerminalCurrents are the currents into the drain, gate, source and bulk pins.
type TerminalCurrents struct {
	D, G, S, B float64
}

// Sum is zero for a charge conserving linearization.
func (tc TerminalCurrents) Sum() float64 { return tc.D + tc.G + tc.S + tc.B }

// Adjoint re-emits the stored linearization into a private dense system over the instance's own
// terminals, solves the internal nodes with the pins held at their present voltages and returns
// the pin currents. The circuit matrix is not touched.
func (inst *Instance) Adjoint() (TerminalCurrents, error) {
	if !inst.op.valid {
		return TerminalCurrents{}, fmt.Errorf("bsim %s: no operating point", inst.Name)
	}

	var local [nTerm]int
	n := 0
	for t := range local {
		if inst.rep[t] == t {
			n++
			local[t] = n
		}
	}
	for t := range local {
		local[t] = local[inst.rep[t]]
	}

	sys := matrix.NewDenseSystem(n)
	cells := inst.bindCells(sys, &local)
	inst.emit(sys, cells, &local, &inst.op.lin.G, &inst.op.lin.I)

	pins := [4]int{tD, tG, tS, tB}
	fixed := make(map[int]float64, len(pins))
	for _, t := range pins {
		fixed[local[t]] = inst.op.v[t]
	}
	x, err := sys.Solve(fixed)
	if err != nil {
		return TerminalCurrents{}, fmt.Errorf("bsim %s: adjoint: %w", inst.Name, err)
	}

	var i [4]float64
	for k, t := range pins {
		i[k] = sys.Residual(local[t], x)
	}
	return TerminalCurrents{D: i[0], G: i[1], S: i[2], B: i[3]}, nil
}
