package bsim

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/matrix"
)

type stampEntry struct {
	row, col int // Representative terminals
	cell     matrix.Cell
}

// intrinsic terminals couple to each other through the channel, charges and the body network.
var intrinsic = [...]int{tDp, tGp, tSp, tBp, tGm, tDb, tSb}

// parasitic are the resistors between an external pin and its internal terminal.
var parasitic = [...][2]int{{tD, tDp}, {tS, tSp}, {tG, tGp}, {tG, tGm}, {tB, tBp}, {tB, tDb}, {tB, tSb}}

// pattern is the set of representative terminal pairs that may carry a nonzero entry.
func (inst *Instance) pattern() [nTerm][nTerm]bool {
	var mask [nTerm][nTerm]bool
	set := func(a, b int) {
		mask[inst.rep[a]][inst.rep[b]] = true
	}

	for _, a := range intrinsic {
		for _, b := range intrinsic {
			set(a, b)
		}
	}
	for _, pr := range parasitic {
		set(pr[0], pr[0])
		set(pr[0], pr[1])
		set(pr[1], pr[0])
	}
	if inst.model.RGATEMOD == 2 {
		// The gate current depends on the channel through gcrg
		for _, b := range intrinsic {
			set(tG, b)
		}
	}
	return mask
}

// Bind resolves the cell handles the instance writes into m. It must run before the first stamp
// into m and again if the instance's nodes change.
func (inst *Instance) Bind(m matrix.DeviceMatrix) {
	inst.cells[m] = inst.bindCells(m, &inst.node)
}

// bindCells resolves the pattern against m with terminals numbered by node.
func (inst *Instance) bindCells(m matrix.DeviceMatrix, node *[nTerm]int) []stampEntry {
	mask := inst.pattern()
	var cells []stampEntry
	for r := range mask {
		for c := range mask[r] {
			if mask[r][c] {
				cells = append(cells, stampEntry{row: r, col: c, cell: m.Cell(node[r], node[c])})
			}
		}
	}
	return cells
}

// emit writes G into the bound cells and the Newton companion currents G*v0 - I into the RHS rows
// given by node. It is the one writer for the circuit matrix and the private adjoint sink.
func (inst *Instance) emit(m matrix.DeviceMatrix, cells []stampEntry, node *[nTerm]int, g *[nTerm][nTerm]float64, i *[nTerm]float64) {
	for _, e := range cells {
		e.cell.Add(g[e.row][e.col])
	}

	v0 := &inst.op.v
	for r := 0; r < nTerm; r++ {
		if inst.rep[r] != r {
			continue
		}
		rhs := -i[r]
		for c := 0; c < nTerm; c++ {
			rhs += g[r][c] * v0[c]
		}
		m.AddRHS(node[r], rhs)
	}
}

// emitComplex writes G + s*C into the bound cells of m.
func (inst *Instance) emitComplex(m matrix.DeviceMatrix, s complex128) error {
	cells, ok := inst.cells[m]
	if !ok {
		return fmt.Errorf("bsim %s: %w", inst.Name, ErrNotBound)
	}
	if !inst.op.valid {
		return fmt.Errorf("bsim %s: no operating point", inst.Name)
	}

	l := &inst.op.lin
	sr, si := real(s), imag(s)
	for _, e := range cells {
		g, c := l.G[e.row][e.col], l.C[e.row][e.col]
		e.cell.AddComplex(g+sr*c, si*c)
	}
	return nil
}

// StampAC adds the small-signal admittance at the analysis frequency. It reuses the stored
// operating point.
func (inst *Instance) StampAC(m matrix.DeviceMatrix, status *device.CircuitStatus) error {
	omega := 2 * math.Pi * status.Frequency
	return inst.emitComplex(m, complex(0, omega))
}

// StampPZ adds G + s*C at the complex frequency s.
func (inst *Instance) StampPZ(m matrix.DeviceMatrix, s complex128) error {
	return inst.emitComplex(m, s)
}
