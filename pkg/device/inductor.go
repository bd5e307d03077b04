package device

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-bsim/pkg/matrix"
	"github.com/edp1096/toy-bsim/pkg/util"
)

// Inductor carries its current as a branch unknown and its flux as the integrated state.
type Inductor struct {
	BaseDevice
	branchIdx int
	flux      util.ChargeState
	cells     cellSet
}

var (
	_ TimeDependent = (*Inductor)(nil)
	_ InternalNodes = (*Inductor)(nil)
	_ BranchDevice  = (*Inductor)(nil)
)

func NewInductor(name string, nodeNames []string, value float64) *Inductor {
	if len(nodeNames) != 2 {
		panic(fmt.Sprintf("inductor %s: requires exactly 2 nodes", name))
	}
	return &Inductor{BaseDevice: *NewBaseDevice(name, value, nodeNames)}
}

func (l *Inductor) GetType() string { return "L" }

func (l *Inductor) Setup(alloc NodeAllocator) error {
	l.branchIdx = alloc.NewNode(l.Name + "#branch")
	return nil
}

func (l *Inductor) BranchIndex() int { return l.branchIdx }

func (l *Inductor) Bind(m matrix.DeviceMatrix) {
	b := l.branchIdx
	entries := append(branchEntries(l.Nodes[0], l.Nodes[1], b), [2]int{b, b})
	l.cells.bind(m, entries...)
}

// Stamp adds v1 - v2 - d(L*i)/dt = 0 on the branch row. It is a short outside transient.
func (l *Inductor) Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error {
	cells, err := l.cells.lookup(l.Name, m)
	if err != nil {
		return err
	}
	addBranch(cells)

	l.flux.Q[0] = l.Value * status.Voltage(l.branchIdx)
	if !status.IsTransient() {
		return nil
	}

	if status.Init == InitTransient {
		l.flux.CQ[0] = 0
		l.flux.Seed()
	}
	req, veq := status.Integrator.Integrate(&l.flux, l.Value)
	cells[4].Add(-req)
	m.AddRHS(l.branchIdx, veq)
	return nil
}

func (l *Inductor) StampAC(m matrix.DeviceMatrix, status *CircuitStatus) error {
	return l.StampPZ(m, complex(0, 2*math.Pi*status.Frequency))
}

func (l *Inductor) StampPZ(m matrix.DeviceMatrix, s complex128) error {
	cells, err := l.cells.lookup(l.Name, m)
	if err != nil {
		return err
	}
	addBranch(cells)
	cells[4].AddComplex(-real(s)*l.Value, -imag(s)*l.Value)
	return nil
}

func (l *Inductor) UpdateState(status *CircuitStatus) {
	if status.IsTransient() {
		l.flux.Shift()
	}
}

func (l *Inductor) Truncate(status *CircuitStatus, timeStep *float64) {
	if status.IsTransient() {
		status.Integrator.TruncationStep(&l.flux, timeStep)
	}
}
