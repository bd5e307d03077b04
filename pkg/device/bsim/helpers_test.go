package bsim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/config"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/matrix"
)

// Pins d, g, s, b sit on nodes 1..4; internal nodes are numbered after them.
const firstInternal = 5

type allocator struct{ next int }

func (a *allocator) NewNode(string) int {
	n := a.next
	a.next++
	return n
}

type recCell struct{ re, im float64 }

func (c *recCell) Add(v float64)             { c.re += v }
func (c *recCell) AddComplex(re, im float64) { c.re += re; c.im += im }

// recMatrix records every cell and RHS write.
type recMatrix struct {
	cells map[[2]int]*recCell
	rhs   map[int]float64
}

func newRecMatrix() *recMatrix {
	return &recMatrix{cells: map[[2]int]*recCell{}, rhs: map[int]float64{}}
}

func (m *recMatrix) Cell(row, col int) matrix.Cell {
	if row <= 0 || col <= 0 {
		return matrix.Ground
	}
	k := [2]int{row, col}
	c, ok := m.cells[k]
	if !ok {
		c = &recCell{}
		m.cells[k] = c
	}
	return c
}

func (m *recMatrix) AddRHS(i int, v float64) {
	if i > 0 {
		m.rhs[i] += v
	}
}

func (m *recMatrix) AddComplexRHS(i int, re, _ float64) { m.AddRHS(i, re) }

func (m *recMatrix) clear() {
	for _, c := range m.cells {
		*c = recCell{}
	}
	clear(m.rhs)
}

type recCounter struct{ sources []string }

func (c *recCounter) NonConverged(s string) { c.sources = append(c.sources, s) }
func (c *recCounter) Count() int            { return len(c.sources) }
func (c *recCounter) Reset()                { c.sources = nil }

func newModel(t *testing.T, typ int, params map[string]float64) *Model {
	t.Helper()
	m := NewModel("nch", typ)
	m.Diagnostics = &DiagnosticList{}
	require.NoError(t, m.SetModelParameters(params))
	return m
}

func newInstance(t *testing.T, m *Model, params map[string]float64) *Instance {
	t.Helper()
	inst := NewInstance("M1", []string{"d", "g", "s", "b"}, m)
	inst.SetNodes([]int{1, 2, 3, 4})
	require.NoError(t, inst.SetParams(params))
	require.NoError(t, inst.Setup(&allocator{next: firstInternal}))
	require.NoError(t, inst.Temperature(consts.REFTMP))
	return inst
}

// newDevice is an NMOS with L = 1u, W = 10u on the given model card.
func newDevice(t *testing.T, params map[string]float64) *Instance {
	t.Helper()
	return newInstance(t, newModel(t, NMOS, params), map[string]float64{"l": 1e-6, "w": 10e-6})
}

// bias spreads pin voltages over the local terminals with every internal node at its pin.
func bias(inst *Instance, vd, vg, vs, vb float64) [nTerm]float64 {
	var v [nTerm]float64
	pin := [nTerm]int{tD, tG, tS, tB, tD, tG, tG, tS, tB, tB, tB}
	ext := [4]float64{vd, vg, vs, vb}
	for t := range v {
		v[t] = ext[pin[t]]
	}
	for t := range v {
		v[t] = v[inst.rep[t]]
	}
	return v
}

func dcStatus() *device.CircuitStatus {
	return &device.CircuitStatus{
		Gmin: 1e-12,
		Temp: consts.REFTMP,
		Mode: device.OperatingPointAnalysis,
		Init: device.InitFloat,
		Tol:  config.DefaultTolerances(),
	}
}

// solutionAt is a solution vector holding v on the instance's nodes.
func solutionAt(inst *Instance, v [nTerm]float64) []float64 {
	size := firstInternal
	for _, n := range inst.node {
		if n >= size {
			size = n + 1
		}
	}
	sol := make([]float64, size)
	for t, n := range inst.node {
		if n > 0 {
			sol[n] = v[t]
		}
	}
	return sol
}

func (inst *Instance) evalAt(vd, vg, vs, vb float64) opState {
	return inst.evaluate(bias(inst, vd, vg, vs, vb), dcStatus())
}
