package device

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/config"
	"github.com/edp1096/toy-bsim/pkg/matrix"
	"github.com/edp1096/toy-bsim/pkg/util"
)

type recCell struct{ re, im float64 }

func (c *recCell) Add(v float64)             { c.re += v }
func (c *recCell) AddComplex(re, im float64) { c.re += re; c.im += im }

type recMatrix struct {
	cells map[[2]int]*recCell
	rhs   map[int]complex128
}

func newRecMatrix() *recMatrix {
	return &recMatrix{cells: map[[2]int]*recCell{}, rhs: map[int]complex128{}}
}

func (m *recMatrix) Cell(row, col int) matrix.Cell {
	if row <= 0 || col <= 0 {
		return matrix.Ground
	}
	k := [2]int{row, col}
	if _, ok := m.cells[k]; !ok {
		m.cells[k] = &recCell{}
	}
	return m.cells[k]
}

func (m *recMatrix) AddRHS(i int, v float64) { m.AddComplexRHS(i, v, 0) }

func (m *recMatrix) AddComplexRHS(i int, re, im float64) {
	if i > 0 {
		m.rhs[i] += complex(re, im)
	}
}

func (m *recMatrix) at(r, c int) complex128 {
	if cell, ok := m.cells[[2]int{r, c}]; ok {
		return complex(cell.re, cell.im)
	}
	return 0
}

type allocator struct{ next int }

func (a *allocator) NewNode(string) int {
	a.next++
	return a.next
}

func dcStatus(solution ...float64) *CircuitStatus {
	return &CircuitStatus{
		Mode:     OperatingPointAnalysis,
		Temp:     consts.REFTMP,
		Solution: append([]float64{0}, solution...),
		Tol:      config.DefaultTolerances(),
	}
}

func TestPulseWave(t *testing.T) {
	w := PulseWave(0, 1, 1, 1, 2, 3, 10)
	for _, tt := range []struct{ t, want float64 }{
		{0, 0}, {1, 0}, {1.5, 0.5}, {2, 1}, {4.9, 1}, {6, 0.5}, {7.5, 0}, {11.5, 0.5}, {14, 1},
	} {
		assert.InDelta(t, tt.want, w.At(tt.t), 1e-12, "t=%g", tt.t)
	}
	assert.Equal(t, 0.0, w.DCValue())
	assert.Equal(t, []float64{1, 2, 5, 7, 11, 12, 15, 17}, w.Breakpoints(18))
}

func TestPWLAndSinWaves(t *testing.T) {
	w := PWLWave([]float64{0, 1, 3}, []float64{0, 2, -2})
	assert.Equal(t, 0.0, w.At(-1))
	assert.InDelta(t, 1, w.At(0.5), 1e-12)
	assert.InDelta(t, 0, w.At(2), 1e-12)
	assert.Equal(t, -2.0, w.At(5))
	assert.Equal(t, []float64{1}, w.Breakpoints(2))

	s := SinWave(0.5, 1, 1e3, 90)
	assert.InDelta(t, 1.5, s.At(0), 1e-12)
	assert.Equal(t, 0.5, s.DCValue())
	assert.Empty(t, s.Breakpoints(1))
}

func TestResistorStamp(t *testing.T) {
	r := NewResistor("R1", []string{"a", "b"}, 100)
	r.SetNodes([]int{1, 2})
	m := newRecMatrix()
	assert.ErrorIs(t, r.Stamp(m, dcStatus()), ErrNotBound)

	r.Bind(m)
	require.NoError(t, r.Stamp(m, dcStatus()))
	assert.InDelta(t, 0.01, real(m.at(1, 1)), 1e-15)
	assert.InDelta(t, -0.01, real(m.at(1, 2)), 1e-15)
	assert.InDelta(t, -0.01, real(m.at(2, 1)), 1e-15)
	assert.InDelta(t, 0.01, real(m.at(2, 2)), 1e-15)
	assert.Empty(t, m.rhs)
}

func TestResistorTemperature(t *testing.T) {
	r := NewResistor("R1", []string{"a", "0"}, 100)
	r.Tc1 = 1e-3
	require.NoError(t, r.Temperature(consts.REFTMP+100))
	assert.InDelta(t, 1/110.0, r.Conductance(), 1e-12)

	r.Tc1 = -0.1
	assert.Error(t, r.Temperature(consts.REFTMP+100))
}

func TestResistorGroundedNode(t *testing.T) {
	r := NewResistor("R1", []string{"a", "0"}, 50)
	r.SetNodes([]int{1, 0})
	m := newRecMatrix()
	r.Bind(m)
	require.NoError(t, r.Stamp(m, dcStatus()))
	assert.Len(t, m.cells, 1)
	assert.InDelta(t, 0.02, real(m.at(1, 1)), 1e-15)
}

func TestCapacitorIsOpenAtDC(t *testing.T) {
	c := NewCapacitor("C1", []string{"a", "0"}, 1e-9)
	c.SetNodes([]int{1, 0})
	m := newRecMatrix()
	c.Bind(m)
	require.NoError(t, c.Stamp(m, dcStatus(2)))
	assert.Zero(t, m.at(1, 1))
	assert.InDelta(t, 2e-9, c.Charge(), 1e-21)
}

func TestCapacitorBackwardEulerCompanion(t *testing.T) {
	const C, dt = 1e-9, 1e-6
	c := NewCapacitor("C1", []string{"a", "0"}, C)
	c.SetNodes([]int{1, 0})
	m := newRecMatrix()
	c.Bind(m)

	st := dcStatus(1)
	st.Mode = TransientAnalysis
	st.Integrator = util.NewIntegrator(util.GearMethod, 1, dt)
	st.Init = InitTransient
	require.NoError(t, c.Stamp(m, st))
	c.UpdateState(st)

	// Next point at 2 V: i = C (2 - 1) / dt, companion current -C*1/dt
	m = newRecMatrix()
	c.Bind(m)
	st.Init = InitFloat
	st.Solution[1] = 2
	require.NoError(t, c.Stamp(m, st))
	assert.InEpsilon(t, C/dt, real(m.at(1, 1)), 1e-12)
	assert.InEpsilon(t, C*1/dt, real(m.rhs[1]), 1e-12)

	step := 1.0
	c.Truncate(st, &step)
	assert.Less(t, step, 1.0)
}

func TestCapacitorAdmittances(t *testing.T) {
	c := NewCapacitor("C1", []string{"a", "b"}, 1e-12)
	c.SetNodes([]int{1, 2})
	ac, pz := newRecMatrix(), newRecMatrix()
	c.Bind(ac)
	c.Bind(pz)

	f := 1e6
	require.NoError(t, c.StampAC(ac, &CircuitStatus{Frequency: f}))
	require.NoError(t, c.StampPZ(pz, complex(0, 2*math.Pi*f)))
	for k, cell := range ac.cells {
		assert.Equal(t, *cell, *pz.cells[k])
	}
	assert.InDelta(t, 2*math.Pi*f*1e-12, imag(ac.at(1, 1)), 1e-20)
	assert.InDelta(t, -2*math.Pi*f*1e-12, imag(ac.at(1, 2)), 1e-20)
}

func TestCapacitorInitialCondition(t *testing.T) {
	c := NewCapacitor("C1", []string{"a", "b"}, 1e-12)
	c.SetNodes([]int{1, 2})
	c.GetIC([]float64{0, 3, 1})
	assert.Equal(t, 2.0, c.IC)

	c.SetIC(0.5)
	c.GetIC([]float64{0, 3, 1})
	assert.Equal(t, 0.5, c.IC)
}

func TestVoltageSourceBranch(t *testing.T) {
	v := NewDCVoltageSource("V1", []string{"a", "b"}, 3)
	v.SetNodes([]int{1, 2})
	require.NoError(t, v.Setup(&allocator{next: 2}))
	assert.Equal(t, 3, v.BranchIndex())

	m := newRecMatrix()
	v.Bind(m)
	require.NoError(t, v.Stamp(m, dcStatus()))
	assert.Equal(t, complex(1, 0), m.at(1, 3))
	assert.Equal(t, complex(-1, 0), m.at(2, 3))
	assert.Equal(t, complex(1, 0), m.at(3, 1))
	assert.Equal(t, complex(-1, 0), m.at(3, 2))
	assert.Equal(t, complex(3, 0), m.rhs[3])

	v.SetValue(1.5)
	assert.Equal(t, 1.5, v.GetValue())
}

func TestVoltageSourceFollowsWaveformInTransient(t *testing.T) {
	v := NewVoltageSource("V1", []string{"a", "0"}, PulseWave(0, 1, 0, 1, 1, 1, 0))
	st := dcStatus()
	assert.Equal(t, 0.0, v.GetVoltage(st))
	st.Mode = TransientAnalysis
	st.Time = 0.5
	assert.Equal(t, 0.5, v.GetVoltage(st))
}

func TestACVoltageSourcePhasor(t *testing.T) {
	v := NewACVoltageSource("V1", []string{"a", "0"}, 0, 2, 90)
	v.SetNodes([]int{1, 0})
	require.NoError(t, v.Setup(&allocator{next: 1}))
	m := newRecMatrix()
	v.Bind(m)
	require.NoError(t, v.StampAC(m, &CircuitStatus{Mode: ACAnalysis}))
	assert.InDelta(t, 0, real(m.rhs[2]), 1e-12)
	assert.InDelta(t, 2, imag(m.rhs[2]), 1e-12)
}

func TestCurrentSourceStamp(t *testing.T) {
	i := NewDCCurrentSource("I1", []string{"a", "b"}, 1e-3)
	i.SetNodes([]int{1, 2})
	m := newRecMatrix()
	i.Bind(m)
	require.NoError(t, i.Stamp(m, dcStatus()))
	assert.Equal(t, complex(1e-3, 0), m.rhs[1])
	assert.Equal(t, complex(-1e-3, 0), m.rhs[2])
	assert.Empty(t, m.cells)
}

func TestInductorIsShortAtDC(t *testing.T) {
	l := NewInductor("L1", []string{"a", "b"}, 1e-6)
	l.SetNodes([]int{1, 2})
	require.NoError(t, l.Setup(&allocator{next: 2}))
	m := newRecMatrix()
	l.Bind(m)
	require.NoError(t, l.Stamp(m, dcStatus(0, 0, 0)))
	assert.Zero(t, m.at(3, 3))

	ac := newRecMatrix()
	l.Bind(ac)
	require.NoError(t, l.StampAC(ac, &CircuitStatus{Frequency: 1e3}))
	assert.InDelta(t, -2*math.Pi*1e3*1e-6, imag(ac.at(3, 3)), 1e-15)
}

func TestNoiseGain(t *testing.T) {
	ctx := &constNoise{h: complex(3, 4)}
	assert.Equal(t, 25.0, NoiseGain(ctx, 1, 0))

	r := NewResistor("R1", []string{"a", "0"}, 1e3)
	r.SetNodes([]int{1, 0})
	r.Noise(ctx, dcStatus())
	assert.InEpsilon(t, 4*consts.BOLTZMANN*consts.REFTMP*1e-3*25, ctx.got, 1e-12)
}

type constNoise struct {
	h   complex128
	got float64
}

func (c *constNoise) Frequency() float64                  { return 1 }
func (c *constNoise) Transfer(int, int) complex128        { return c.h }
func (c *constNoise) Record(_, _ string, density float64) { c.got += density }

func TestCounter(t *testing.T) {
	var c Counter
	c.NonConverged("limiter")
	c.NonConverged("convtest")
	assert.Equal(t, 2, c.Count())
	c.Reset()
	assert.Zero(t, c.Count())
}
