package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/device/bsim"
)

func TestNodeNumbering(t *testing.T) {
	c := New("nodes")
	assert.Equal(t, 0, c.Node("0"))
	assert.Equal(t, 0, c.Node("gnd"))
	assert.Equal(t, 1, c.Node("a"))
	assert.Equal(t, 2, c.Node("b"))
	assert.Equal(t, 1, c.Node("a"))

	idx, ok := c.NodeIndex("b")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	_, ok = c.NodeIndex("missing")
	assert.False(t, ok)
}

func TestAddRejectsDuplicates(t *testing.T) {
	c := New("dup")
	require.NoError(t, c.Add(device.NewResistor("R1", []string{"a", "0"}, 1)))
	assert.Error(t, c.Add(device.NewResistor("R1", []string{"b", "0"}, 1)))
	assert.Panics(t, func() { c.MustAdd(device.NewResistor("R1", []string{"b", "0"}, 1)) })
}

func TestSetupNeedsDevices(t *testing.T) {
	assert.Error(t, New("empty").Setup(consts.REFTMP))
}

func TestSetupAllocatesBranchesAndInternalNodes(t *testing.T) {
	m := bsim.NewModel("nch", bsim.NMOS)
	require.NoError(t, m.SetModelParameters(map[string]float64{"rgatemod": 1}))
	mos := bsim.NewInstance("M1", []string{"d", "g", "0", "0"}, m)

	c := New("mos").MustAdd(
		device.NewDCVoltageSource("VD", []string{"d", "0"}, 1),
		device.NewDCVoltageSource("VG", []string{"g", "0"}, 1),
		mos,
	)
	require.NoError(t, c.Setup(consts.REFTMP))
	defer c.Destroy()

	// d, g, two branch currents and the gate resistor node
	assert.Equal(t, 5, c.Size())
	assert.Equal(t, map[string]int{"d": 1, "g": 2}, c.GetNodeMap())

	vd, _ := c.Device("VD")
	vg, _ := c.Device("VG")
	assert.True(t, c.IsBranch(vd.(device.BranchDevice).BranchIndex()))
	assert.True(t, c.IsBranch(vg.(device.BranchDevice).BranchIndex()))
	assert.False(t, c.IsBranch(1))

	assert.Error(t, c.Add(device.NewResistor("R9", []string{"d", "0"}, 1)))
	assert.Error(t, c.Setup(consts.REFTMP))
}

func TestSetupRejectsBadTemperature(t *testing.T) {
	r := device.NewResistor("R1", []string{"a", "0"}, 1)
	r.Tc1 = -1
	c := New("hot").MustAdd(r)
	assert.Error(t, c.Setup(consts.REFTMP+10))
}

func TestBreakpointsMerged(t *testing.T) {
	c := New("bp").MustAdd(
		device.NewVoltageSource("V1", []string{"a", "0"}, device.PulseWave(0, 1, 1, 1, 1, 1, 0)),
		device.NewVoltageSource("V2", []string{"b", "0"}, device.PWLWave([]float64{0, 2, 5}, []float64{0, 1, 0})),
		device.NewResistor("R1", []string{"a", "b"}, 1),
	)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, c.Breakpoints(10))
}

func TestGetSolution(t *testing.T) {
	c := New("sol").MustAdd(
		device.NewDCVoltageSource("V1", []string{"a", "0"}, 2),
		device.NewResistor("R1", []string{"a", "b"}, 100),
		device.NewResistor("R2", []string{"b", "0"}, 100),
	)
	require.NoError(t, c.Setup(consts.REFTMP))
	defer c.Destroy()

	sol := c.GetSolution([]float64{0, 2, 1, -0.01})
	assert.Equal(t, 2.0, sol["V(a)"])
	assert.Equal(t, 1.0, sol["V(b)"])
	assert.Equal(t, -0.01, sol["I(V1)"])
	assert.InDelta(t, 0.01, sol["I(R1)"], 1e-15)
	assert.InDelta(t, 0.01, sol["I(R2)"], 1e-15)
	assert.NotContains(t, sol, "V(V1#branch)")
}

func TestStampSolvesDivider(t *testing.T) {
	c := New("div").MustAdd(
		device.NewDCVoltageSource("V1", []string{"a", "0"}, 3),
		device.NewResistor("R1", []string{"a", "b"}, 2e3),
		device.NewResistor("R2", []string{"b", "0"}, 1e3),
	)
	require.NoError(t, c.Setup(consts.REFTMP))
	defer c.Destroy()

	status := &device.CircuitStatus{
		Mode:     device.OperatingPointAnalysis,
		Temp:     c.Temperature(),
		Solution: make([]float64, c.Size()+1),
	}
	mat := c.GetMatrix()
	mat.Clear()
	require.NoError(t, c.Stamp(status))
	require.NoError(t, mat.Solve())

	sol := c.GetSolution(mat.Solution())
	assert.InDelta(t, 1, sol["V(b)"], 1e-12)
	assert.InDelta(t, -1e-3, sol["I(V1)"], 1e-15)
}
