package device

import (
	"fmt"

	"github.com/edp1096/toy-bsim/pkg/matrix"
)

type VoltageSource struct {
	BaseDevice
	Wave Waveform

	branchIdx int
	cells     cellSet
}

var (
	_ InternalNodes = (*VoltageSource)(nil)
	_ BranchDevice  = (*VoltageSource)(nil)
	_ Breakpointer  = (*VoltageSource)(nil)
)

func NewVoltageSource(name string, nodeNames []string, wave Waveform) *VoltageSource {
	if len(nodeNames) != 2 {
		panic(fmt.Sprintf("voltage source %s: requires exactly 2 nodes", name))
	}
	return &VoltageSource{
		BaseDevice: *NewBaseDevice(name, wave.DCValue(), nodeNames),
		Wave:       wave,
	}
}

func NewDCVoltageSource(name string, nodeNames []string, value float64) *VoltageSource {
	return NewVoltageSource(name, nodeNames, DCWave(value))
}

func NewACVoltageSource(name string, nodeNames []string, dcValue, acMag, acPhase float64) *VoltageSource {
	w := DCWave(dcValue)
	w.ACMag, w.ACPhase = acMag, acPhase
	return NewVoltageSource(name, nodeNames, w)
}

func (v *VoltageSource) GetType() string { return "V" }

// Setup allocates the branch current unknown.
func (v *VoltageSource) Setup(alloc NodeAllocator) error {
	v.branchIdx = alloc.NewNode(v.Name + "#branch")
	return nil
}

func (v *VoltageSource) BranchIndex() int { return v.branchIdx }

// SetValue replaces the DC value, used by sweeps.
func (v *VoltageSource) SetValue(value float64) {
	v.Value = value
	v.Wave.DC = value
	if v.Wave.Type != DC {
		v.Wave = Waveform{Type: DC, DC: value, ACMag: v.Wave.ACMag, ACPhase: v.Wave.ACPhase}
	}
}

func (v *VoltageSource) GetVoltage(status *CircuitStatus) float64 {
	if status.Mode == TransientAnalysis {
		return v.Wave.At(status.Time)
	}
	return v.Wave.DCValue()
}

func (v *VoltageSource) Breakpoints(stop float64) []float64 { return v.Wave.Breakpoints(stop) }

func (v *VoltageSource) Bind(m matrix.DeviceMatrix) {
	v.cells.bind(m, branchEntries(v.Nodes[0], v.Nodes[1], v.branchIdx)...)
}

// Stamp adds v1 - v2 = V on the branch row and the branch current to the node rows.
func (v *VoltageSource) Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error {
	cells, err := v.cells.lookup(v.Name, m)
	if err != nil {
		return err
	}
	addBranch(cells)
	m.AddRHS(v.branchIdx, v.GetVoltage(status))
	return nil
}

func (v *VoltageSource) StampAC(m matrix.DeviceMatrix, status *CircuitStatus) error {
	cells, err := v.cells.lookup(v.Name, m)
	if err != nil {
		return err
	}
	addBranch(cells)
	re, im := v.Wave.Phasor()
	m.AddComplexRHS(v.branchIdx, re, im)
	return nil
}

// StampPZ adds the branch topology only, the source is a short for pole-zero.
func (v *VoltageSource) StampPZ(m matrix.DeviceMatrix, _ complex128) error {
	cells, err := v.cells.lookup(v.Name, m)
	if err != nil {
		return err
	}
	addBranch(cells)
	return nil
}
