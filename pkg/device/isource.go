package device

import (
	"fmt"

	"github.com/edp1096/toy-bsim/pkg/matrix"
)

// CurrentSource drives its current into n1 and out of n2.
type CurrentSource struct {
	BaseDevice
	Wave Waveform
}

var _ Breakpointer = (*CurrentSource)(nil)

func NewCurrentSource(name string, nodeNames []string, wave Waveform) *CurrentSource {
	if len(nodeNames) != 2 {
		panic(fmt.Sprintf("current source %s: requires exactly 2 nodes", name))
	}
	return &CurrentSource{
		BaseDevice: *NewBaseDevice(name, wave.DCValue(), nodeNames),
		Wave:       wave,
	}
}

func NewDCCurrentSource(name string, nodeNames []string, value float64) *CurrentSource {
	return NewCurrentSource(name, nodeNames, DCWave(value))
}

func (i *CurrentSource) GetType() string { return "I" }

func (i *CurrentSource) SetValue(value float64) {
	i.Value = value
	i.Wave = Waveform{Type: DC, DC: value, ACMag: i.Wave.ACMag, ACPhase: i.Wave.ACPhase}
}

func (i *CurrentSource) GetCurrent(status *CircuitStatus) float64 {
	if status.Mode == TransientAnalysis {
		return i.Wave.At(status.Time)
	}
	return i.Wave.DCValue()
}

func (i *CurrentSource) Breakpoints(stop float64) []float64 { return i.Wave.Breakpoints(stop) }

// Bind is a no-op, the source only writes the right-hand side.
func (i *CurrentSource) Bind(matrix.DeviceMatrix) {}

func (i *CurrentSource) Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error {
	current := i.GetCurrent(status)
	m.AddRHS(i.Nodes[0], current)
	m.AddRHS(i.Nodes[1], -current)
	return nil
}

func (i *CurrentSource) StampAC(m matrix.DeviceMatrix, status *CircuitStatus) error {
	re, im := i.Wave.Phasor()
	m.AddComplexRHS(i.Nodes[0], re, im)
	m.AddComplexRHS(i.Nodes[1], -re, -im)
	return nil
}
