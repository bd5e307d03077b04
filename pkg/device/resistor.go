package device

import (
	"fmt"

	"github.com/edp1096/toy-bsim/internal/consts"
	"github.com/edp1096/toy-bsim/pkg/matrix"
)

type Resistor struct {
	BaseDevice
	Tc1  float64
	Tc2  float64
	Tnom float64

	temp  float64
	g     float64
	cells cellSet
}

var (
	_ TemperatureDependent = (*Resistor)(nil)
	_ Noisy                = (*Resistor)(nil)
)

func NewResistor(name string, nodeNames []string, value float64) *Resistor {
	if len(nodeNames) != 2 {
		panic(fmt.Sprintf("resistor %s: requires exactly 2 nodes", name))
	}
	return &Resistor{
		BaseDevice: *NewBaseDevice(name, value, nodeNames),
		Tnom:       consts.REFTMP,
		temp:       consts.REFTMP,
		g:          1.0 / value,
	}
}

func (r *Resistor) GetType() string { return "R" }

// Conductance is the temperature adjusted 1/R.
func (r *Resistor) Conductance() float64 { return r.g }

func (r *Resistor) Temperature(temp float64) error {
	dt := temp - r.Tnom
	value := r.Value * (1.0 + r.Tc1*dt + r.Tc2*dt*dt)
	if value <= 0 {
		return fmt.Errorf("resistor %s: non-positive resistance %g at %gK", r.Name, value, temp)
	}
	r.temp = temp
	r.g = 1.0 / value
	return nil
}

func (r *Resistor) Bind(m matrix.DeviceMatrix) {
	r.cells.bind(m, admittanceEntries(r.Nodes[0], r.Nodes[1])...)
}

func (r *Resistor) Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error {
	cells, err := r.cells.lookup(r.Name, m)
	if err != nil {
		return err
	}
	addConductance(cells, r.g)
	return nil
}

func (r *Resistor) StampAC(m matrix.DeviceMatrix, status *CircuitStatus) error {
	return r.StampPZ(m, 0)
}

func (r *Resistor) StampPZ(m matrix.DeviceMatrix, _ complex128) error {
	cells, err := r.cells.lookup(r.Name, m)
	if err != nil {
		return err
	}
	addAdmittance(cells, r.g, 0)
	return nil
}

// Noise records the thermal noise 4kTG.
func (r *Resistor) Noise(ctx NoiseContext, status *CircuitStatus) {
	density := 4 * consts.BOLTZMANN * r.temp * r.g * NoiseGain(ctx, r.Nodes[0], r.Nodes[1])
	ctx.Record(r.Name, "thermal", density)
}
