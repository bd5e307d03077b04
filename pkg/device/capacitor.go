package device

import (
	"fmt"
	"math"

	"github.com/edp1096/toy-bsim/pkg/matrix"
	"github.com/edp1096/toy-bsim/pkg/util"
)

type Capacitor struct {
	BaseDevice
	IC      float64 // Initial voltage for transients started from initial conditions
	icGiven bool

	q     util.ChargeState
	cells cellSet
}

var (
	_ TimeDependent    = (*Capacitor)(nil)
	_ InitialCondition = (*Capacitor)(nil)
)

func NewCapacitor(name string, nodeNames []string, value float64) *Capacitor {
	if len(nodeNames) != 2 {
		panic(fmt.Sprintf("capacitor %s: requires exactly 2 nodes", name))
	}
	return &Capacitor{BaseDevice: *NewBaseDevice(name, value, nodeNames)}
}

func (c *Capacitor) GetType() string { return "C" }

func (c *Capacitor) SetIC(v float64) {
	c.IC = v
	c.icGiven = true
}

// GetIC takes the initial voltage from solution unless one was given.
func (c *Capacitor) GetIC(solution []float64) {
	if c.icGiven {
		return
	}
	at := func(n int) float64 {
		if n <= 0 || n >= len(solution) {
			return 0
		}
		return solution[n]
	}
	c.IC = at(c.Nodes[0]) - at(c.Nodes[1])
}

// Charge is the charge at the present point.
func (c *Capacitor) Charge() float64 { return c.q.Q[0] }

func (c *Capacitor) Bind(m matrix.DeviceMatrix) {
	c.cells.bind(m, admittanceEntries(c.Nodes[0], c.Nodes[1])...)
}

func (c *Capacitor) Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error {
	cells, err := c.cells.lookup(c.Name, m)
	if err != nil {
		return err
	}

	n1, n2 := c.Nodes[0], c.Nodes[1]
	v := status.Voltage(n1) - status.Voltage(n2)
	if status.UseIC && status.Init == InitTransient {
		v = c.IC
	}
	c.q.Q[0] = c.Value * v

	// Open circuit outside transient
	if !status.IsTransient() {
		return nil
	}

	if status.Init == InitTransient {
		c.q.CQ[0] = 0
		c.q.Seed()
	}
	geq, ceq := status.Integrator.Integrate(&c.q, c.Value)
	addConductance(cells, geq)
	m.AddRHS(n1, -ceq)
	m.AddRHS(n2, ceq)
	return nil
}

func (c *Capacitor) StampAC(m matrix.DeviceMatrix, status *CircuitStatus) error {
	return c.StampPZ(m, complex(0, 2*math.Pi*status.Frequency))
}

func (c *Capacitor) StampPZ(m matrix.DeviceMatrix, s complex128) error {
	cells, err := c.cells.lookup(c.Name, m)
	if err != nil {
		return err
	}
	addAdmittance(cells, real(s)*c.Value, imag(s)*c.Value)
	return nil
}

func (c *Capacitor) UpdateState(status *CircuitStatus) {
	if status.IsTransient() {
		c.q.Shift()
	}
}

func (c *Capacitor) Truncate(status *CircuitStatus, timeStep *float64) {
	if status.IsTransient() {
		status.Integrator.TruncationStep(&c.q, timeStep)
	}
}
