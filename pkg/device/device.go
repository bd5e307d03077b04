package device

import (
	"errors"

	"github.com/edp1096/toy-bsim/pkg/config"
	"github.com/edp1096/toy-bsim/pkg/matrix"
	"github.com/edp1096/toy-bsim/pkg/util"
)

type Device interface {
	GetName() string
	GetType() string
	GetNodeNames() []string
	GetNodes() []int
	SetNodes(nodes []int)
	Bind(m matrix.DeviceMatrix)
	Stamp(m matrix.DeviceMatrix, status *CircuitStatus) error
}

var ErrNotBound = errors.New("device is not bound to the matrix")

type BaseDevice struct {
	Name      string
	Nodes     []int
	Value     float64
	NodeNames []string
}

type ModelParam struct {
	Type   string
	Name   string
	Params map[string]float64
}

// InternalNodes is implemented by devices that add nodes of their own at setup.
type InternalNodes interface {
	Setup(alloc NodeAllocator) error
}

// TemperatureDependent is implemented by devices whose parameters are derived per temperature (K).
type TemperatureDependent interface {
	Temperature(temp float64) error
}

type ACElement interface {
	StampAC(m matrix.DeviceMatrix, status *CircuitStatus) error
}

// PoleZeroElement stamps G + s*C at a complex frequency s.
type PoleZeroElement interface {
	StampPZ(m matrix.DeviceMatrix, s complex128) error
}

type TimeDependent interface {
	// UpdateState commits the present point as the last accepted one.
	UpdateState(status *CircuitStatus)
	// Truncate shrinks timeStep to what the device's charge states allow.
	Truncate(status *CircuitStatus, timeStep *float64)
}

// Checkpointer is implemented by devices whose iteration state can be rolled back after a
// rejected time point or a failed continuation step.
type Checkpointer interface {
	SaveCheckpoint()
	RestoreCheckpoint() error
	DiscardCheckpoint()
}

// BranchDevice is implemented by devices that add a branch current unknown.
type BranchDevice interface {
	BranchIndex() int
}

// Breakpointer is implemented by sources with waveform corners a transient must land on.
type Breakpointer interface {
	Breakpoints(stop float64) []float64
}

type NonLinear interface {
	// ConvTest reports non-convergence to status.Counter for the proposed solution.
	ConvTest(status *CircuitStatus)
}

type Noisy interface {
	Noise(ctx NoiseContext, status *CircuitStatus)
}

// InitialCondition is implemented by devices that can derive their initial conditions from a solution.
type InitialCondition interface {
	GetIC(solution []float64)
}

// Integrator is the implicit integration primitive applied to one charge state.
type Integrator interface {
	Integrate(s *util.ChargeState, capacitance float64) (geq, ceq float64)
	History(s *util.ChargeState) float64
	Coefficient() float64
	TruncationStep(s *util.ChargeState, timeStep *float64)
}

// ConvergenceCounter accumulates non-convergence signals for the driver.
type ConvergenceCounter interface {
	NonConverged(source string)
	Count() int
	Reset()
}

type NodeAllocator interface {
	NewNode(name string) int
}

// NoiseContext gives a device the small-signal transfer to the noise output at one frequency
// and collects the named densities it produces.
type NoiseContext interface {
	Frequency() float64
	// Transfer is the output response to a unit current injected from neg into pos.
	Transfer(pos, neg int) complex128
	Record(device, source string, density float64)
}

// NoiseGain is |Transfer(pos, neg)|^2.
func NoiseGain(ctx NoiseContext, pos, neg int) float64 {
	h := ctx.Transfer(pos, neg)
	return real(h)*real(h) + imag(h)*imag(h)
}

type SourceType int

const (
	DC SourceType = iota
	SIN
	PULSE
	PWL
)

type AnalysisMode int

const (
	OperatingPointAnalysis AnalysisMode = iota
	TransientAnalysis
	ACAnalysis
	DCSweep
	NoiseAnalysis
	PoleZeroAnalysis
)

// InitMode tells nonlinear devices where the present iteration starts from.
type InitMode int

const (
	InitFloat       InitMode = iota // Iterate from the trial solution
	InitJunction                    // First iteration: junctions at their critical voltages
	InitFix                         // Like InitJunction but honors "off"
	InitTransient                   // First transient point, seed the charge history
	InitPredict                     // Extrapolate from the accepted history
	InitSmallSignal                 // Store small-signal values only
)

type CircuitStatus struct {
	Time       float64
	TimeStep   float64
	Gmin       float64
	Mode       AnalysisMode
	Init       InitMode
	UseIC      bool // Transient from initial conditions, no operating point
	Temp       float64
	Frequency  float64 // AC frequency (Hz)
	Solution   []float64
	Integrator Integrator
	Counter    ConvergenceCounter
	Tol        config.Tolerances
}

// IsTransient reports whether charges need companion models.
func (s *CircuitStatus) IsTransient() bool {
	return s.Mode == TransientAnalysis && s.Integrator != nil
}

// Voltage is the solution value of a node, 0 for ground.
func (s *CircuitStatus) Voltage(node int) float64 {
	if node <= 0 || node >= len(s.Solution) {
		return 0
	}
	return s.Solution[node]
}

func (d *BaseDevice) GetName() string {
	return d.Name
}

func (d *BaseDevice) GetNodes() []int {
	return d.Nodes
}

func (d *BaseDevice) GetNodeNames() []string {
	return d.NodeNames
}

func (d *BaseDevice) GetValue() float64 {
	return d.Value
}

func (d *BaseDevice) SetNodes(nodes []int) {
	d.Nodes = nodes
}

func NewBaseDevice(name string, value float64, nodeNames []string) *BaseDevice {
	return &BaseDevice{
		Name:      name,
		Value:     value,
		NodeNames: nodeNames,
		Nodes:     make([]int, len(nodeNames)),
	}
}
