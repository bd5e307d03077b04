// Package circuit assembles devices into a numbered node system and owns the shared matrices.
package circuit

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/edp1096/toy-bsim/pkg/device"
	"github.com/edp1096/toy-bsim/pkg/matrix"
)

type Circuit struct {
	name      string
	nodeMap   map[string]int
	nodeNames []string // Index 0 is ground
	external  int      // Nodes named by devices, internal nodes follow
	devices   []device.Device
	byName    map[string]device.Device
	branches  map[int]bool

	matrix   *matrix.CircuitMatrix
	acMatrix *matrix.CircuitMatrix
	temp     float64
}

var _ device.NodeAllocator = (*Circuit)(nil)

func New(name string) *Circuit {
	return &Circuit{
		name:      name,
		nodeMap:   map[string]int{"0": 0},
		nodeNames: []string{"0"},
		byName:    make(map[string]device.Device),
	}
}

func (c *Circuit) Name() string { return c.name }

func isGround(name string) bool { return name == "0" || name == "gnd" }

// Node returns the index of a named node, creating it on first use.
func (c *Circuit) Node(name string) int {
	if isGround(name) {
		return 0
	}
	if idx, ok := c.nodeMap[name]; ok {
		return idx
	}
	if c.matrix != nil {
		panic(fmt.Sprintf("circuit %s: node %s added after setup", c.name, name))
	}
	idx := len(c.nodeNames)
	c.nodeMap[name] = idx
	c.nodeNames = append(c.nodeNames, name)
	return idx
}

// NewNode allocates an internal node or branch unknown during setup.
func (c *Circuit) NewNode(name string) int {
	unique := name
	for i := 1; ; i++ {
		if _, taken := c.nodeMap[unique]; !taken {
			break
		}
		unique = fmt.Sprintf("%s#%d", name, i)
	}
	idx := len(c.nodeNames)
	c.nodeMap[unique] = idx
	c.nodeNames = append(c.nodeNames, unique)
	return idx
}

// Add connects dev to the nodes it names.
func (c *Circuit) Add(dev device.Device) error {
	name := dev.GetName()
	if _, dup := c.byName[name]; dup {
		return fmt.Errorf("circuit %s: duplicate device %s", c.name, name)
	}
	if c.matrix != nil {
		return fmt.Errorf("circuit %s: device %s added after setup", c.name, name)
	}

	names := dev.GetNodeNames()
	nodes := make([]int, len(names))
	for i, n := range names {
		nodes[i] = c.Node(n)
	}
	dev.SetNodes(nodes)

	c.devices = append(c.devices, dev)
	c.byName[name] = dev
	return nil
}

// MustAdd is Add for circuits built in code, where a duplicate is a programming error.
func (c *Circuit) MustAdd(devs ...device.Device) *Circuit {
	for _, d := range devs {
		if err := c.Add(d); err != nil {
			panic(err)
		}
	}
	return c
}

// Setup lets devices allocate internal nodes, derives temperature dependent parameters,
// creates the real and complex matrices and binds every device to both.
func (c *Circuit) Setup(temp float64) error {
	if c.matrix != nil {
		return fmt.Errorf("circuit %s: already set up", c.name)
	}
	if len(c.devices) == 0 {
		return fmt.Errorf("circuit %s: no devices", c.name)
	}
	c.external = len(c.nodeNames) - 1

	for _, dev := range c.devices {
		if in, ok := dev.(device.InternalNodes); ok {
			if err := in.Setup(c); err != nil {
				return fmt.Errorf("setup %s: %w", dev.GetName(), err)
			}
		}
	}

	c.branches = make(map[int]bool)
	for _, dev := range c.devices {
		if b, ok := dev.(device.BranchDevice); ok {
			c.branches[b.BranchIndex()] = true
		}
	}

	if err := c.SetTemperature(temp); err != nil {
		return err
	}

	size := c.Size()
	var err error
	c.matrix, err = matrix.NewMatrix(size, false)
	if err != nil {
		return fmt.Errorf("circuit %s: %w", c.name, err)
	}
	c.acMatrix, err = matrix.NewMatrix(size, true)
	if err != nil {
		c.matrix.Destroy()
		c.matrix = nil
		return fmt.Errorf("circuit %s: %w", c.name, err)
	}

	for _, dev := range c.devices {
		dev.Bind(c.matrix)
		dev.Bind(c.acMatrix)
	}

	slog.Debug("circuit set up",
		slog.String("circuit", c.name),
		slog.Int("nodes", c.external),
		slog.Int("unknowns", size),
		slog.Int("devices", len(c.devices)))
	return nil
}

// SetTemperature re-derives every temperature dependent device at temp (K).
func (c *Circuit) SetTemperature(temp float64) error {
	c.temp = temp
	for _, dev := range c.devices {
		if td, ok := dev.(device.TemperatureDependent); ok {
			if err := td.Temperature(temp); err != nil {
				return fmt.Errorf("temperature %s: %w", dev.GetName(), err)
			}
		}
	}
	return nil
}

func (c *Circuit) Temperature() float64 { return c.temp }

// Size is the number of unknowns, ground excluded.
func (c *Circuit) Size() int { return len(c.nodeNames) - 1 }

// IsBranch reports whether unknown idx is a branch current rather than a node voltage.
func (c *Circuit) IsBranch(idx int) bool { return c.branches[idx] }

func (c *Circuit) GetMatrix() *matrix.CircuitMatrix { return c.matrix }

func (c *Circuit) GetACMatrix() *matrix.CircuitMatrix { return c.acMatrix }

func (c *Circuit) GetDevices() []device.Device { return c.devices }

func (c *Circuit) Device(name string) (device.Device, bool) {
	dev, ok := c.byName[name]
	return dev, ok
}

// NodeIndex looks a node up by name.
func (c *Circuit) NodeIndex(name string) (int, bool) {
	if isGround(name) {
		return 0, true
	}
	idx, ok := c.nodeMap[name]
	return idx, ok
}

// GetNodeMap returns the nodes named by devices.
func (c *Circuit) GetNodeMap() map[string]int {
	nodes := make(map[string]int, len(c.nodeMap))
	for name, idx := range c.nodeMap {
		if idx > 0 && (c.external == 0 || idx <= c.external) {
			nodes[name] = idx
		}
	}
	return nodes
}

// Stamp loads every device into the real matrix.
func (c *Circuit) Stamp(status *device.CircuitStatus) error {
	for _, dev := range c.devices {
		if err := dev.Stamp(c.matrix, status); err != nil {
			return fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
		}
	}
	return nil
}

// StampAC loads the small-signal admittances into the complex matrix.
func (c *Circuit) StampAC(status *device.CircuitStatus) error {
	for _, dev := range c.devices {
		ac, ok := dev.(device.ACElement)
		if !ok {
			continue
		}
		if err := ac.StampAC(c.acMatrix, status); err != nil {
			return fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
		}
	}
	return nil
}

// StampPZ loads G + sC into the complex matrix.
func (c *Circuit) StampPZ(s complex128) error {
	for _, dev := range c.devices {
		pz, ok := dev.(device.PoleZeroElement)
		if !ok {
			continue
		}
		if err := pz.StampPZ(c.acMatrix, s); err != nil {
			return fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
		}
	}
	return nil
}

// ConvTest asks every nonlinear device whether its currents agree with the proposed solution.
func (c *Circuit) ConvTest(status *device.CircuitStatus) {
	for _, dev := range c.devices {
		if nl, ok := dev.(device.NonLinear); ok {
			nl.ConvTest(status)
		}
	}
}

func (c *Circuit) UpdateState(status *device.CircuitStatus) {
	for _, dev := range c.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.UpdateState(status)
		}
	}
}

// Truncate returns the largest next step every device allows, at most limit.
func (c *Circuit) Truncate(status *device.CircuitStatus, limit float64) float64 {
	step := limit
	for _, dev := range c.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.Truncate(status, &step)
		}
	}
	return step
}

func (c *Circuit) GetIC(solution []float64) {
	for _, dev := range c.devices {
		if ic, ok := dev.(device.InitialCondition); ok {
			ic.GetIC(solution)
		}
	}
}

func (c *Circuit) SaveCheckpoints() {
	for _, dev := range c.devices {
		if cp, ok := dev.(device.Checkpointer); ok {
			cp.SaveCheckpoint()
		}
	}
}

func (c *Circuit) RestoreCheckpoints() error {
	for _, dev := range c.devices {
		if cp, ok := dev.(device.Checkpointer); ok {
			if err := cp.RestoreCheckpoint(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Circuit) DiscardCheckpoints() {
	for _, dev := range c.devices {
		if cp, ok := dev.(device.Checkpointer); ok {
			cp.DiscardCheckpoint()
		}
	}
}

// Breakpoints merges the waveform corners of every source, sorted and without duplicates.
func (c *Circuit) Breakpoints(stop float64) []float64 {
	var bps []float64
	for _, dev := range c.devices {
		if bp, ok := dev.(device.Breakpointer); ok {
			bps = append(bps, bp.Breakpoints(stop)...)
		}
	}
	slices.Sort(bps)
	return slices.Compact(bps)
}

// GetSolution names the entries of solution: V(node) for external nodes and I(dev) for
// branch devices and resistors.
func (c *Circuit) GetSolution(solution []float64) map[string]float64 {
	at := func(idx int) float64 {
		if idx <= 0 || idx >= len(solution) {
			return 0
		}
		return solution[idx]
	}

	out := make(map[string]float64)
	for name, idx := range c.GetNodeMap() {
		out[fmt.Sprintf("V(%s)", name)] = at(idx)
	}
	for _, dev := range c.devices {
		switch d := dev.(type) {
		case device.BranchDevice:
			out[fmt.Sprintf("I(%s)", dev.GetName())] = at(d.BranchIndex())
		case *device.Resistor:
			n := d.GetNodes()
			out[fmt.Sprintf("I(%s)", dev.GetName())] = (at(n[0]) - at(n[1])) * d.Conductance()
		}
	}
	return out
}

// GetComplexSolution is GetSolution for the complex matrix.
func (c *Circuit) GetComplexSolution() map[string]complex128 {
	out := make(map[string]complex128)
	for name, idx := range c.GetNodeMap() {
		out[fmt.Sprintf("V(%s)", name)] = c.acMatrix.ComplexSolution(idx)
	}
	for _, dev := range c.devices {
		if b, ok := dev.(device.BranchDevice); ok {
			out[fmt.Sprintf("I(%s)", dev.GetName())] = c.acMatrix.ComplexSolution(b.BranchIndex())
		}
	}
	return out
}

func (c *Circuit) Destroy() {
	if c.matrix != nil {
		c.matrix.Destroy()
	}
	if c.acMatrix != nil {
		c.acMatrix.Destroy()
	}
}
