package matrix

// Cell is a pre-resolved handle to one matrix entry.
type Cell interface {
	Add(value float64)
	AddComplex(real, imag float64)
}

// DeviceMatrix is the sink devices stamp into. Indices are 1-based, 0 is ground.
// Cells are resolved once at bind time and written every load.
type DeviceMatrix interface {
	Cell(row, col int) Cell
	AddRHS(i int, value float64)
	AddComplexRHS(i int, real, imag float64)
}

// groundCell absorbs writes to row or column 0.
type groundCell struct{}

func (groundCell) Add(float64)                {}
func (groundCell) AddComplex(float64, float64) {}

// Ground is the cell returned for any entry touching the reference node.
var Ground Cell = groundCell{}
