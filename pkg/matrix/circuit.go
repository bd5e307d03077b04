package matrix

import (
	"fmt"
	"log/slog"

	"github.com/edp1096/sparse"
)

type CircuitMatrix struct {
	Size         int
	matrix       *sparse.Matrix
	rhs          []float64
	rhsImag      []float64
	solution     []float64
	solutionImag []float64
	diags        []*sparse.Element
	config       *sparse.Configuration
}

type sparseCell struct{ e *sparse.Element }

func (c sparseCell) Add(value float64) { c.e.Real += value }

func (c sparseCell) AddComplex(real, imag float64) {
	c.e.Real += real
	c.e.Imag += imag
}

func NewMatrix(size int, isComplex bool) (*CircuitMatrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 isComplex,
		SeparatedComplexVectors: true,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %w", err)
	}

	m := &CircuitMatrix{
		Size:         size,
		matrix:       mat,
		rhs:          make([]float64, size+1), // 1-based indexing
		rhsImag:      make([]float64, size+1),
		solution:     make([]float64, size+1),
		solutionImag: make([]float64, size+1),
		diags:        make([]*sparse.Element, size+1),
		config:       config,
	}

	// Diagonal handles are taken before the first factor so gmin loading survives pivoting.
	for i := 1; i <= size; i++ {
		m.diags[i] = mat.GetElement(int64(i), int64(i))
	}

	return m, nil
}

func (m *CircuitMatrix) Cell(row, col int) Cell {
	if row <= 0 || col <= 0 {
		return Ground
	}
	if row > m.Size || col > m.Size {
		slog.Warn("matrix index out of bounds", slog.Int("row", row), slog.Int("col", col), slog.Int("size", m.Size))
		return Ground
	}
	return sparseCell{m.matrix.GetElement(int64(row), int64(col))}
}

func (m *CircuitMatrix) AddRHS(i int, value float64) {
	if i <= 0 || i > m.Size {
		return
	}
	m.rhs[i] += value
}

func (m *CircuitMatrix) AddComplexRHS(i int, real, imag float64) {
	if i <= 0 || i > m.Size {
		return
	}
	m.rhs[i] += real
	m.rhsImag[i] += imag
}

func (m *CircuitMatrix) LoadGmin(gmin float64) {
	if gmin == 0 {
		return
	}
	for i := 1; i <= m.Size; i++ {
		m.diags[i].Real += gmin
	}
}

func (m *CircuitMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	for i := range m.rhsImag {
		m.rhsImag[i] = 0
	}
}

func (m *CircuitMatrix) Solve() error {
	var err error

	err = m.matrix.Factor()
	if err != nil {
		return fmt.Errorf("matrix factorization failed: %w", err)
	}

	if m.config.Complex {
		m.solution, m.solutionImag, err = m.matrix.SolveComplex(m.rhs, m.rhsImag)
	} else {
		m.solution, err = m.matrix.Solve(m.rhs)
	}

	if err != nil {
		return fmt.Errorf("matrix solve failed: %w", err)
	}

	return nil
}

// SolveTransposed solves A^T x = rhs against the factors of the last Solve.
func (m *CircuitMatrix) SolveTransposed(rhs, irhs []float64) ([]float64, []float64, error) {
	if m.config.Complex {
		re, im, err := m.matrix.SolveComplexTransposed(rhs, irhs)
		if err != nil {
			return nil, nil, fmt.Errorf("transposed solve failed: %w", err)
		}
		return re, im, nil
	}

	re, err := m.matrix.SolveTransposed(rhs)
	if err != nil {
		return nil, nil, fmt.Errorf("transposed solve failed: %w", err)
	}
	return re, make([]float64, len(re)), nil
}

func (m *CircuitMatrix) RHS() []float64 {
	return m.rhs
}

func (m *CircuitMatrix) Solution() []float64 {
	return m.solution
}

func (m *CircuitMatrix) SolutionImag() []float64 {
	return m.solutionImag
}

func (m *CircuitMatrix) ComplexSolution(i int) complex128 {
	if i <= 0 || i > m.Size || m.solutionImag == nil {
		return 0
	}
	return complex(m.solution[i], m.solutionImag[i])
}

func (m *CircuitMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
	}
}
