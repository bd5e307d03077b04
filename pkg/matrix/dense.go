package matrix

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DenseSystem is a small real linear system for private per-device solves.
// It implements DeviceMatrix with the same 1-based, ground-is-0 convention as CircuitMatrix.
// Imaginary parts written through it are discarded.
type DenseSystem struct {
	Size int
	a    *mat.Dense
	b    *mat.VecDense
}

type denseCell struct {
	a        *mat.Dense
	row, col int
}

func (c denseCell) Add(value float64) {
	c.a.Set(c.row, c.col, c.a.At(c.row, c.col)+value)
}

func (c denseCell) AddComplex(real, _ float64) {
	c.Add(real)
}

func NewDenseSystem(size int) *DenseSystem {
	return &DenseSystem{
		Size: size,
		a:    mat.NewDense(size, size, nil),
		b:    mat.NewVecDense(size, nil),
	}
}

func (d *DenseSystem) Cell(row, col int) Cell {
	if row <= 0 || col <= 0 || row > d.Size || col > d.Size {
		return Ground
	}
	return denseCell{a: d.a, row: row - 1, col: col - 1}
}

func (d *DenseSystem) AddRHS(i int, value float64) {
	if i <= 0 || i > d.Size {
		return
	}
	d.b.SetVec(i-1, d.b.AtVec(i-1)+value)
}

func (d *DenseSystem) AddComplexRHS(i int, real, _ float64) {
	d.AddRHS(i, real)
}

func (d *DenseSystem) Clear() {
	d.a.Zero()
	d.b.Zero()
}

// Solve solves the system with the rows in fixed replaced by v[i] = value.
// The stored system is left untouched. The result is 1-based.
func (d *DenseSystem) Solve(fixed map[int]float64) ([]float64, error) {
	a := mat.DenseCopyOf(d.a)
	b := mat.VecDenseCopyOf(d.b)
	for i, value := range fixed {
		if i <= 0 || i > d.Size {
			continue
		}
		for c := 0; c < d.Size; c++ {
			a.Set(i-1, c, 0)
		}
		a.Set(i-1, i-1, 1)
		b.SetVec(i-1, value)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("dense solve failed: %w", err)
		}
	}

	solution := make([]float64, d.Size+1)
	for i := 0; i < d.Size; i++ {
		solution[i+1] = x.AtVec(i)
	}
	return solution, nil
}

// Residual returns row·v - rhs for the stored (unfixed) row i.
func (d *DenseSystem) Residual(i int, v []float64) float64 {
	if i <= 0 || i > d.Size {
		return 0
	}
	sum := -d.b.AtVec(i - 1)
	for c := 0; c < d.Size; c++ {
		sum += d.a.At(i-1, c) * v[c+1]
	}
	return sum
}
