package device

import (
	"fmt"

	"github.com/edp1096/toy-bsim/pkg/matrix"
)

// cellSet keeps the handles a device resolved against every matrix it was bound to.
type cellSet map[matrix.DeviceMatrix][]matrix.Cell

func (cs *cellSet) bind(m matrix.DeviceMatrix, entries ...[2]int) {
	if *cs == nil {
		*cs = cellSet{}
	}
	cells := make([]matrix.Cell, len(entries))
	for i, e := range entries {
		cells[i] = m.Cell(e[0], e[1])
	}
	(*cs)[m] = cells
}

func (cs cellSet) lookup(name string, m matrix.DeviceMatrix) ([]matrix.Cell, error) {
	cells, ok := cs[m]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotBound)
	}
	return cells, nil
}

// admittanceEntries are the four entries an admittance between a and b touches.
func admittanceEntries(a, b int) [][2]int {
	return [][2]int{{a, a}, {a, b}, {b, a}, {b, b}}
}

// addAdmittance stamps y between the nodes of cells resolved from admittanceEntries.
func addAdmittance(cells []matrix.Cell, re, im float64) {
	cells[0].AddComplex(re, im)
	cells[1].AddComplex(-re, -im)
	cells[2].AddComplex(-re, -im)
	cells[3].AddComplex(re, im)
}

func addConductance(cells []matrix.Cell, g float64) {
	cells[0].Add(g)
	cells[1].Add(-g)
	cells[2].Add(-g)
	cells[3].Add(g)
}

// branchEntries couple a branch current b to the nodes a (+) and c (-).
func branchEntries(a, c, b int) [][2]int {
	return [][2]int{{a, b}, {c, b}, {b, a}, {b, c}}
}

func addBranch(cells []matrix.Cell) {
	cells[0].Add(1)
	cells[1].Add(-1)
	cells[2].Add(1)
	cells[3].Add(-1)
}
