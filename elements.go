package spmdsim

import "fmt"

// A BranchElement is a circuit element that contributes a two-port
// admittance between two nodes of the network.  Node id 0 is ground;
// the stamping loop skips ground rows and columns, so an element with a
// single non-ground terminal is just a two-port whose second node is 0.
type BranchElement interface {
	// Nodes returns the two node ids the element connects.
	Nodes() (int, int)

	// Admittance returns the element two-port at sweep index idx and
	// frequency f.  Elements tabulated per grid point use idx; analytic
	// elements use f.
	Admittance(idx int, f float64) (YMatrix, error)
}

// A TerminationResistor shunts Node to ground through R ohm.
type TerminationResistor struct {
	Node int
	R    float64
}

// Nodes returns the terminated node and ground.
func (tr *TerminationResistor) Nodes() (int, int) {
	return tr.Node, 0
}

// Admittance returns the resistor stamp; only the Y11 entry lands in the
// matrix because the second terminal is ground.
func (tr *TerminationResistor) Admittance(idx int, f float64) (YMatrix, error) {
	g := complex(1/tr.R, 0)
	return YMatrix{Y11: g, Y12: -g, Y21: -g, Y22: g}, nil
}

// A TouchstoneNode is one PHY: the measured two-port between its drop-side
// node A (port 1) and its phy-side node B (port 2), pre-converted to
// admittance parameters index-aligned with the sweep grid.
type TouchstoneNode struct {
	A, B int
	Y    []YMatrix
}

// Nodes returns the drop-side and phy-side node ids.
func (tn *TouchstoneNode) Nodes() (int, int) {
	return tn.A, tn.B
}

// Admittance returns the tabulated two-port for sweep index idx.
func (tn *TouchstoneNode) Admittance(idx int, f float64) (YMatrix, error) {
	if idx < 0 || idx >= len(tn.Y) {
		return YMatrix{}, fmt.Errorf("touchstone node %d: no entry for sweep index %d (table has %d)", tn.B, idx, len(tn.Y))
	}
	return tn.Y[idx], nil
}
