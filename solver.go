package spmdsim

import "fmt"

// A NetworkSolver computes the node voltages and port scattering
// parameters of one topology at one frequency.  It carries no per-solve
// state, so one solver is safely shared by concurrent sweep workers.
type NetworkSolver struct {
	Topo *Topology

	// source and port reference impedance, ohm
	Z0 float64
}

// A SolveResult is the outcome of one per-frequency solve: the reduced
// node-voltage vector (V[i] is the voltage at node i+1, ground excluded)
// and the derived port quantities.  NodeS21 and NodeGain carry one entry
// per drop, index-aligned with Topology.PhyNodes.
type SolveResult struct {
	Index int
	Freq  float64

	V []complex128

	S11, S21 complex128
	NodeS21  []complex128
	NodeGain []complex128
}

// NewNetworkSolver binds a solver to a built topology and reference
// impedance.
func NewNetworkSolver(tp *Topology, z0 float64) *NetworkSolver {
	return &NetworkSolver{Topo: tp, Z0: z0}
}

// SolveAt stamps the admittance matrix at sweep index idx / frequency f,
// injects the matched Norton source at the transmit node, solves for the
// node voltages, and derives the scattering parameters.
//
// The source is a 1 A injection in parallel with 1/z0 at the transmit
// node, which launches an incident wave of fixed amplitude; with that
// normalization S11 = 2*V_tx/z0 - 1 and S21 = 2*V_rx/z0.  Every probed
// node shares the global z0, so no impedance-ratio scaling enters S21.
func (ns *NetworkSolver) SolveAt(idx int, f float64) (*SolveResult, error) {
	tp := ns.Topo
	n := tp.NodeCount() - 1
	m := newCMatrix(n)

	// stamp every element; matrix row r holds node r+1, ground rows and
	// columns are skipped rather than deleted
	for _, elm := range tp.Elements {
		a, b := elm.Nodes()
		y, err := elm.Admittance(idx, f)
		if err != nil {
			return nil, fmt.Errorf("element between nodes %d and %d at %g Hz: %w", a, b, f, err)
		}

		if a != 0 {
			m.add(a-1, a-1, y.Y11)
		}
		if b != 0 {
			m.add(b-1, b-1, y.Y22)
		}
		if a != 0 && b != 0 {
			m.add(a-1, b-1, y.Y12)
			m.add(b-1, a-1, y.Y21)
		}
	}

	// matched Norton source at the transmit node
	rhs := make([]complex128, n)
	m.add(tp.TxNode-1, tp.TxNode-1, complex(1/ns.Z0, 0))
	rhs[tp.TxNode-1] = 1

	v, err := m.solveChecked(rhs)
	if err != nil {
		return nil, &SingularMatrixError{Freq: f, Detail: err.Error()}
	}

	z0 := complex(ns.Z0, 0)
	vtx := v[tp.TxNode-1]
	vrx := v[tp.RxNode-1]

	res := &SolveResult{
		Index: idx,
		Freq:  f,
		V:     v,
		S11:   2*vtx/z0 - 1,
		S21:   2 * vrx / z0,
	}

	if len(tp.PhyNodes) > 0 {
		res.NodeS21 = make([]complex128, len(tp.PhyNodes))
		res.NodeGain = make([]complex128, len(tp.PhyNodes))
		for k, node := range tp.PhyNodes {
			vk := v[node-1]
			res.NodeS21[k] = 2 * vk / z0
			if vtx != 0 {
				res.NodeGain[k] = vk / vtx
			}
		}
	}

	return res, nil
}
