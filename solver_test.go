package spmdsim

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchedSolver(t *testing.T) *NetworkSolver {
	t.Helper()
	tp, err := BuildTopology(bareTrunkCfg(), nil)
	require.NoError(t, err)
	return NewNetworkSolver(tp, 100.0)
}

func TestSolveAt_MatchedTrunkNearlyReflectionless(t *testing.T) {
	ns := matchedSolver(t)

	res, err := ns.SolveAt(0, 1e6)

	require.NoError(t, err)
	assert.Less(t, cmplx.Abs(res.S11), 0.05, "matched line and load reflect almost nothing")
	assert.InDelta(t, 1.0, cmplx.Abs(res.S21), 0.05, "short lossy line passes almost everything")
}

func TestSolveAt_DCPointIsFinite(t *testing.T) {
	ns := matchedSolver(t)

	res, err := ns.SolveAt(0, 0)

	require.NoError(t, err)
	assert.False(t, cmplx.IsNaN(res.S11) || cmplx.IsInf(res.S11))
	assert.False(t, cmplx.IsNaN(res.S21) || cmplx.IsInf(res.S21))
	for _, v := range res.V {
		assert.False(t, cmplx.IsNaN(v) || cmplx.IsInf(v))
	}

	// at DC the network is a resistive divider: source 100, line 0.94,
	// load 100; all voltages real
	assert.InDelta(t, 0.0, imag(res.V[0]), 1e-12)
	assert.InDelta(t, 0.0, imag(res.V[1]), 1e-12)
	assert.Greater(t, real(res.V[0]), real(res.V[1]), "the line drops some voltage")
}

func TestSolveAt_OpenEndReflectsEverything(t *testing.T) {
	cfg := bareTrunkCfg()
	cfg.Termination.RTerm = 0
	tp, err := BuildTopology(cfg, nil)
	require.NoError(t, err)
	ns := NewNetworkSolver(tp, 100.0)

	res, err := ns.SolveAt(0, 1e5)

	require.NoError(t, err)
	assert.Greater(t, cmplx.Abs(res.S11), 0.99, "an electrically short open line is a full reflection")
	assert.LessOrEqual(t, cmplx.Abs(res.S11), 1.0+1e-6)
}

func TestSolveAt_PerDropSeries(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 2
	cfg.S2P = "phy.s2p"
	cfg.AttachPoints = []float64{25.0, 75.0}
	cfg.DropMax = 0.02
	tp, err := BuildTopology(cfg, matchedPhy(1, 100.0))
	require.NoError(t, err)
	ns := NewNetworkSolver(tp, 100.0)

	res, err := ns.SolveAt(0, 1e6)

	require.NoError(t, err)
	require.Len(t, res.NodeS21, 2)
	require.Len(t, res.NodeGain, 2)
	for k := range res.NodeS21 {
		assert.False(t, cmplx.IsNaN(res.NodeS21[k]), "drop %d", k)
		assert.False(t, cmplx.IsNaN(res.NodeGain[k]), "drop %d", k)
	}
	// the transmitting drop's gain is unity by definition
	assert.InDelta(t, 1.0, cmplx.Abs(res.NodeGain[0]), 1e-12)
}

func TestSolveAt_DisconnectedMatrixIsSingular(t *testing.T) {
	tp, err := BuildTopology(bareTrunkCfg(), nil)
	require.NoError(t, err)
	// leave node 2 floating after the connectivity check: its matrix row
	// is all zero, which the factorization must flag
	tp.Elements = []BranchElement{&TouchstoneNode{A: 1, B: 2, Y: []YMatrix{{}}}}
	ns := NewNetworkSolver(tp, 100.0)

	_, err = ns.SolveAt(0, 1e6)

	var sme *SingularMatrixError
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, 1e6, sme.Freq)
}

func TestSolveAt_Passivity(t *testing.T) {
	ns := matchedSolver(t)

	for _, f := range []float64{1e5, 1e6, 5e6, 1e7, 2e7, 4e7} {
		res, err := ns.SolveAt(0, f)

		require.NoError(t, err)
		assert.LessOrEqual(t, cmplx.Abs(res.S11), 1.0+1e-6, "f=%g", f)
		assert.LessOrEqual(t, cmplx.Abs(res.S21), 1.0+1e-6, "f=%g", f)
	}
}
