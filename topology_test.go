package spmdsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// matchedPhy is a trivial per-grid-point port table: both ports look like
// matched z0 loads (S = 0 converted to Y = I/z0).
func matchedPhy(n int, z0 float64) []YMatrix {
	g := complex(1/z0, 0)
	table := make([]YMatrix, n)
	for i := range table {
		table[i] = YMatrix{Y11: g, Y22: g}
	}
	return table
}

func bareTrunkCfg() *SimCfg {
	cfg := DefaultSimCfg()
	cfg.Nodes = 0
	cfg.NPoints = 10
	return cfg
}

func TestBuildTopology_BareTrunk(t *testing.T) {
	tp, err := BuildTopology(bareTrunkCfg(), nil)

	require.NoError(t, err)
	assert.Equal(t, 3, tp.NodeCount(), "ground and the two trunk ends")
	assert.Equal(t, []int{1, 2}, tp.Junctions)
	assert.Equal(t, []float64{0, 100.0}, tp.Positions)
	assert.Equal(t, 1, tp.TxNode, "bare trunk transmits from the start junction")
	assert.Equal(t, 2, tp.RxNode)

	// one trunk segment plus the far-end termination; the tx end carries
	// the source admittance instead of a resistor
	require.Len(t, tp.Elements, 2)
	seg, ok := tp.Elements[0].(*CableSegment)
	require.True(t, ok)
	assert.Equal(t, 100.0, seg.Length)
	term, ok := tp.Elements[1].(*TerminationResistor)
	require.True(t, ok)
	assert.Equal(t, 2, term.Node)
	assert.Equal(t, 100.0, term.R)
}

func TestBuildTopology_ExplicitAttachPoints(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 2
	cfg.S2P = "phy.s2p"
	cfg.AttachPoints = []float64{75.0, 25.0}
	cfg.DropMax = 0.5

	tp, err := BuildTopology(cfg, matchedPhy(4, 100.0))

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 25.0, 75.0, 100.0}, tp.Positions,
		"attach points sorted between the trunk ends")
	require.Len(t, tp.DropNodes, 2)
	require.Len(t, tp.PhyNodes, 2)
	assert.NotEqual(t, tp.DropNodes[0], tp.PhyNodes[0])
	assert.Equal(t, tp.PhyNodes[0], tp.TxNode, "tx_node 1 selects the first drop's PHY")
	assert.Equal(t, tp.EndNode(), tp.RxNode)
}

func TestBuildTopology_ZeroLengthDropAttachesDirectly(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 1
	cfg.S2P = "phy.s2p"
	cfg.AttachPoints = []float64{50.0}
	cfg.DropMax = 0

	tp, err := BuildTopology(cfg, matchedPhy(4, 100.0))

	require.NoError(t, err)
	require.Len(t, tp.DropNodes, 1)
	mid := tp.Junctions[1]
	assert.Equal(t, mid, tp.DropNodes[0], "no stub cable, PHY port 1 sits on the junction")
}

func TestBuildTopology_CoincidentAttachSharesJunction(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 2
	cfg.S2P = "phy.s2p"
	cfg.AttachPoints = []float64{50.0, 50.0}
	cfg.DropMax = 0.5

	tp, err := BuildTopology(cfg, matchedPhy(4, 100.0))

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 50.0, 100.0}, tp.Positions,
		"coincident points merge instead of creating a zero-length span")
	require.NoError(t, tp.checkConnected())
}

func TestBuildTopology_AttachCountMismatch(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 3
	cfg.S2P = "phy.s2p"
	cfg.AttachPoints = []float64{10.0}

	_, err := BuildTopology(cfg, matchedPhy(4, 100.0))

	var ite *InvalidTopologyError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "attach_points", ite.Field)
}

func TestBuildTopology_AttachOutsideTrunk(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 1
	cfg.S2P = "phy.s2p"
	cfg.AttachPoints = []float64{120.0}

	_, err := BuildTopology(cfg, matchedPhy(4, 100.0))

	var ite *InvalidTopologyError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "attach_points", ite.Field)
	assert.Contains(t, err.Error(), "120")
}

func TestBuildTopology_InvalidRanges(t *testing.T) {
	cases := []struct {
		name  string
		field string
		tweak func(*SimCfg)
	}{
		{"negative length", "length", func(c *SimCfg) { c.Length = -1 }},
		{"negative nodes", "nodes", func(c *SimCfg) { c.Nodes = -1 }},
		{"negative drop", "drop_max", func(c *SimCfg) { c.DropMax = -0.1 }},
		{"negative termination", "rterm", func(c *SimCfg) { c.Termination.RTerm = -50 }},
		{"tx out of range", "tx_node", func(c *SimCfg) { c.TxNode = 5 }},
		{"rx out of range", "rx_node", func(c *SimCfg) { c.RxNode = 9 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSimCfg()
			cfg.Nodes = 2
			cfg.S2P = "phy.s2p"
			cfg.AttachPoints = []float64{25.0, 75.0}
			tc.tweak(cfg)

			_, err := BuildTopology(cfg, matchedPhy(4, 100.0))

			var ite *InvalidTopologyError
			require.ErrorAs(t, err, &ite)
			assert.Equal(t, tc.field, ite.Field)
		})
	}
}

func TestBuildTopology_MissingPhyTable(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 1
	cfg.AttachPoints = []float64{50.0}

	_, err := BuildTopology(cfg, nil)

	var ite *InvalidTopologyError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "s2p", ite.Field)
}

func TestBuildTopology_SeededLayoutReproduces(t *testing.T) {
	build := func(seed int64) *Topology {
		cfg := DefaultSimCfg()
		cfg.Nodes = 8
		cfg.S2P = "phy.s2p"
		cfg.AttachError = 0.5
		cfg.RandomDrop = true
		cfg.DropMax = 0.5
		cfg.Seed = seed
		tp, err := BuildTopology(cfg, matchedPhy(4, 100.0))
		require.NoError(t, err)
		return tp
	}

	first := build(42)
	second := build(42)
	other := build(43)

	assert.Equal(t, first.Positions, second.Positions, "same seed, same layout")
	assert.NotEqual(t, first.Positions, other.Positions, "different seed, different layout")
}

func TestBuildTopology_RandomAttachTooCrowded(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 30
	cfg.S2P = "phy.s2p"
	cfg.Length = 10.0
	cfg.RandomAttach = true
	cfg.SeparationMin = 1.0
	cfg.Seed = 7

	_, err := BuildTopology(cfg, matchedPhy(4, 100.0))

	var ite *InvalidTopologyError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, "random_attach", ite.Field)
}

func TestBuildTopology_ClusteredAttach(t *testing.T) {
	cfg := DefaultSimCfg()
	cfg.Nodes = 6
	cfg.S2P = "phy.s2p"
	cfg.StartAttach = 2
	cfg.EndAttach = 2
	cfg.SeparationMin = 1.0
	cfg.StartPad = 5.0
	cfg.EndPad = 5.0

	tp, err := BuildTopology(cfg, matchedPhy(4, 100.0))

	require.NoError(t, err)
	require.Len(t, tp.DropNodes, 6)
	// the packed clusters sit at the pads, sep apart
	assert.Contains(t, tp.Positions, 5.0)
	assert.Contains(t, tp.Positions, 6.0)
	assert.Contains(t, tp.Positions, 94.0)
	assert.Contains(t, tp.Positions, 95.0)
}

func TestTopology_Summary(t *testing.T) {
	tp, err := BuildTopology(bareTrunkCfg(), nil)
	require.NoError(t, err)

	s := tp.Summary()
	assert.Contains(t, s, "tx=1")
	assert.Contains(t, s, "2 junctions")
}
