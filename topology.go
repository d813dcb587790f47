package spmdsim

import (
	"fmt"
	"math"

	"github.com/iti/rngstream"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// A Topology is the fully elaborated electrical network of one experiment:
// trunk junctions at their positions, drop stubs, PHY ports, terminations,
// and the chosen transmit and receive nodes.  Node ids are dense, node 0
// is ground, and every other node appears in the admittance matrix at
// row id-1.
type Topology struct {
	Elements []BranchElement

	// trunk junction node ids and their positions along the trunk, meters,
	// both ascending
	Junctions []int
	Positions []float64

	// per-drop node ids; DropNodes[k] equals the junction id when drop k
	// attaches directly with a zero-length stub
	DropNodes []int
	PhyNodes  []int

	TxNode int
	RxNode int

	nodeCount int
}

// NodeCount reports the number of electrical nodes including ground.
func (tp *Topology) NodeCount() int { return tp.nodeCount }

// StartNode returns the junction at trunk position 0.
func (tp *Topology) StartNode() int { return tp.Junctions[0] }

// EndNode returns the junction at the far end of the trunk.
func (tp *Topology) EndNode() int { return tp.Junctions[len(tp.Junctions)-1] }

// Summary returns a one-line description for logs.
func (tp *Topology) Summary() string {
	return fmt.Sprintf("%d nodes (%d junctions, %d drops), %d elements, tx=%d rx=%d",
		tp.nodeCount, len(tp.Junctions), len(tp.PhyNodes), len(tp.Elements), tp.TxNode, tp.RxNode)
}

// topologyRng returns the random stream used for attach and drop length
// draws.  A nonnegative seed advances the stream by seed mod 9973 draws so
// that distinct seeds give distinct layouts and a fixed seed reproduces
// one; a negative seed leaves the stream at its starting state.
func topologyRng(seed int64) *rngstream.RngStream {
	rng := rngstream.New("topology")
	if seed >= 0 {
		for i := int64(0); i < seed%9973; i++ {
			rng.RandU01()
		}
	}
	return rng
}

// BuildTopology elaborates the configured trunk into nodes and elements.
// phy is the per-grid-point admittance table of the PHY two-port, shared
// by every drop; it may be nil when cfg.Nodes is 0 (a bare trunk driven
// from its start junction).
func BuildTopology(cfg *SimCfg, phy []YMatrix) (*Topology, error) {
	if cfg.Length <= 0 {
		return nil, &InvalidTopologyError{Field: "length",
			Msg: fmt.Sprintf("trunk length %g m must be positive", cfg.Length)}
	}
	if cfg.Nodes < 0 {
		return nil, &InvalidTopologyError{Field: "nodes",
			Msg: fmt.Sprintf("drop count %d must not be negative", cfg.Nodes)}
	}
	if cfg.DropMax < 0 {
		return nil, &InvalidTopologyError{Field: "drop_max",
			Msg: fmt.Sprintf("drop length %g m must not be negative", cfg.DropMax)}
	}
	if cfg.Termination.RTerm < 0 {
		return nil, &InvalidTopologyError{Field: "rterm",
			Msg: fmt.Sprintf("termination %g ohm must not be negative", cfg.Termination.RTerm)}
	}
	if cfg.Nodes > 0 && len(phy) == 0 {
		return nil, &InvalidTopologyError{Field: "s2p",
			Msg: "a PHY admittance table is required when nodes > 0"}
	}

	rng := topologyRng(cfg.Seed)

	attach, err := placeAttachPoints(cfg, rng)
	if err != nil {
		return nil, err
	}

	// Junctions sit at the unique sorted positions; coincident attach
	// points share a junction so zero-length trunk spans never exist and
	// the end terminations stay on the bus.
	positions := make([]float64, 0, len(attach)+2)
	positions = append(positions, 0)
	positions = append(positions, attach...)
	positions = append(positions, cfg.Length)
	slices.Sort(positions)

	uniq := positions[:1]
	for _, p := range positions[1:] {
		if p > uniq[len(uniq)-1] {
			uniq = append(uniq, p)
		}
	}

	tp := &Topology{Positions: uniq}
	nxtID := 1
	for range uniq {
		tp.Junctions = append(tp.Junctions, nxtID)
		nxtID++
	}

	model := &cfg.CableModel
	for i := 0; i+1 < len(uniq); i++ {
		seg, serr := NewCableSegment(tp.Junctions[i], tp.Junctions[i+1], uniq[i+1]-uniq[i], model)
		if serr != nil {
			return nil, serr
		}
		tp.Elements = append(tp.Elements, seg)
	}

	for k := 0; k < cfg.Nodes; k++ {
		junction := tp.Junctions[slices.Index(uniq, attach[k])]

		dropLen := cfg.DropMax
		if cfg.RandomDrop {
			dropLen = rng.RandU01() * cfg.DropMax
		}

		dropNode := junction
		if dropLen > 0 {
			dropNode = nxtID
			nxtID++
			seg, serr := NewCableSegment(junction, dropNode, dropLen, model)
			if serr != nil {
				return nil, serr
			}
			tp.Elements = append(tp.Elements, seg)
		}

		phyNode := nxtID
		nxtID++
		tp.Elements = append(tp.Elements, &TouchstoneNode{A: dropNode, B: phyNode, Y: phy})
		tp.DropNodes = append(tp.DropNodes, dropNode)
		tp.PhyNodes = append(tp.PhyNodes, phyNode)
	}
	tp.nodeCount = nxtID

	if cfg.Nodes > 0 {
		if cfg.TxNode < 1 || cfg.TxNode > cfg.Nodes {
			return nil, &InvalidTopologyError{Field: "tx_node",
				Msg: fmt.Sprintf("%d outside 1..%d", cfg.TxNode, cfg.Nodes)}
		}
		tp.TxNode = tp.PhyNodes[cfg.TxNode-1]
	} else {
		tp.TxNode = tp.StartNode()
	}

	if cfg.RxNode < 0 || cfg.RxNode > cfg.Nodes {
		return nil, &InvalidTopologyError{Field: "rx_node",
			Msg: fmt.Sprintf("%d outside 0..%d", cfg.RxNode, cfg.Nodes)}
	}
	if cfg.RxNode == 0 {
		tp.RxNode = tp.EndNode()
	} else {
		tp.RxNode = tp.PhyNodes[cfg.RxNode-1]
	}

	if rt := cfg.Termination.RTerm; rt > 0 {
		for _, end := range []int{tp.StartNode(), tp.EndNode()} {
			if end == tp.TxNode {
				// the Norton source already loads this node with z0
				continue
			}
			tp.Elements = append(tp.Elements, &TerminationResistor{Node: end, R: rt})
		}
	}

	if cerr := tp.checkConnected(); cerr != nil {
		return nil, cerr
	}

	return tp, nil
}

// checkConnected verifies that the element graph reaches every node from
// the transmit port, counting ground as a node and the source admittance
// as an edge.  A network that fails here would surface as a singular
// matrix at every frequency, with no hint of which node is adrift.
func (tp *Topology) checkConnected() error {
	connGraph := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for id := 0; id < tp.nodeCount; id++ {
		connGraph.AddNode(simple.Node(id))
	}
	for _, elm := range tp.Elements {
		a, b := elm.Nodes()
		if a == b {
			continue
		}
		connGraph.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(a), T: simple.Node(b), W: 1.0})
	}
	connGraph.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(tp.TxNode), T: simple.Node(0), W: 1.0})

	comps := topo.ConnectedComponents(connGraph)
	if len(comps) > 1 {
		return &InvalidTopologyError{Field: "elements",
			Msg: fmt.Sprintf("network splits into %d disconnected islands", len(comps))}
	}
	return nil
}

// placeAttachPoints computes the trunk coordinate of every drop, sorted
// ascending and clamped to the trunk.  Explicit attach_points win;
// otherwise end and start clusters are packed at the pads separated by
// separation_min, and the remainder is spread between them, evenly with
// optional gaussian jitter or by random segment splitting when
// random_attach is set.
func placeAttachPoints(cfg *SimCfg, rng *rngstream.RngStream) ([]float64, error) {
	if cfg.AttachPoints != nil {
		if len(cfg.AttachPoints) != cfg.Nodes {
			return nil, &InvalidTopologyError{Field: "attach_points",
				Msg: fmt.Sprintf("%d points for %d nodes", len(cfg.AttachPoints), cfg.Nodes)}
		}
		pts := slices.Clone(cfg.AttachPoints)
		slices.Sort(pts)
		for _, p := range pts {
			if p < 0 || p > cfg.Length {
				return nil, &InvalidTopologyError{Field: "attach_points",
					Msg: fmt.Sprintf("point %g m outside trunk [0, %g]", p, cfg.Length)}
			}
		}
		return pts, nil
	}

	if cfg.StartAttach < 0 || cfg.EndAttach < 0 || cfg.StartAttach+cfg.EndAttach > cfg.Nodes {
		return nil, &InvalidTopologyError{Field: "start_attach/end_attach",
			Msg: fmt.Sprintf("%d+%d clustered drops for %d nodes", cfg.StartAttach, cfg.EndAttach, cfg.Nodes)}
	}

	unattached := cfg.Nodes
	attachStart := cfg.StartPad
	attachEnd := cfg.Length - cfg.EndPad
	var pts []float64

	if cfg.EndAttach > 0 {
		endPts := clusterFromEnd(attachEnd, cfg.EndAttach, cfg.SeparationMin)
		pts = append(pts, endPts...)
		unattached -= cfg.EndAttach
		attachEnd = endPts[0] - cfg.SeparationMin
	}

	if cfg.StartAttach > 0 {
		startPts := clusterFromStart(attachStart, cfg.StartAttach, cfg.SeparationMin)
		pts = append(pts, startPts...)
		unattached -= cfg.StartAttach
		attachStart = startPts[len(startPts)-1] + cfg.SeparationMin
	}

	if unattached > 0 {
		var mid []float64
		if cfg.RandomAttach {
			var err error
			mid, err = splitRandom(attachStart, attachEnd, unattached, cfg.SeparationMin, rng)
			if err != nil {
				return nil, err
			}
		} else {
			mid = spreadEven(attachStart, attachEnd, unattached, cfg.AttachError, cfg.Length, rng)
		}
		pts = append(pts, mid...)
	}

	slices.Sort(pts)
	// clusters and random splits may poke past the trunk ends
	for i, p := range pts {
		pts[i] = math.Min(math.Max(p, 0), cfg.Length)
	}
	return pts, nil
}

// clusterFromEnd packs count points downward from end, sep apart, ascending.
func clusterFromEnd(end float64, count int, sep float64) []float64 {
	pts := make([]float64, count)
	for i := range pts {
		pts[i] = end - float64(count-i-1)*sep
	}
	return pts
}

// clusterFromStart packs count points upward from start, sep apart.
func clusterFromStart(start float64, count int, sep float64) []float64 {
	pts := make([]float64, count)
	for i := range pts {
		pts[i] = start + float64(i)*sep
	}
	return pts
}

// spreadEven places count points evenly across [start, end], each with a
// gaussian position error of sigma, clamped to the trunk.
func spreadEven(start, end float64, count int, sigma, length float64, rng *rngstream.RngStream) []float64 {
	if count == 1 {
		return []float64{(start + end) / 2}
	}
	delta := (end - start) / float64(count-1)
	pts := make([]float64, count)
	for i := range pts {
		p := start + float64(i)*delta + gauss(rng, sigma)
		pts[i] = math.Min(math.Max(p, 0), length)
	}
	return pts
}

// gauss draws one sample of N(0, sigma) by Box-Muller over the stream's
// uniform draws.  sigma = 0 draws nothing.
func gauss(rng *rngstream.RngStream, sigma float64) float64 {
	if sigma == 0 {
		return 0
	}
	u := rng.RandU01()
	if u < 1e-300 {
		u = 1e-300
	}
	v := rng.RandU01()
	return sigma * math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

// splitRandom places count points by repeatedly splitting the padded span
// into segments no shorter than sep: a random segment is chosen and
// divided at a uniform offset, and the accumulated segment boundaries
// become attach points.  It fails when the chosen segment can no longer
// host a cut.
func splitRandom(start, end float64, count int, sep float64, rng *rngstream.RngStream) ([]float64, error) {
	available := (end - start) + 2*sep
	if available <= 0 {
		return nil, &InvalidTopologyError{Field: "random_attach",
			Msg: fmt.Sprintf("no room between pads (%g m)", end-start)}
	}

	segments := []float64{available}
	for n := 0; n < count; n++ {
		idx := rng.RandInt(0, len(segments)-1)
		length := segments[idx]
		if length <= sep*2 {
			return nil, &InvalidTopologyError{Field: "random_attach",
				Msg: fmt.Sprintf("trunk too crowded to place drop %d of %d with separation_min %g", n+1, count, sep)}
		}
		div := sep + rng.RandU01()*(length-2*sep)
		segments = slices.Insert(slices.Delete(segments, idx, idx+1), idx, div, length-div)
	}

	pts := make([]float64, 0, count)
	pos := start
	for _, seg := range segments[:len(segments)-1] {
		pos += seg
		pts = append(pts, pos)
	}
	return pts, nil
}
