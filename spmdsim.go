// Package spmdsim predicts the frequency-domain reflection and
// transmission behavior of a multi-drop wired trunk: a shared
// transmission-line bus with drop stubs, each terminated by a PHY whose
// two-port behavior comes from a measured Touchstone dataset.
//
// A run elaborates a SimCfg into a Topology of cable segments,
// terminations, and PHY two-ports, resamples the Touchstone data onto the
// sweep grid, and solves the nodal admittance system once per frequency
// to obtain S11, S21, and the per-drop voltage series.
package spmdsim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// RunSweep executes one configured experiment end to end: grid
// construction, Touchstone load and conversion, topology build, and the
// parallel frequency sweep.  The configuration is validated first, so a
// bad file or geometry surfaces before any solving starts.
func RunSweep(ctx context.Context, cfg *SimCfg, log *slog.Logger) (*SweepResult, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	grid, err := NewFrequencyGrid(cfg.FreqStart, cfg.FreqStop, cfg.NPoints)
	if err != nil {
		return nil, err
	}

	var phy []YMatrix
	if cfg.Nodes > 0 {
		td, terr := ReadTouchstone(cfg.S2P, nil)
		if terr != nil {
			return nil, fmt.Errorf("touchstone: %w", terr)
		}
		log.Info("touchstone loaded", "file", cfg.S2P, "points", len(td.Freq),
			"span_hz", fmt.Sprintf("%g..%g", td.Freq[0], td.Freq[len(td.Freq)-1]), "z0", td.Z0)

		phy, terr = td.PortYTable(grid)
		if terr != nil {
			return nil, fmt.Errorf("touchstone: %w", terr)
		}
	}

	tp, err := BuildTopology(cfg, phy)
	if err != nil {
		return nil, err
	}
	log.Info("topology built", "layout", tp.Summary())

	runner := &SweepRunner{Workers: cfg.Workers, FailFast: cfg.FailFast, Log: log}
	return runner.Run(ctx, NewNetworkSolver(tp, cfg.Z0), grid)
}
