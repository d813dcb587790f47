package spmdsim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/cmplx"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// A FrequencyGrid is the ordered set of sweep frequencies in Hz, strictly
// increasing.  It is built once per run and shared read-only by the
// touchstone resampler, the topology elements, and the sweep workers.
type FrequencyGrid []float64

// NewFrequencyGrid builds a linear grid of n points spanning
// [start, stop].  A single-point grid holds just start.
func NewFrequencyGrid(start, stop float64, n int) (FrequencyGrid, error) {
	if start <= 0 {
		return nil, fmt.Errorf("freq_start %g Hz must be positive", start)
	}
	if stop < start {
		return nil, fmt.Errorf("freq_stop %g Hz is below freq_start %g Hz", stop, start)
	}
	if n < 1 {
		return nil, fmt.Errorf("npoints %d must be at least 1", n)
	}
	if n == 1 {
		return FrequencyGrid{start}, nil
	}
	return FrequencyGrid(floats.Span(make([]float64, n), start, stop)), nil
}

// A SweepResult collects one entry per grid point, index-aligned with the
// grid.  A point whose solve failed in a non-fail-fast run carries its
// error in Errs and NaN in the S-parameter series.
type SweepResult struct {
	Freq FrequencyGrid

	S11 []complex128
	S21 []complex128

	// per-drop series, NodeS21[k][i] is drop k at grid point i
	NodeS21  [][]complex128
	NodeGain [][]complex128

	Errs []error
}

// Failed reports how many grid points could not be solved.
func (sr *SweepResult) Failed() int {
	n := 0
	for _, err := range sr.Errs {
		if err != nil {
			n++
		}
	}
	return n
}

// db converts a linear complex amplitude to decibels, flooring the
// magnitude so an exact zero maps to a deep finite value instead of -Inf.
func db(v complex128) float64 {
	mag := cmplx.Abs(v)
	if mag < magnitudeFloor {
		mag = magnitudeFloor
	}
	return 20 * math.Log10(mag)
}

// S11dB returns the return-loss series in dB.
func (sr *SweepResult) S11dB() []float64 {
	out := make([]float64, len(sr.S11))
	for i, v := range sr.S11 {
		out[i] = db(v)
	}
	return out
}

// S21dB returns the insertion-loss series in dB.
func (sr *SweepResult) S21dB() []float64 {
	out := make([]float64, len(sr.S21))
	for i, v := range sr.S21 {
		out[i] = db(v)
	}
	return out
}

// NodeS21DB returns the transmission series of drop k in dB.
func (sr *SweepResult) NodeS21DB(k int) []float64 {
	out := make([]float64, len(sr.NodeS21[k]))
	for i, v := range sr.NodeS21[k] {
		out[i] = db(v)
	}
	return out
}

// NodeGainDB returns the voltage-gain series of drop k in dB.
func (sr *SweepResult) NodeGainDB(k int) []float64 {
	out := make([]float64, len(sr.NodeGain[k]))
	for i, v := range sr.NodeGain[k] {
		out[i] = db(v)
	}
	return out
}

// A SweepRunner executes a solver over a frequency grid with a pool of
// workers.  Each grid point is an independent pure computation over the
// shared read-only topology, so the pool needs no locking; workers write
// into index-aligned slices and meet at a WaitGroup.
type SweepRunner struct {
	// worker goroutines; 0 means GOMAXPROCS
	Workers int

	// abort on the first per-point failure instead of recording it and
	// sweeping on
	FailFast bool

	Log *slog.Logger
}

// Run sweeps the solver across the grid and gathers the per-point results.
// With FailFast unset a failed point is logged, recorded in Errs, and
// filled with NaN; with it set the first failure cancels the outstanding
// points and is returned.  Cancelling ctx stops the sweep between points.
func (r *SweepRunner) Run(ctx context.Context, solver *NetworkSolver, grid FrequencyGrid) (*SweepResult, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(grid) {
		workers = len(grid)
	}
	log := r.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	drops := len(solver.Topo.PhyNodes)
	res := &SweepResult{
		Freq: grid,
		S11:  make([]complex128, len(grid)),
		S21:  make([]complex128, len(grid)),
		Errs: make([]error, len(grid)),
	}
	res.NodeS21 = make([][]complex128, drops)
	res.NodeGain = make([][]complex128, drops)
	for k := 0; k < drops; k++ {
		res.NodeS21[k] = make([]complex128, len(grid))
		res.NodeGain[k] = make([]complex128, len(grid))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	idxChan := make(chan int)
	var wg sync.WaitGroup
	var firstErr error
	var firstErrOnce sync.Once

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range idxChan {
				point, err := solver.SolveAt(idx, grid[idx])
				if err != nil {
					if r.FailFast {
						firstErrOnce.Do(func() {
							firstErr = err
							cancel()
						})
						return
					}
					log.Warn("frequency point failed", "freq", grid[idx], "err", err)
					res.Errs[idx] = err
					nan := complex(math.NaN(), math.NaN())
					res.S11[idx] = nan
					res.S21[idx] = nan
					for k := 0; k < drops; k++ {
						res.NodeS21[k][idx] = nan
						res.NodeGain[k][idx] = nan
					}
					continue
				}
				res.S11[idx] = point.S11
				res.S21[idx] = point.S21
				for k := 0; k < drops; k++ {
					res.NodeS21[k][idx] = point.NodeS21[k]
					res.NodeGain[k][idx] = point.NodeGain[k]
				}
			}
		}()
	}

feed:
	for idx := range grid {
		select {
		case idxChan <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(idxChan)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n := res.Failed(); n > 0 {
		log.Warn("sweep finished with failed points", "failed", n, "total", len(grid))
	}
	return res, nil
}
