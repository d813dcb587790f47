package spmdsim

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// dbCurve builds the XY series of a dB quantity against frequency in MHz,
// dropping grid points that failed (NaN would derail the axis autoscale).
func dbCurve(freq FrequencyGrid, db []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(freq))
	for i, f := range freq {
		if math.IsNaN(db[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: f / 1e6, Y: db[i]})
	}
	return pts
}

// RenderPlots draws the sweep as a PNG with two stacked panels: return
// loss at the transmit port, and per-drop voltage gain (or S21 when the
// trunk has no drops), both in dB against frequency in MHz.
func RenderPlots(sr *SweepResult, path string) error {
	rl := plot.New()
	rl.Title.Text = "Return loss"
	rl.X.Label.Text = "frequency (MHz)"
	rl.Y.Label.Text = "|S11| (dB)"
	if err := plotutil.AddLines(rl, "S11", dbCurve(sr.Freq, sr.S11dB())); err != nil {
		return err
	}

	il := plot.New()
	il.X.Label.Text = "frequency (MHz)"
	if len(sr.NodeGain) > 0 {
		il.Title.Text = "Per-node gain"
		il.Y.Label.Text = "|V_node/V_tx| (dB)"
		args := make([]interface{}, 0, 2*len(sr.NodeGain))
		for k := range sr.NodeGain {
			args = append(args, fmt.Sprintf("node %d", k+1), dbCurve(sr.Freq, sr.NodeGainDB(k)))
		}
		if err := plotutil.AddLines(il, args...); err != nil {
			return err
		}
	} else {
		il.Title.Text = "Insertion loss"
		il.Y.Label.Text = "|S21| (dB)"
		if err := plotutil.AddLines(il, "S21", dbCurve(sr.Freq, sr.S21dB())); err != nil {
			return err
		}
	}

	img := vgimg.New(16*vg.Centimeter, 20*vg.Centimeter)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2, Cols: 1,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	panels := [][]*plot.Plot{{rl}, {il}}
	canvases := plot.Align(panels, tiles, dc)
	rl.Draw(canvases[0][0])
	il.Draw(canvases[1][0])

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
