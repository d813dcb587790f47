package spmdsim

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV serializes the sweep as one row per grid point: the frequency,
// the complex S11 and S21 with their dB magnitudes, and the per-drop gain
// in dB.  Failed points carry NaN, which strconv formats as "NaN".
func (sr *SweepResult) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"freq_hz", "s11_re", "s11_im", "s11_db", "s21_re", "s21_im", "s21_db"}
	for k := range sr.NodeGain {
		header = append(header, fmt.Sprintf("node%d_gain_db", k+1))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	s11db := sr.S11dB()
	s21db := sr.S21dB()
	gaindb := make([][]float64, len(sr.NodeGain))
	for k := range sr.NodeGain {
		gaindb[k] = sr.NodeGainDB(k)
	}

	fm := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i, f := range sr.Freq {
		row := []string{
			fm(f),
			fm(real(sr.S11[i])), fm(imag(sr.S11[i])), fm(s11db[i]),
			fm(real(sr.S21[i])), fm(imag(sr.S21[i])), fm(s21db[i]),
		}
		for k := range gaindb {
			row = append(row, fm(gaindb[k][i]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
