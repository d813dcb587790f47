package spmdsim

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"sort"
	"strconv"
	"strings"
)

// TouchstoneData holds a measured 2-port S-parameter dataset: the
// ascending frequency grid in Hz, one SMatrix per sample, and the
// reference impedance the parameters were measured against.
type TouchstoneData struct {
	File string
	Z0   float64
	Freq []float64
	S    []SMatrix
}

// unitScale maps a Touchstone frequency unit token to its multiplier in Hz.
var unitScale = map[string]float64{
	"hz":  1.0,
	"khz": 1e3,
	"mhz": 1e6,
	"ghz": 1e9,
}

// ReadTouchstone deserializes a byte slice holding a 2-port Touchstone
// (.s2p) dataset.  If the input argument of dict (those bytes) is empty,
// the file whose name is given is read to acquire them.  The option line
// "# <unit> <param> <format> [R <z0>]" may appear before the data and a
// later one overrides an earlier one; defaults are hz, S, ri, and 50 ohm.
// Data rows carry a frequency and four S-parameter value pairs in the
// 2-port column order S11, S21, S12, S22.  '!' starts a comment.
func ReadTouchstone(filename string, dict []byte) (*TouchstoneData, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	td := &TouchstoneData{File: filename, Z0: 50.0}
	mult := 1.0
	format := "ri"

	for lineno, raw := range strings.Split(string(dict), "\n") {
		line := raw
		if cut := strings.IndexByte(line, '!'); cut >= 0 {
			line = line[:cut]
		}
		line = strings.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if strings.HasPrefix(line, "#") {
			m, f, z, oerr := parseOptionLine(filename, lineno+1, line)
			if oerr != nil {
				return nil, oerr
			}
			mult, format = m, f
			if z > 0 {
				td.Z0 = z
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 9 {
			return nil, &ParseError{File: filename, Line: lineno + 1,
				Msg: fmt.Sprintf("expected 9 columns, found %d", len(fields))}
		}
		var vals [9]float64
		for i, fld := range fields {
			v, perr := strconv.ParseFloat(fld, 64)
			if perr != nil {
				return nil, &ParseError{File: filename, Line: lineno + 1,
					Msg: fmt.Sprintf("bad number %q", fld)}
			}
			vals[i] = v
		}

		f := vals[0] * mult
		if n := len(td.Freq); n > 0 && f <= td.Freq[n-1] {
			return nil, &ParseError{File: filename, Line: lineno + 1,
				Msg: fmt.Sprintf("frequencies must be strictly increasing (%g Hz after %g Hz)", f, td.Freq[n-1])}
		}
		td.Freq = append(td.Freq, f)
		td.S = append(td.S, SMatrix{
			S11: toComplex(format, vals[1], vals[2]),
			S21: toComplex(format, vals[3], vals[4]),
			S12: toComplex(format, vals[5], vals[6]),
			S22: toComplex(format, vals[7], vals[8]),
		})
	}

	if len(td.Freq) == 0 {
		return nil, &ParseError{File: filename, Line: 0, Msg: "no S-parameter data"}
	}

	return td, nil
}

// parseOptionLine decodes "# <unit> <param> <format> [R <z0>]".  Unknown
// units, non-S parameter letters, and unknown data formats are reported as
// UnsupportedFormatError so callers can reject a file before solving
// anything with it.  A returned z0 of 0 means the clause was absent.
func parseOptionLine(file string, lineno int, line string) (mult float64, format string, z0 float64, err error) {
	fields := strings.Fields(strings.TrimPrefix(line, "#"))
	if len(fields) < 3 {
		return 0, "", 0, &ParseError{File: file, Line: lineno, Msg: "incomplete option line"}
	}

	mult, ok := unitScale[strings.ToLower(fields[0])]
	if !ok {
		return 0, "", 0, &UnsupportedFormatError{File: file, Token: fields[0]}
	}

	if param := strings.ToLower(fields[1]); param != "s" {
		return 0, "", 0, &UnsupportedFormatError{File: file, Token: fields[1]}
	}

	format = strings.ToLower(fields[2])
	if format != "ri" && format != "ma" && format != "db" {
		return 0, "", 0, &UnsupportedFormatError{File: file, Token: fields[2]}
	}

	if len(fields) >= 4 {
		if strings.ToLower(fields[3]) != "r" || len(fields) < 5 {
			return 0, "", 0, &ParseError{File: file, Line: lineno, Msg: "malformed reference impedance clause"}
		}
		z0, err = strconv.ParseFloat(fields[4], 64)
		if err != nil || z0 <= 0 {
			return 0, "", 0, &ParseError{File: file, Line: lineno,
				Msg: fmt.Sprintf("bad reference impedance %q", fields[4])}
		}
	}

	return mult, format, z0, nil
}

// toComplex builds one S-parameter from a Touchstone value pair: RI is
// real/imaginary, MA is magnitude/angle-degrees, DB is dB-magnitude/angle.
func toComplex(format string, a, b float64) complex128 {
	switch format {
	case "ma":
		return cmplx.Rect(a, b*math.Pi/180)
	case "db":
		return cmplx.Rect(math.Pow(10, a/20), b*math.Pi/180)
	default:
		return complex(a, b)
	}
}

// Interpolate returns the scattering matrix at frequency f, linearly
// interpolating the real and imaginary parts of each parameter between the
// bracketing samples.  Queries outside the measured span return the first
// or last sample unchanged, and a query at an exact sample frequency
// returns that sample.
func (td *TouchstoneData) Interpolate(f float64) SMatrix {
	n := len(td.Freq)
	if f <= td.Freq[0] {
		return td.S[0]
	}
	if f >= td.Freq[n-1] {
		return td.S[n-1]
	}

	j := sort.SearchFloat64s(td.Freq, f)
	if td.Freq[j] == f {
		return td.S[j]
	}
	i := j - 1
	t := (f - td.Freq[i]) / (td.Freq[j] - td.Freq[i])

	return SMatrix{
		S11: lerp(td.S[i].S11, td.S[j].S11, t),
		S12: lerp(td.S[i].S12, td.S[j].S12, t),
		S21: lerp(td.S[i].S21, td.S[j].S21, t),
		S22: lerp(td.S[i].S22, td.S[j].S22, t),
	}
}

func lerp(a, b complex128, t float64) complex128 {
	return complex(
		real(a)+(real(b)-real(a))*t,
		imag(a)+(imag(b)-imag(a))*t,
	)
}

// InterpolateGrid resamples the dataset onto a sweep grid.
func (td *TouchstoneData) InterpolateGrid(grid FrequencyGrid) []SMatrix {
	out := make([]SMatrix, len(grid))
	for i, f := range grid {
		out[i] = td.Interpolate(f)
	}
	return out
}

// PortYTable interpolates the dataset onto the sweep grid and converts
// each point to admittance parameters referenced to the dataset's own Z0,
// which is the impedance the instrument measured against.  The result is
// index-aligned with the grid for stamping.
func (td *TouchstoneData) PortYTable(grid FrequencyGrid) ([]YMatrix, error) {
	table := make([]YMatrix, len(grid))
	for i, f := range grid {
		y, err := SToY(td.Interpolate(f), td.Z0)
		if err != nil {
			var sce *SingularConversionError
			if errors.As(err, &sce) {
				sce.Freq = f
			}
			return nil, err
		}
		table[i] = y
	}
	return table, nil
}
