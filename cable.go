package spmdsim

import (
	"math"
	"math/cmplx"
)

// magnitudeFloor keeps divisions and logarithms away from zero: it floors
// |sinh(gamma*length)| in the line two-port, the DC series resistance of a
// segment, and the magnitudes converted to dB.
const magnitudeFloor = 1e-30

// A CableModel holds the per-meter primary line constants of a cable.
// Shunt conductance is taken as zero; skin effect enters the series
// resistance as RSkin*sqrt(f).
type CableModel struct {
	// series DC resistance, ohm per meter
	RDC float64 `json:"rdc" yaml:"rdc"`

	// series inductance, henry per meter
	L float64 `json:"l" yaml:"l"`

	// shunt capacitance, farad per meter
	C float64 `json:"c" yaml:"c"`

	// skin effect coefficient, ohm per meter per sqrt(Hz)
	RSkin float64 `json:"rskin" yaml:"rskin"`

	// length the constants were characterized at, meters
	RefLength float64 `json:"ref_length" yaml:"ref_length"`
}

// zSeries returns the series impedance per meter at frequency f.
func (cm *CableModel) zSeries(f float64) complex128 {
	return complex(cm.RDC+cm.RSkin*math.Sqrt(f), 2*math.Pi*f*cm.L)
}

// yShunt returns the shunt admittance per meter at frequency f.
func (cm *CableModel) yShunt(f float64) complex128 {
	return complex(0, 2*math.Pi*f*cm.C)
}

// Gamma returns the propagation constant per meter at frequency f > 0.
func (cm *CableModel) Gamma(f float64) complex128 {
	return cmplx.Sqrt(cm.zSeries(f) * cm.yShunt(f))
}

// Zc returns the characteristic impedance at frequency f > 0.
func (cm *CableModel) Zc(f float64) complex128 {
	return cmplx.Sqrt(cm.zSeries(f) / cm.yShunt(f))
}

// ABCD returns the exact chain parameters of a uniform line of the given
// length at frequency f > 0: A = D = cosh(gl), B = Zc*sinh(gl),
// C = sinh(gl)/Zc.  |sinh| is floored so that B never collapses to zero at
// the bottom of the sweep.  The f = 0 case never reaches here; the segment
// stamp handles it as a series resistance.
func (cm *CableModel) ABCD(f, length float64) ABCDMatrix {
	gl := cm.Gamma(f) * complex(length, 0)
	zc := cm.Zc(f)

	ch := cmplx.Cosh(gl)
	sh := cmplx.Sinh(gl)
	if cmplx.Abs(sh) < magnitudeFloor {
		sh = complex(magnitudeFloor, 0)
	}

	return ABCDMatrix{A: ch, B: zc * sh, C: sh / zc, D: ch}
}

// A CableSegment is a run of trunk or drop cable between nodes A and B,
// stamped with the exact transmission line two-port at each frequency.
type CableSegment struct {
	A, B   int
	Length float64
	Model  *CableModel
}

// NewCableSegment builds a segment, rejecting degenerate lengths.
func NewCableSegment(a, b int, length float64, model *CableModel) (*CableSegment, error) {
	if length <= 0 {
		return nil, &DegenerateLengthError{Length: length}
	}
	return &CableSegment{A: a, B: b, Length: length, Model: model}, nil
}

// Nodes returns the trunk-side and far-side node ids of the segment.
func (cs *CableSegment) Nodes() (int, int) {
	return cs.A, cs.B
}

// Admittance returns the segment two-port at frequency f.  At f = 0 the
// line collapses to its series DC resistance RDC*Length, so a DC grid
// point solves cleanly instead of producing NaN from the f > 0 formulas.
func (cs *CableSegment) Admittance(idx int, f float64) (YMatrix, error) {
	if f == 0 {
		r := cs.Model.RDC * cs.Length
		if r < magnitudeFloor {
			r = magnitudeFloor
		}
		g := complex(1/r, 0)
		return YMatrix{Y11: g, Y12: -g, Y21: -g, Y22: g}, nil
	}
	return cs.Model.ABCD(f, cs.Length).YParams(), nil
}
