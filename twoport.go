package spmdsim

import "math/cmplx"

// sToYTol is the determinant magnitude below which (I+S) is treated as
// singular when converting scattering to admittance parameters.
const sToYTol = 1e-12

// An SMatrix holds the four scattering parameters of a two-port network at
// a single frequency.
type SMatrix struct {
	S11, S12, S21, S22 complex128
}

// A YMatrix holds the four admittance parameters of a two-port network at
// a single frequency.  Stamped between nodes a and b, Y11 and Y22 add to
// the diagonal entries of a and b, and Y12, Y21 add to the off-diagonal
// entries (a,b) and (b,a).
type YMatrix struct {
	Y11, Y12, Y21, Y22 complex128
}

// An ABCDMatrix holds the chain (transmission) parameters of a two-port.
// The chain form has closed-form entries for a uniform transmission line
// and composes cascaded sections by matrix multiplication.
type ABCDMatrix struct {
	A, B, C, D complex128
}

// Cascade returns the chain parameters of m followed by n.
func (m ABCDMatrix) Cascade(n ABCDMatrix) ABCDMatrix {
	return ABCDMatrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
	}
}

// YParams converts chain parameters to admittance parameters.  The B entry
// appears in every denominator, so callers keep |B| away from zero before
// converting; cable segments do that by flooring sinh(gamma*length).
func (m ABCDMatrix) YParams() YMatrix {
	return YMatrix{
		Y11: m.D / m.B,
		Y12: (m.B*m.C - m.A*m.D) / m.B,
		Y21: -1.0 / m.B,
		Y22: m.A / m.B,
	}
}

// SToY converts two-port scattering parameters referenced to z0 into
// admittance parameters, Y = (I-S)(I+S)^-1 / z0.  The conversion fails
// with a SingularConversionError when (I+S) is not invertible, which is
// how an ideal open circuit presents in scattering form.  The caller fills
// in the frequency on the returned error when it has one.
func SToY(s SMatrix, z0 float64) (YMatrix, error) {
	det := (1+s.S11)*(1+s.S22) - s.S12*s.S21
	if cmplx.Abs(det) < sToYTol {
		return YMatrix{}, &SingularConversionError{}
	}

	// (I-S) times the adjugate of (I+S), over det(I+S)*z0
	d := det * complex(z0, 0)
	return YMatrix{
		Y11: ((1-s.S11)*(1+s.S22) + s.S12*s.S21) / d,
		Y12: (-2 * s.S12) / d,
		Y21: (-2 * s.S21) / d,
		Y22: ((1+s.S11)*(1-s.S22) + s.S12*s.S21) / d,
	}, nil
}
