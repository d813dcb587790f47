package spmdsim

import (
	"fmt"
	"math/cmplx"
)

// pivotTol is the modulus below which a pivot marks the matrix singular.
const pivotTol = 1e-16

// residTol is the relative residual bound a solution must satisfy.
const residTol = 1e-9

// cmatrix is a dense square complex matrix in row-major order, sized for
// the reduced node space with ground excluded.  Admittance matrices here
// stay small (a few entries per drop), so a dense factorization beats the
// bookkeeping of a sparse one.
type cmatrix struct {
	n int
	a []complex128
}

func newCMatrix(n int) *cmatrix {
	return &cmatrix{n: n, a: make([]complex128, n*n)}
}

func (m *cmatrix) at(r, c int) complex128 {
	return m.a[r*m.n+c]
}

func (m *cmatrix) add(r, c int, v complex128) {
	m.a[r*m.n+c] += v
}

// clone returns an independent copy; the solver keeps the unfactored
// matrix around for the residual check.
func (m *cmatrix) clone() *cmatrix {
	c := newCMatrix(m.n)
	copy(c.a, m.a)
	return c
}

// mulVec returns A*x.
func (m *cmatrix) mulVec(x []complex128) []complex128 {
	y := make([]complex128, m.n)
	for r := 0; r < m.n; r++ {
		row := m.a[r*m.n : (r+1)*m.n]
		var acc complex128
		for c, v := range row {
			acc += v * x[c]
		}
		y[r] = acc
	}
	return y
}

func (m *cmatrix) swapRows(i, j int) {
	ri := m.a[i*m.n : (i+1)*m.n]
	rj := m.a[j*m.n : (j+1)*m.n]
	for c := range ri {
		ri[c], rj[c] = rj[c], ri[c]
	}
}

// luFactor decomposes the matrix in place into PA = LU with partial
// pivoting by modulus.  The returned slice maps factored row order to the
// original row indices.
func (m *cmatrix) luFactor() ([]int, error) {
	n := m.n
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	for k := 0; k < n; k++ {
		// largest remaining modulus in column k becomes the pivot
		p, best := k, cmplx.Abs(m.at(k, k))
		for r := k + 1; r < n; r++ {
			if ab := cmplx.Abs(m.at(r, k)); ab > best {
				p, best = r, ab
			}
		}
		if best < pivotTol {
			return nil, fmt.Errorf("zero pivot in column %d", k)
		}
		if p != k {
			m.swapRows(p, k)
			perm[p], perm[k] = perm[k], perm[p]
		}

		piv := m.at(k, k)
		for r := k + 1; r < n; r++ {
			f := m.at(r, k) / piv
			if f == 0 {
				continue
			}
			m.a[r*n+k] = f
			for c := k + 1; c < n; c++ {
				m.a[r*n+c] -= f * m.at(k, c)
			}
		}
	}

	return perm, nil
}

// luSolve solves LUx = Pb on a factored matrix.
func (m *cmatrix) luSolve(perm []int, b []complex128) []complex128 {
	n := m.n
	x := make([]complex128, n)

	// Forward substitution - solves Lc = Pb
	for r := 0; r < n; r++ {
		acc := b[perm[r]]
		for c := 0; c < r; c++ {
			acc -= m.at(r, c) * x[c]
		}
		x[r] = acc
	}

	// Backward substitution - solves Ux = c
	for r := n - 1; r >= 0; r-- {
		acc := x[r]
		for c := r + 1; c < n; c++ {
			acc -= m.at(r, c) * x[c]
		}
		x[r] = acc / m.at(r, r)
	}

	return x
}

// solveChecked factors a copy of the matrix, solves, and verifies that the
// relative residual of the solution is within residTol.
func (m *cmatrix) solveChecked(b []complex128) ([]complex128, error) {
	lu := m.clone()
	perm, err := lu.luFactor()
	if err != nil {
		return nil, err
	}
	x := lu.luSolve(perm, b)

	ax := m.mulVec(x)
	var rmax, bmax float64
	for i := range ax {
		if d := cmplx.Abs(ax[i] - b[i]); d > rmax {
			rmax = d
		}
		if ab := cmplx.Abs(b[i]); ab > bmax {
			bmax = ab
		}
	}
	if bmax == 0 {
		bmax = 1
	}
	if rmax/bmax > residTol {
		return nil, fmt.Errorf("solve residual %.3e exceeds %.1e", rmax/bmax, residTol)
	}

	return x, nil
}
