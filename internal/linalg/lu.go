package linalg

import (
	"errors"
	"math/cmplx"
)

// ErrSingular indicates the direct solve hit a singular or numerically
// unusable pivot. Callers treat it as fatal; there is no fallback solver.
var ErrSingular = errors.New("linalg: singular matrix")

// DirectSolver solves A·x = b for a square complex system in one shot.
// Factorizations are scoped to the call; nothing is cached between solves.
type DirectSolver interface {
	Solve(a *CMat, b []complex128) ([]complex128, error)
}

// DenseLU is a reference DirectSolver: dense LU with partial pivoting,
// complex analogue of the LINPACK zgefa/zgesl pair. Adequate for the grid
// sizes this package is exercised with; production oracles inject their
// own sparse direct solver.
type DenseLU struct{}

func (DenseLU) Solve(a *CMat, b []complex128) ([]complex128, error) {
	if a.Rows != a.Cols {
		return nil, errors.New("linalg: matrix is not square")
	}
	if a.Rows != len(b) {
		return nil, errors.New("linalg: rhs dimension mismatch")
	}

	n := a.Rows
	lu := a.Dense()
	piv := make([]int, n)

	for k := 0; k < n; k++ {
		// partial pivot: largest magnitude in column k
		p := k
		pmax := cmplx.Abs(lu[k*n+k])
		for i := k + 1; i < n; i++ {
			if m := cmplx.Abs(lu[i*n+k]); m > pmax {
				pmax, p = m, i
			}
		}
		if pmax == 0 {
			return nil, ErrSingular
		}
		piv[k] = p
		if p != k {
			for j := k; j < n; j++ {
				lu[k*n+j], lu[p*n+j] = lu[p*n+j], lu[k*n+j]
			}
		}
		pivot := lu[k*n+k]
		for i := k + 1; i < n; i++ {
			m := lu[i*n+k] / pivot
			lu[i*n+k] = m
			if m == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				lu[i*n+j] -= m * lu[k*n+j]
			}
		}
	}

	x := make([]complex128, n)
	copy(x, b)

	// forward substitution with row swaps
	for k := 0; k < n; k++ {
		if p := piv[k]; p != k {
			x[k], x[p] = x[p], x[k]
		}
		for i := k + 1; i < n; i++ {
			x[i] -= lu[i*n+k] * x[k]
		}
	}
	// back substitution
	for k := n - 1; k >= 0; k-- {
		for j := k + 1; j < n; j++ {
			x[k] -= lu[k*n+j] * x[j]
		}
		x[k] /= lu[k*n+k]
	}
	return x, nil
}
