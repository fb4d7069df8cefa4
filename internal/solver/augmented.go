package solver

import (
	"math/cmplx"

	"github.com/san-kum/fdfdopt/internal/linalg"
)

// AugmentedSystem is the 2n-dimensional linear system of a Newton step
// with the field and its conjugate stacked as independent unknowns:
//
//	[ A + diag(dAdE ⊙ E)        diag(conj(dAdE) ⊙ E)  ]
//	[ conj(diag(conj(dAdE)⊙E))  conj(A + diag(dAdE⊙E)) ]
//
// The nonlinearity depends on |E| and is not holomorphic, so the Newton
// residual has no complex derivative; splitting into the (E, conj E)
// pair restores a well-defined Jacobian.
type AugmentedSystem struct {
	n    int
	a    *linalg.CMat
	diag []complex128 // dAdE ⊙ E
	off  []complex128 // conj(dAdE) ⊙ E
}

// NewAugmented builds the block structure from the system matrix, the
// per-cell derivative dAdE, and the current field estimate.
func NewAugmented(a *linalg.CMat, dAdE, e []complex128) *AugmentedSystem {
	n := a.Rows
	s := &AugmentedSystem{
		n:    n,
		a:    a,
		diag: make([]complex128, n),
		off:  make([]complex128, n),
	}
	for i := 0; i < n; i++ {
		s.diag[i] = dAdE[i] * e[i]
		s.off[i] = cmplx.Conj(dAdE[i]) * e[i]
	}
	return s
}

// Matrix assembles the full square 2n×2n sparse matrix.
func (s *AugmentedSystem) Matrix() *linalg.CMat {
	n := s.n
	b := linalg.NewCBuilder(2*n, 2*n)
	for i := 0; i < n; i++ {
		for k := s.a.RowPtr[i]; k < s.a.RowPtr[i+1]; k++ {
			j, v := s.a.ColIdx[k], s.a.Data[k]
			b.Add(i, j, v)
			b.Add(n+i, n+j, cmplx.Conj(v))
		}
		b.Add(i, i, s.diag[i])
		b.Add(n+i, n+i, cmplx.Conj(s.diag[i]))
		b.Add(i, n+i, s.off[i])
		b.Add(n+i, i, cmplx.Conj(s.off[i]))
	}
	return b.Build()
}

// Solve stacks the residual with its conjugate, delegates the direct
// solve, and returns the field half of the increment.
func (s *AugmentedSystem) Solve(ds linalg.DirectSolver, r []complex128) ([]complex128, error) {
	rhs := make([]complex128, 2*s.n)
	copy(rhs, r)
	for i, v := range r {
		rhs[s.n+i] = cmplx.Conj(v)
	}
	x, err := ds.Solve(s.Matrix(), rhs)
	if err != nil {
		return nil, err
	}
	return x[:s.n], nil
}
