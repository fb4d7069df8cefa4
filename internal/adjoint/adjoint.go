// Package adjoint computes the gradient of a scalar field objective with
// respect to every design-region density cell using one extra linear
// solve, then composes the chain rule through the density transform.
package adjoint

import (
	"fmt"

	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/linalg"
	"github.com/san-kum/fdfdopt/internal/transform"
)

// Sensitivity returns dJ/drho for the current forward field. dJdE is the
// objective gradient with respect to the field in the convention
// ∂J/∂Re(Ez) − i·∂J/∂Im(Ez). The oracle must hold fresh fields for the
// permittivity produced by rho; the adjoint system is the transpose of
// the forward system matrix, solved independently with no factorization
// reuse. The result is real and zero outside the design region.
func Sensitivity(oracle fdfd.Oracle, chain *transform.Chain, rho []float64, dJdE []complex128, ds linalg.DirectSolver) ([]float64, error) {
	ez := oracle.Fields()
	if ez == nil {
		return nil, fmt.Errorf("adjoint: no forward fields cached, solve before computing sensitivity")
	}
	if ds == nil {
		ds = linalg.DenseLU{}
	}

	// adjoint source and transpose solve
	bAdj := make([]complex128, len(dJdE))
	for i, g := range dJdE {
		bAdj[i] = -g
	}
	eAdj, err := ds.Solve(oracle.SystemMatrix().Transpose(), bAdj)
	if err != nil {
		return nil, fmt.Errorf("adjoint: linear solve failed: %w", err)
	}

	omega := oracle.Omega()
	dAdeps := omega * omega * fdfd.Epsilon0 * oracle.LengthScale()

	// chain rule: Re[(eps_m−1) · Wᵀ (proj' ⊙ dA/deps ⊙ E ⊙ E_adj)]
	// W is real, so the real part commutes with the filter transpose.
	proj := chain.ProjectDeriv(chain.Filter(rho))
	region := chain.Region()
	v := make([]float64, len(rho))
	for i := range v {
		if !region[i] {
			continue
		}
		prod := ez[i] * eAdj[i]
		v[i] = proj[i] * dAdeps * chain.EpsDeriv() * real(prod)
	}

	sens := chain.Weights().MulTransVec(v)
	for i := range sens {
		if !region[i] {
			sens[i] = 0
		}
	}
	return sens, nil
}
