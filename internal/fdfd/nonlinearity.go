package fdfd

import "math/cmplx"

// Nonlinearity maps a local field to a permittivity perturbation.
// Deriv is the derivative of that perturbation with respect to the field,
// treating the conjugate field as an independent variable.
type Nonlinearity interface {
	Eps(e Field) []complex128
	Deriv(e Field) []complex128
}

// Kerr is the chi(3) intensity nonlinearity: the permittivity shifts by
// Chi3·|E|² wherever the material is nonlinear-active.
type Kerr struct {
	Chi3 float64
}

func (k Kerr) Eps(e Field) []complex128 {
	out := make([]complex128, len(e))
	for i, v := range e {
		m := real(v)*real(v) + imag(v)*imag(v)
		out[i] = complex(k.Chi3*m, 0)
	}
	return out
}

func (k Kerr) Deriv(e Field) []complex128 {
	out := make([]complex128, len(e))
	for i, v := range e {
		out[i] = complex(k.Chi3, 0) * cmplx.Conj(v)
	}
	return out
}
