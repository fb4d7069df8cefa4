package optimize

import (
	"math/cmplx"

	"github.com/san-kum/fdfdopt/internal/fdfd"
)

// Objective scores a solved field and supplies its own gradient. The
// gradient convention is ∂J/∂Re(Ez) − i·∂J/∂Im(Ez), which feeds the
// adjoint source without extra factors.
type Objective interface {
	Value(ez fdfd.Field) float64
	Gradient(ez fdfd.Field) []complex128
}

// Intensity is the workhorse objective: total field intensity Σ|Ez|²
// over a probe mask.
type Intensity struct {
	Probe []bool
}

func (o Intensity) Value(ez fdfd.Field) float64 {
	var j float64
	for i, e := range ez {
		if o.Probe[i] {
			j += real(e)*real(e) + imag(e)*imag(e)
		}
	}
	return j
}

func (o Intensity) Gradient(ez fdfd.Field) []complex128 {
	g := make([]complex128, len(ez))
	for i, e := range ez {
		if o.Probe[i] {
			g[i] = 2 * cmplx.Conj(e)
		}
	}
	return g
}
