package adjoint

import (
	"testing"

	"github.com/curioloop/optimizer/numdiff"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/linalg"
)

// Cross-checks the full adjoint gradient against a central finite
// difference over every design cell.
func TestSensitivityMatchesNumericJacobian(t *testing.T) {
	g := NewWithT(t)

	h, chain, region := testSetup(t)
	nx, ny := h.Dims()

	var idx []int
	for i, in := range region {
		if in {
			idx = append(idx, i)
		}
	}

	src := make(fdfd.Field, nx*ny)
	probe := make([]bool, nx*ny)
	for iy := 0; iy < ny; iy++ {
		src[1*ny+iy] = 1
		probe[(nx-2)*ny+iy] = true
	}

	objective := func(rho []float64) float64 {
		h.ResetEps(chain.Eps(rho))
		fs, err := h.SolveFields(src)
		if err != nil {
			t.Fatal(err)
		}
		var j float64
		for i, e := range fs.Ez {
			if probe[i] {
				j += real(e)*real(e) + imag(e)*imag(e)
			}
		}
		return j
	}

	rho := make([]float64, nx*ny)
	for _, i := range idx {
		rho[i] = 0.5
	}

	// adjoint gradient at the base point
	j0 := objective(rho)
	g.Expect(j0).To(BeNumerically(">", 0))
	dJdE := make([]complex128, nx*ny)
	ez := h.Fields()
	for i, e := range ez {
		if probe[i] {
			dJdE[i] = 2 * complex(real(e), -imag(e))
		}
	}
	sens, err := Sensitivity(h, chain, rho, dJdE, linalg.DenseLU{})
	g.Expect(err).NotTo(HaveOccurred())

	// numeric gradient over the design free variables
	spec := numdiff.ApproxSpec{
		N:      len(idx),
		M:      1,
		Method: numdiff.Central,
		Object: func(x, y []float64) {
			full := make([]float64, nx*ny)
			for k, i := range idx {
				full[i] = x[k]
			}
			y[0] = objective(full)
		},
	}
	x0 := make([]float64, len(idx))
	for k := range x0 {
		x0[k] = 0.5
	}
	fd := make([]float64, len(idx))
	g.Expect(spec.Diff(x0, fd)).To(Succeed())

	for k, i := range idx {
		g.Expect(sens[i]).To(BeNumerically("~", fd[k], 1e-4*absMax(fd)),
			"design cell %d", i)
	}
}

func absMax(v []float64) float64 {
	var m float64
	for _, x := range v {
		if x < 0 {
			x = -x
		}
		if x > m {
			m = x
		}
	}
	return m
}
