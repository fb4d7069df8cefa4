package adjoint

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/linalg"
	"github.com/san-kum/fdfdopt/internal/transform"
)

func testSetup(t *testing.T) (*fdfd.Helmholtz, *transform.Chain, []bool) {
	t.Helper()
	nx, ny := 8, 8
	region := make([]bool, nx*ny)
	for ix := 2; ix < nx-2; ix++ {
		for iy := 2; iy < ny-2; iy++ {
			region[ix*ny+iy] = true
		}
	}
	eps := make([]complex128, nx*ny)
	for i := range eps {
		eps[i] = 1
	}

	omega := 2 * math.Pi * fdfd.C0 / 1.55e-6
	h, err := fdfd.NewHelmholtz(nx, ny, 0.1, 1e-6, omega, eps, linalg.DenseLU{})
	if err != nil {
		t.Fatal(err)
	}
	chain, err := transform.New(nx, ny, region, eps, 5, 2, 0.5, 100)
	if err != nil {
		t.Fatal(err)
	}
	return h, chain, region
}

// failSolver stands in for a direct solver hitting an unusable pivot.
type failSolver struct{}

func (failSolver) Solve(a *linalg.CMat, b []complex128) ([]complex128, error) {
	return nil, linalg.ErrSingular
}

func TestSensitivityPropagatesSolveFailure(t *testing.T) {
	h, chain, _ := testSetup(t)
	nx, ny := h.Dims()

	src := make(fdfd.Field, nx*ny)
	for iy := 0; iy < ny; iy++ {
		src[1*ny+iy] = 1
	}
	if _, err := h.SolveFields(src); err != nil {
		t.Fatal(err)
	}

	_, err := Sensitivity(h, chain, make([]float64, nx*ny), make([]complex128, nx*ny), failSolver{})
	if !errors.Is(err, linalg.ErrSingular) {
		t.Fatalf("got %v, want wrapped ErrSingular", err)
	}
}

func TestSensitivityRequiresForwardSolve(t *testing.T) {
	h, chain, _ := testSetup(t)
	nx, ny := h.Dims()

	_, err := Sensitivity(h, chain, make([]float64, nx*ny), make([]complex128, nx*ny), nil)
	if err == nil {
		t.Fatal("sensitivity computed without cached forward fields")
	}
}

func TestSensitivityShape(t *testing.T) {
	h, chain, region := testSetup(t)
	nx, ny := h.Dims()

	// mid-range density keeps the projection away from its saturated ends
	rho := make([]float64, nx*ny)
	for i, in := range region {
		if in {
			rho[i] = 0.5
		}
	}
	h.ResetEps(chain.Eps(rho))

	src := make(fdfd.Field, nx*ny)
	for iy := 0; iy < ny; iy++ {
		src[1*ny+iy] = 1
	}
	fs, err := h.SolveFields(src)
	if err != nil {
		t.Fatal(err)
	}

	// gradient of total intensity on the far row
	dJdE := make([]complex128, nx*ny)
	for iy := 0; iy < ny; iy++ {
		i := (nx-2)*ny + iy
		e := fs.Ez[i]
		dJdE[i] = 2 * complex(real(e), -imag(e))
	}

	sens, err := Sensitivity(h, chain, rho, dJdE, linalg.DenseLU{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sens) != nx*ny {
		t.Fatalf("sensitivity has %d cells, want %d", len(sens), nx*ny)
	}

	var inside bool
	for i, s := range sens {
		if !region[i] && s != 0 {
			t.Fatalf("nonzero sensitivity outside the design region at %d: %g", i, s)
		}
		if region[i] && s != 0 {
			inside = true
		}
	}
	if !inside {
		t.Error("sensitivity vanished everywhere inside the design region")
	}
}
