package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/linalg"
)

func testOracle(t *testing.T, nx, ny int) *fdfd.Helmholtz {
	t.Helper()
	eps := make([]complex128, nx*ny)
	for i := range eps {
		eps[i] = 1
	}
	omega := 2 * math.Pi * fdfd.C0 / 1.55e-6
	h, err := fdfd.NewHelmholtz(nx, ny, 0.1, 1e-6, omega, eps, linalg.DenseLU{})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func lineSource(nx, ny, row int) fdfd.Field {
	src := make(fdfd.Field, nx*ny)
	for iy := 0; iy < ny; iy++ {
		src[row*ny+iy] = 1
	}
	return src
}

func allTrue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

func TestBornConverges(t *testing.T) {
	nx, ny := 8, 8
	h := testOracle(t, nx, ny)
	src := lineSource(nx, ny, 1)

	res, err := Born(h, src, allTrue(nx*ny), fdfd.Kerr{Chi3: 1e-3}, Options{MaxIter: 25})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged {
		t.Fatalf("did not converge, trace %v", res.Trace)
	}
	if len(res.Trace) == 0 {
		t.Fatal("empty residual trace")
	}
	if last := res.Trace[len(res.Trace)-1]; last >= DefaultThreshold {
		t.Errorf("final residual %g above threshold", last)
	}
	if res.Fields.Ez == nil {
		t.Fatal("no fields returned")
	}
}

func TestBornResidualDecreases(t *testing.T) {
	nx, ny := 8, 8
	h := testOracle(t, nx, ny)

	res, err := Born(h, lineSource(nx, ny, 1), allTrue(nx*ny), fdfd.Kerr{Chi3: 1e-3}, Options{MaxIter: 25})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Trace) < 2 {
		t.Skipf("converged in one step, trace %v", res.Trace)
	}
	if res.Trace[len(res.Trace)-1] >= res.Trace[0] {
		t.Errorf("residual did not decrease: %v", res.Trace)
	}
}

func TestBornHitsIterationCap(t *testing.T) {
	nx, ny := 8, 8
	h := testOracle(t, nx, ny)

	res, err := Born(h, lineSource(nx, ny, 1), allTrue(nx*ny), fdfd.Kerr{Chi3: 1e-3},
		Options{MaxIter: 1, Threshold: 1e-300})
	if err != nil {
		t.Fatal(err)
	}
	if res.Converged {
		t.Error("reported convergence at an unreachable threshold")
	}
	if len(res.Trace) != 1 {
		t.Errorf("trace length %d, want 1", len(res.Trace))
	}
}

func TestNewtonConverges(t *testing.T) {
	nx, ny := 8, 8
	h := testOracle(t, nx, ny)
	src := lineSource(nx, ny, 1)

	res, err := Newton(h, src, allTrue(nx*ny), fdfd.Kerr{Chi3: 1e-3}, linalg.DenseLU{}, Options{MaxIter: 20})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Converged {
		t.Fatalf("did not converge, trace %v", res.Trace)
	}
	if res.Fields.Ez == nil {
		t.Fatal("no fields returned")
	}
}

func TestNewtonAgreesWithBorn(t *testing.T) {
	nx, ny := 8, 8
	src := lineSource(nx, ny, 1)
	region := allTrue(nx * ny)
	nl := fdfd.Kerr{Chi3: 1e-3}

	born, err := Born(testOracle(t, nx, ny), src, region, nl, Options{MaxIter: 30, Threshold: 1e-10})
	if err != nil {
		t.Fatal(err)
	}
	newton, err := Newton(testOracle(t, nx, ny), src, region, nl, linalg.DenseLU{}, Options{MaxIter: 30, Threshold: 1e-10})
	if err != nil {
		t.Fatal(err)
	}

	if diff := relChange(newton.Fields.Ez, born.Fields.Ez); diff > 1e-7 {
		t.Errorf("solvers disagree, relative difference %g", diff)
	}
}

// failSolver stands in for a direct solver hitting an unusable pivot.
type failSolver struct{}

func (failSolver) Solve(a *linalg.CMat, b []complex128) ([]complex128, error) {
	return nil, linalg.ErrSingular
}

func TestBornPropagatesSolveFailure(t *testing.T) {
	nx, ny := 4, 4
	eps := make([]complex128, nx*ny)
	for i := range eps {
		eps[i] = 1
	}
	omega := 2 * math.Pi * fdfd.C0 / 1.55e-6
	h, err := fdfd.NewHelmholtz(nx, ny, 0.1, 1e-6, omega, eps, failSolver{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Born(h, lineSource(nx, ny, 1), allTrue(nx*ny), fdfd.Kerr{Chi3: 1e-3}, Options{})
	if !errors.Is(err, linalg.ErrSingular) {
		t.Fatalf("got %v, want wrapped ErrSingular", err)
	}
}

func TestNewtonPropagatesIncrementSolveFailure(t *testing.T) {
	// the forward oracle solves fine; the failure comes from the
	// augmented increment solve
	nx, ny := 4, 4
	h := testOracle(t, nx, ny)

	_, err := Newton(h, lineSource(nx, ny, 1), allTrue(nx*ny), fdfd.Kerr{Chi3: 1e-3}, failSolver{}, Options{})
	if !errors.Is(err, linalg.ErrSingular) {
		t.Fatalf("got %v, want ErrSingular", err)
	}
}

func TestAugmentedReducesToLinearSolve(t *testing.T) {
	// zero nonlinear derivative decouples the blocks; the field half of
	// the augmented solve must match the plain solve
	b := linalg.NewCBuilder(3, 3)
	b.Add(0, 0, complex(4, 1))
	b.Add(0, 1, 1)
	b.Add(1, 1, complex(5, -1))
	b.Add(1, 2, complex(0, 1))
	b.Add(2, 0, 1)
	b.Add(2, 2, 6)
	a := b.Build()

	r := []complex128{1, complex(0, 2), complex(3, -1)}
	e := []complex128{1, 1, 1}
	zero := make([]complex128, 3)

	got, err := NewAugmented(a, zero, e).Solve(linalg.DenseLU{}, r)
	if err != nil {
		t.Fatal(err)
	}
	want, err := linalg.DenseLU{}.Solve(a, r)
	if err != nil {
		t.Fatal(err)
	}

	diff := make([]complex128, 3)
	for i := range diff {
		diff[i] = got[i] - want[i]
	}
	if rel := linalg.Norm2(diff) / linalg.Norm2(want); rel > 1e-12 {
		t.Errorf("augmented and plain solves differ by %g", rel)
	}
}

func TestAugmentedMatrixShape(t *testing.T) {
	b := linalg.NewCBuilder(2, 2)
	b.Add(0, 0, 2)
	b.Add(1, 1, 3)
	a := b.Build()

	m := NewAugmented(a, []complex128{complex(0, 1), 1}, []complex128{1, 2}).Matrix()
	if m.Rows != 4 || m.Cols != 4 {
		t.Fatalf("augmented matrix is %dx%d, want 4x4", m.Rows, m.Cols)
	}

	d := m.Dense()
	// lower-right block is the conjugate of the upper-left block
	if d[2*4+2] != complex(2, -1) {
		t.Errorf("conjugate block entry: got %v", d[2*4+2])
	}
}
