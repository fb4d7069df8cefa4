package fdfd

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/san-kum/fdfdopt/internal/linalg"
)

const (
	testDl = 0.1
	testL0 = 1e-6
)

func testOmega() float64 { return 2 * math.Pi * C0 / 1.55e-6 }

func vacuum(n int) []complex128 {
	eps := make([]complex128, n)
	for i := range eps {
		eps[i] = 1
	}
	return eps
}

func lineSource(nx, ny, row int) Field {
	src := make(Field, nx*ny)
	for iy := 0; iy < ny; iy++ {
		src[row*ny+iy] = 1
	}
	return src
}

func TestNewHelmholtzValidation(t *testing.T) {
	if _, err := NewHelmholtz(0, 4, testDl, testL0, testOmega(), nil, nil); err == nil {
		t.Error("zero grid dimension accepted")
	}
	if _, err := NewHelmholtz(4, 4, -1, testL0, testOmega(), vacuum(16), nil); err == nil {
		t.Error("negative spacing accepted")
	}
	if _, err := NewHelmholtz(4, 4, testDl, testL0, testOmega(), vacuum(9), nil); err == nil {
		t.Error("mismatched permittivity length accepted")
	}
}

func TestSolveFieldsSatisfiesSystem(t *testing.T) {
	nx, ny := 8, 8
	h, err := NewHelmholtz(nx, ny, testDl, testL0, testOmega(), vacuum(nx*ny), linalg.DenseLU{})
	if err != nil {
		t.Fatal(err)
	}

	src := lineSource(nx, ny, 1)
	fs, err := h.SolveFields(src)
	if err != nil {
		t.Fatal(err)
	}

	// residual of A·Ez = iω·b
	rhs := make([]complex128, nx*ny)
	iw := complex(0, h.Omega())
	for i, s := range src {
		rhs[i] = iw * s
	}
	r := h.SystemMatrix().MulVec(fs.Ez)
	for i := range r {
		r[i] -= rhs[i]
	}
	if res := linalg.Norm2(r) / linalg.Norm2(rhs); res > 1e-10 {
		t.Errorf("relative residual %g too large", res)
	}

	if len(fs.Hx) != nx*ny || len(fs.Hy) != nx*ny {
		t.Error("auxiliary fields missing")
	}
}

func TestResetEpsInvalidatesFields(t *testing.T) {
	nx, ny := 6, 6
	h, err := NewHelmholtz(nx, ny, testDl, testL0, testOmega(), vacuum(nx*ny), nil)
	if err != nil {
		t.Fatal(err)
	}
	if h.Fields() != nil {
		t.Fatal("fields cached before any solve")
	}

	if _, err := h.SolveFields(lineSource(nx, ny, 1)); err != nil {
		t.Fatal(err)
	}
	if h.Fields() == nil {
		t.Fatal("fields not cached after solve")
	}

	h.ResetEps(vacuum(nx * ny))
	if h.Fields() != nil {
		t.Error("fields survived a permittivity reset")
	}
}

func TestEpsReturnsCopy(t *testing.T) {
	nx, ny := 4, 4
	h, err := NewHelmholtz(nx, ny, testDl, testL0, testOmega(), vacuum(nx*ny), nil)
	if err != nil {
		t.Fatal(err)
	}
	eps := h.Eps()
	eps[0] = 99
	if h.Eps()[0] == 99 {
		t.Error("Eps exposed internal storage")
	}
}

func TestKerr(t *testing.T) {
	k := Kerr{Chi3: 1e-3}
	e := Field{complex(3, 4)}

	shift := k.Eps(e)
	if math.Abs(real(shift[0])-1e-3*25) > 1e-18 || imag(shift[0]) != 0 {
		t.Errorf("Kerr shift: got %v, want %g", shift[0], 1e-3*25)
	}

	de := k.Deriv(e)
	want := complex(1e-3, 0) * cmplx.Conj(e[0])
	if de[0] != want {
		t.Errorf("Kerr derivative: got %v, want %v", de[0], want)
	}
}
