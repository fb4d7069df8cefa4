package fdfd

import (
	"fmt"

	"github.com/san-kum/fdfdopt/internal/linalg"
)

// Helmholtz is the reference oracle: the 2D scalar Helmholtz operator on
// a uniform grid with zero-field walls,
//
//	A = (Dxx + Dyy)/(μ0·L0) + ω²·ε0·L0·diag(eps)
//
// with grid spacing dl in units of the length scale L0. Fields solve
// A·Ez = iω·b. The matrix is rebuilt lazily after a permittivity change.
type Helmholtz struct {
	nx, ny int
	dl     float64
	l0     float64
	omega  float64
	eps    []complex128
	solver linalg.DirectSolver

	a      *linalg.CMat
	dirty  bool
	fields *FieldSet
}

func NewHelmholtz(nx, ny int, dl, l0, omega float64, eps []complex128, solver linalg.DirectSolver) (*Helmholtz, error) {
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("fdfd: grid must be positive, got %dx%d", nx, ny)
	}
	if dl <= 0 || l0 <= 0 || omega <= 0 {
		return nil, fmt.Errorf("fdfd: dl, L0 and omega must be positive")
	}
	if len(eps) != nx*ny {
		return nil, fmt.Errorf("fdfd: permittivity has %d cells, grid wants %d", len(eps), nx*ny)
	}
	if solver == nil {
		solver = linalg.DenseLU{}
	}
	h := &Helmholtz{nx: nx, ny: ny, dl: dl, l0: l0, omega: omega, solver: solver, dirty: true}
	h.eps = make([]complex128, len(eps))
	copy(h.eps, eps)
	return h, nil
}

func (h *Helmholtz) Omega() float64       { return h.omega }
func (h *Helmholtz) Dims() (int, int)     { return h.nx, h.ny }
func (h *Helmholtz) LengthScale() float64 { return h.l0 }

func (h *Helmholtz) Eps() []complex128 {
	c := make([]complex128, len(h.eps))
	copy(c, h.eps)
	return c
}

func (h *Helmholtz) ResetEps(eps []complex128) {
	if len(eps) != h.nx*h.ny {
		panic(fmt.Sprintf("fdfd: permittivity has %d cells, grid wants %d", len(eps), h.nx*h.ny))
	}
	copy(h.eps, eps)
	h.dirty = true
	h.fields = nil
}

func (h *Helmholtz) Fields() Field {
	if h.fields == nil {
		return nil
	}
	return h.fields.Ez
}

func (h *Helmholtz) SystemMatrix() *linalg.CMat {
	if h.dirty || h.a == nil {
		h.a = h.assemble()
		h.dirty = false
	}
	return h.a
}

func (h *Helmholtz) assemble() *linalg.CMat {
	n := h.nx * h.ny
	cLap := 1.0 / (Mu0 * h.l0 * h.dl * h.dl)
	cEps := h.omega * h.omega * Epsilon0 * h.l0

	b := linalg.NewCBuilder(n, n)
	for ix := 0; ix < h.nx; ix++ {
		for iy := 0; iy < h.ny; iy++ {
			i := ix*h.ny + iy
			b.Add(i, i, complex(-4*cLap, 0)+complex(cEps, 0)*h.eps[i])
			if ix > 0 {
				b.Add(i, i-h.ny, complex(cLap, 0))
			}
			if ix < h.nx-1 {
				b.Add(i, i+h.ny, complex(cLap, 0))
			}
			if iy > 0 {
				b.Add(i, i-1, complex(cLap, 0))
			}
			if iy < h.ny-1 {
				b.Add(i, i+1, complex(cLap, 0))
			}
		}
	}
	return b.Build()
}

func (h *Helmholtz) SolveFields(src Field) (FieldSet, error) {
	if len(src) != h.nx*h.ny {
		return FieldSet{}, fmt.Errorf("fdfd: source has %d cells, grid wants %d", len(src), h.nx*h.ny)
	}
	rhs := make([]complex128, len(src))
	iw := complex(0, h.omega)
	for i, s := range src {
		rhs[i] = iw * s
	}
	ez, err := h.solver.Solve(h.SystemMatrix(), rhs)
	if err != nil {
		return FieldSet{}, fmt.Errorf("fdfd: linear solve failed: %w", err)
	}

	fs := FieldSet{Ez: ez, Hx: h.curlY(ez), Hy: h.curlX(ez)}
	h.fields = &fs
	return fs, nil
}

// curlY approximates Hx = -(1/iωμ0L0)·∂Ez/∂y with forward differences.
func (h *Helmholtz) curlY(ez Field) Field {
	hx := make(Field, len(ez))
	c := complex(-1, 0) / (complex(0, h.omega*Mu0*h.l0) * complex(h.dl, 0))
	for ix := 0; ix < h.nx; ix++ {
		for iy := 0; iy < h.ny-1; iy++ {
			i := ix*h.ny + iy
			hx[i] = c * (ez[i+1] - ez[i])
		}
	}
	return hx
}

// curlX approximates Hy = (1/iωμ0L0)·∂Ez/∂x with forward differences.
func (h *Helmholtz) curlX(ez Field) Field {
	hy := make(Field, len(ez))
	c := complex(1, 0) / (complex(0, h.omega*Mu0*h.l0) * complex(h.dl, 0))
	for ix := 0; ix < h.nx-1; ix++ {
		for iy := 0; iy < h.ny; iy++ {
			i := ix*h.ny + iy
			hy[i] = c * (ez[i+h.ny] - ez[i])
		}
	}
	return hy
}
