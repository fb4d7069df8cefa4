package fdfd

import (
	"math"

	"github.com/san-kum/fdfdopt/internal/linalg"
)

// Physical constants (SI).
const (
	Epsilon0 = 8.85418782e-12
	Mu0      = 4e-7 * math.Pi
	C0       = 299792458.0
)

// Field is a complex field over the grid, flattened row-major (x*ny + y).
type Field []complex128

func (f Field) Clone() Field {
	c := make(Field, len(f))
	copy(c, f)
	return c
}

// Norm is the L2 norm of the field.
func (f Field) Norm() float64 { return linalg.Norm2(f) }

// FieldSet bundles the primary field with the auxiliary fields derived
// from it after a solve.
type FieldSet struct {
	Hx, Hy Field
	Ez     Field
}

// Oracle resolves the linear field problem under the most recently set
// permittivity. A single solver or optimizer instance owns its oracle;
// nothing here is safe for concurrent use.
type Oracle interface {
	// SolveFields solves the linear system for the given source and
	// caches the resulting fields. It always reflects the latest
	// permittivity set through ResetEps.
	SolveFields(src Field) (FieldSet, error)

	// ResetEps replaces the permittivity used by subsequent solves.
	// It invalidates cached fields but does not itself trigger a solve.
	ResetEps(eps []complex128)

	// SystemMatrix returns the complex system matrix of size Nx·Ny
	// for the current permittivity.
	SystemMatrix() *linalg.CMat

	// Eps returns a copy of the current permittivity map.
	Eps() []complex128

	Omega() float64
	Dims() (nx, ny int)
	LengthScale() float64

	// Fields returns the primary field from the last solve, or nil if
	// no solve has run since the permittivity last changed.
	Fields() Field
}
