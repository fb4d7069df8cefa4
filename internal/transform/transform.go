// Package transform maps a raw material density to a manufacturable
// permittivity: a radius-R local average suppresses sub-resolution
// features, a tanh projection pushes values toward {0,1}, and a linear
// material map interpolates between vacuum and the device material.
// The chain is pure: identical inputs yield bit-identical permittivity.
package transform

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/fdfdopt/internal/linalg"
)

var (
	// ErrShape indicates mismatched grid/design-region dimensions.
	ErrShape = errors.New("transform: shape mismatch")

	// ErrParameter indicates an out-of-range filter or projection parameter.
	ErrParameter = errors.New("transform: invalid parameter")
)

// Chain is the density → filtered → projected → permittivity transform
// with the stage derivatives needed by the adjoint chain rule. It is
// immutable after construction.
type Chain struct {
	nx, ny     int
	epsM       float64
	radius     float64
	eta, beta  float64
	region     []bool
	background []complex128
	w          *linalg.Mat
}

// New validates the parameters and precomputes the filter weights.
// The background permittivity is kept verbatim outside the design region.
func New(nx, ny int, region []bool, background []complex128, epsM, radius, eta, beta float64) (*Chain, error) {
	switch {
	case nx <= 0 || ny <= 0:
		return nil, fmt.Errorf("%w: grid %dx%d", ErrShape, nx, ny)
	case len(region) != nx*ny:
		return nil, fmt.Errorf("%w: design region has %d cells, grid wants %d", ErrShape, len(region), nx*ny)
	case len(background) != nx*ny:
		return nil, fmt.Errorf("%w: permittivity has %d cells, grid wants %d", ErrShape, len(background), nx*ny)
	case radius <= 0:
		return nil, fmt.Errorf("%w: filter radius %g must be positive", ErrParameter, radius)
	case beta <= 0:
		return nil, fmt.Errorf("%w: projection beta %g must be positive", ErrParameter, beta)
	case eta < 0 || eta > 1:
		return nil, fmt.Errorf("%w: projection eta %g must lie in [0,1]", ErrParameter, eta)
	}

	c := &Chain{
		nx: nx, ny: ny,
		epsM: epsM, radius: radius, eta: eta, beta: beta,
		region:     append([]bool(nil), region...),
		background: append([]complex128(nil), background...),
	}
	c.w = buildWeights(nx, ny, c.region, radius)
	return c, nil
}

// buildWeights assembles the radius-R averaging kernel restricted to the
// design region: weight R-d for neighbors within distance d < R, rows
// normalized to unit sum. Cells outside the region get identity rows.
func buildWeights(nx, ny int, region []bool, radius float64) *linalg.Mat {
	b := linalg.NewBuilder(nx*ny, nx*ny)
	reach := int(math.Ceil(radius))

	for ix := 0; ix < nx; ix++ {
		for iy := 0; iy < ny; iy++ {
			i := ix*ny + iy
			if !region[i] {
				b.Add(i, i, 1)
				continue
			}
			var sum float64
			type entry struct {
				j int
				w float64
			}
			var row []entry
			for dx := -reach; dx <= reach; dx++ {
				for dy := -reach; dy <= reach; dy++ {
					jx, jy := ix+dx, iy+dy
					if jx < 0 || jx >= nx || jy < 0 || jy >= ny {
						continue
					}
					j := jx*ny + jy
					if !region[j] {
						continue
					}
					d := math.Hypot(float64(dx), float64(dy))
					if d >= radius {
						continue
					}
					w := radius - d
					row = append(row, entry{j, w})
					sum += w
				}
			}
			for _, e := range row {
				b.Add(i, e.j, e.w/sum)
			}
		}
	}
	return b.Build()
}

// Filter applies the local-averaging weights: rho_t = W·rho.
func (c *Chain) Filter(rho []float64) []float64 { return c.w.MulVec(rho) }

// Project applies the smooth threshold
//
//	rho_b = (tanh(β·η) + tanh(β·(rho_t − η))) / (tanh(β·η) + tanh(β·(1−η)))
func (c *Chain) Project(rhot []float64) []float64 {
	num0 := math.Tanh(c.beta * c.eta)
	den := num0 + math.Tanh(c.beta*(1-c.eta))
	out := make([]float64, len(rhot))
	for i, v := range rhot {
		out[i] = (num0 + math.Tanh(c.beta*(v-c.eta))) / den
	}
	return out
}

// ProjectDeriv is the pointwise derivative of Project at rho_t.
func (c *Chain) ProjectDeriv(rhot []float64) []float64 {
	den := math.Tanh(c.beta*c.eta) + math.Tanh(c.beta*(1-c.eta))
	out := make([]float64, len(rhot))
	for i, v := range rhot {
		t := math.Tanh(c.beta * (v - c.eta))
		out[i] = c.beta * (1 - t*t) / den
	}
	return out
}

// Eps runs the full chain: inside the design region
// eps = 1 + rho_b·(eps_m − 1); elsewhere the background is untouched.
func (c *Chain) Eps(rho []float64) []complex128 {
	if len(rho) != c.nx*c.ny {
		panic(fmt.Sprintf("transform: density has %d cells, grid wants %d", len(rho), c.nx*c.ny))
	}
	rhob := c.Project(c.Filter(rho))
	eps := make([]complex128, len(rho))
	for i := range eps {
		if c.region[i] {
			eps[i] = complex(1+rhob[i]*(c.epsM-1), 0)
		} else {
			eps[i] = c.background[i]
		}
	}
	return eps
}

// Density inverts the material map to seed the optimizer from an
// existing permittivity, clamped to [0,1]. Cells outside the design
// region are zero.
func (c *Chain) Density(eps []complex128) []float64 {
	rho := make([]float64, len(eps))
	for i := range eps {
		if !c.region[i] {
			continue
		}
		v := (real(eps[i]) - 1) / (c.epsM - 1)
		rho[i] = math.Min(1, math.Max(0, v))
	}
	return rho
}

// Weights exposes the filter matrix for the adjoint chain rule.
func (c *Chain) Weights() *linalg.Mat { return c.w }

// EpsDeriv is the constant derivative of the material map, eps_m − 1.
func (c *Chain) EpsDeriv() float64 { return c.epsM - 1 }

// Region returns the design-region mask (shared, treat as read-only).
func (c *Chain) Region() []bool { return c.region }

func (c *Chain) Dims() (int, int) { return c.nx, c.ny }
