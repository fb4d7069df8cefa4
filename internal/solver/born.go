package solver

import (
	"math"

	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/linalg"
)

const (
	DefaultThreshold = 1e-8
	DefaultMaxIter   = 10
)

// Options tunes a nonlinear solve.
type Options struct {
	// Start seeds the iteration; when nil the linear solution is used.
	Start fdfd.Field
	// Threshold is the relative L2 change below which the iteration stops.
	Threshold float64
	// MaxIter caps the number of outer iterations.
	MaxIter int
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.MaxIter <= 0 {
		o.MaxIter = DefaultMaxIter
	}
	return o
}

// Result carries the best-effort fields and the residual trace.
// Converged false means the cap was reached above threshold; the caller
// decides how to treat that.
type Result struct {
	Fields    fdfd.FieldSet
	Trace     []float64
	Converged bool
}

// Born solves the nonlinear problem by direct substitution: each
// iteration feeds the previous field through the nonlinearity, resets the
// permittivity to eps_r + f(E_prev)·mask, and resolves the linear system.
func Born(oracle fdfd.Oracle, src fdfd.Field, region []bool, nl fdfd.Nonlinearity, opt Options) (*Result, error) {
	opt = opt.withDefaults()

	var fs fdfd.FieldSet
	var err error
	ez := opt.Start
	if ez == nil {
		if fs, err = oracle.SolveFields(src); err != nil {
			return nil, err
		}
		ez = fs.Ez
	}

	epsR := oracle.Eps()
	trace := make([]float64, 0, opt.MaxIter)
	conv := math.Inf(1)

	for step := 0; step < opt.MaxIter; step++ {
		prev := ez

		oracle.ResetEps(perturb(epsR, nl.Eps(prev), region))
		if fs, err = oracle.SolveFields(src); err != nil {
			return nil, err
		}
		ez = fs.Ez

		conv = relChange(ez, prev)
		trace = append(trace, conv)
		if conv < opt.Threshold {
			break
		}
	}

	return &Result{Fields: fs, Trace: trace, Converged: conv < opt.Threshold}, nil
}

// perturb applies the nonlinear permittivity shift inside the active mask.
func perturb(epsR, shift []complex128, region []bool) []complex128 {
	eps := make([]complex128, len(epsR))
	copy(eps, epsR)
	for i := range eps {
		if region[i] {
			eps[i] += shift[i]
		}
	}
	return eps
}

// relChange is ‖new − prev‖ / ‖new‖.
func relChange(cur, prev []complex128) float64 {
	diff := make([]complex128, len(cur))
	for i := range cur {
		diff[i] = cur[i] - prev[i]
	}
	return linalg.Norm2(diff) / linalg.Norm2(cur)
}
