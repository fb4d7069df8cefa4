package solver

import (
	"math"

	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/linalg"
)

// Newton solves the nonlinear problem with full Newton steps. Each
// iteration refreshes the permittivity from the field guess (matrix only,
// no field solve), forms the residual fx = A·E − iω·b, assembles the
// augmented Jacobian, and solves J·ΔE = fx so E_new = E_prev − ΔE.
// The increment solve is delegated to ds; after the loop one final
// permittivity update and linear solve run at the converged field.
func Newton(oracle fdfd.Oracle, src fdfd.Field, region []bool, nl fdfd.Nonlinearity, ds linalg.DirectSolver, opt Options) (*Result, error) {
	opt = opt.withDefaults()
	if ds == nil {
		ds = linalg.DenseLU{}
	}

	ez := opt.Start
	if ez == nil {
		fs, err := oracle.SolveFields(src)
		if err != nil {
			return nil, err
		}
		ez = fs.Ez
	}

	epsR := oracle.Eps()
	omega := oracle.Omega()
	dAdepsScale := omega * omega * fdfd.Epsilon0 * oracle.LengthScale()
	iw := complex(0, omega)

	trace := make([]float64, 0, opt.MaxIter)
	conv := math.Inf(1)

	for step := 0; step < opt.MaxIter; step++ {
		prev := ez

		oracle.ResetEps(perturb(epsR, nl.Eps(prev), region))
		a := oracle.SystemMatrix()

		fx := a.MulVec(prev)
		for i := range fx {
			fx[i] -= iw * src[i]
		}

		de := nl.Deriv(prev)
		dAdE := make([]complex128, len(de))
		for i := range de {
			if region[i] {
				dAdE[i] = de[i] * complex(dAdepsScale, 0)
			}
		}

		diff, err := NewAugmented(a, dAdE, prev).Solve(ds, fx)
		if err != nil {
			return nil, err
		}

		ez = make(fdfd.Field, len(prev))
		for i := range prev {
			ez[i] = prev[i] - diff[i]
		}

		conv = relChange(ez, prev)
		trace = append(trace, conv)
		if conv < opt.Threshold {
			break
		}
	}

	// one full field solve at the converged permittivity
	oracle.ResetEps(perturb(epsR, nl.Eps(ez), region))
	fs, err := oracle.SolveFields(src)
	if err != nil {
		return nil, err
	}

	return &Result{Fields: fs, Trace: trace, Converged: conv < opt.Threshold}, nil
}
