package optimize

import (
	"context"
	"fmt"
	"math"

	"github.com/curioloop/optimizer/lbfgsb"
)

const lbfgsbCorrections = 10

// runLBFGSB delegates the run to the bound-constrained L-BFGS-B
// minimizer over the design-region free variables, bounds [0,1]. The
// minimizer sees the negated objective and gradient; every evaluation
// records history and the final vector is written back into the full
// density map.
func (d *Driver) runLBFGSB(ctx context.Context, s Settings) error {
	region := d.chain.Region()
	var idx []int
	for i, in := range region {
		if in {
			idx = append(idx, i)
		}
	}

	x0 := make([]float64, len(idx))
	for k, i := range idx {
		x0[k] = d.rho[i]
	}
	bounds := make([]lbfgsb.Bound, len(idx))
	for k := range bounds {
		bounds[k] = lbfgsb.Bound{Lower: 0, Upper: 1}
	}

	var evalErr error
	iter := 0
	eval := func(x, g []float64) float64 {
		select {
		case <-ctx.Done():
			evalErr = ctx.Err()
		default:
		}
		if evalErr != nil {
			return math.Inf(1)
		}

		d.writeDesignVec(idx, x)
		j, err := d.objective()
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		grad, err := d.gradient()
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}

		d.record(iter, j)
		iter++

		for k, i := range idx {
			g[k] = -grad[i]
		}
		return -j
	}

	prob := lbfgsb.Problem{
		N:    len(idx),
		M:    lbfgsbCorrections,
		Eval: eval,
		Stop: lbfgsb.Termination{
			MaxIterations:     s.Steps,
			EpsAccuracyFactor: 10,
			ProjGradTolerance: 1e-15,
		},
		Bounds: bounds,
	}
	opt, err := prob.New(&lbfgsb.Logger{Level: lbfgsb.LogNoop})
	if err != nil {
		return fmt.Errorf("optimize: lbfgsb setup: %w", err)
	}

	res := opt.Fit(x0, opt.Init())
	if evalErr != nil {
		return evalErr
	}

	d.writeDesignVec(idx, res.X)
	return nil
}

// writeDesignVec inserts a free-variable vector into the design region
// of the density map. A vector that matches the current density is a
// no-op so cached fields survive repeated line-search probes.
func (d *Driver) writeDesignVec(idx []int, x []float64) {
	var diff, norm float64
	for k, i := range idx {
		dv := x[k] - d.rho[i]
		diff += dv * dv
		norm += x[k] * x[k]
	}
	if norm > 0 && math.Sqrt(diff) <= 1e-10*math.Sqrt(norm) {
		return
	}
	for k, i := range idx {
		d.rho[i] = x[k]
	}
	clamp(d.rho)
	d.pushEps()
}
