package optimize

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Rule turns a density gradient into a density update. Implementations
// own whatever per-iteration state they need; one Rule instance serves
// exactly one optimization run.
type Rule interface {
	Name() string
	Step(grad []float64) []float64
}

// GradientAscent takes plain steps along the gradient.
type GradientAscent struct {
	StepSize float64
}

func (GradientAscent) Name() string { return MethodGradientDescent }

func (r GradientAscent) Step(grad []float64) []float64 {
	upd := make([]float64, len(grad))
	floats.AddScaled(upd, r.StepSize, grad)
	return upd
}

// Adam keeps exponentially decayed first and second moment estimates and
// produces a magnitude-normalized step after standard bias correction.
type Adam struct {
	StepSize float64
	Beta1    float64
	Beta2    float64
	Epsilon  float64

	m, v []float64
	t    int
}

func (*Adam) Name() string { return MethodAdam }

func (r *Adam) Step(grad []float64) []float64 {
	if r.m == nil {
		r.m = make([]float64, len(grad))
		r.v = make([]float64, len(grad))
	}
	r.t++

	upd := make([]float64, len(grad))
	c1 := 1 - math.Pow(r.Beta1, float64(r.t))
	c2 := 1 - math.Pow(r.Beta2, float64(r.t))
	for i, g := range grad {
		r.m[i] = r.Beta1*r.m[i] + (1-r.Beta1)*g
		r.v[i] = r.Beta2*r.v[i] + (1-r.Beta2)*g*g
		mHat := r.m[i] / c1
		vHat := r.v[i] / c2
		upd[i] = r.StepSize * mHat / (math.Sqrt(vHat) + r.Epsilon)
	}
	return upd
}

// Moments returns the bias-corrected moment estimates, for diagnostics.
func (r *Adam) Moments() (m, v []float64) {
	c1 := 1 - math.Pow(r.Beta1, float64(r.t))
	c2 := 1 - math.Pow(r.Beta2, float64(r.t))
	m = make([]float64, len(r.m))
	v = make([]float64, len(r.v))
	for i := range r.m {
		m[i] = r.m[i] / c1
		v[i] = r.v[i] / c2
	}
	return m, v
}
