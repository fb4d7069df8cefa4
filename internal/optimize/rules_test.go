package optimize

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("GradientAscent", func() {
	It("scales the gradient by the step size", func() {
		rule := GradientAscent{StepSize: 0.25}
		upd := rule.Step([]float64{4, -8, 0})
		Expect(upd).To(Equal([]float64{1, -2, 0}))
	})

	It("does not mutate the gradient", func() {
		grad := []float64{1, 2}
		GradientAscent{StepSize: 2}.Step(grad)
		Expect(grad).To(Equal([]float64{1, 2}))
	})

	It("reports its method name", func() {
		Expect(GradientAscent{}.Name()).To(Equal(MethodGradientDescent))
	})
})

var _ = Describe("Adam", func() {
	newRule := func() *Adam {
		return &Adam{StepSize: 0.1, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
	}

	It("normalizes a constant gradient to a fixed-magnitude step", func() {
		// with a constant gradient the bias-corrected moments are g and
		// g², so every update is step·g/(|g|+eps)
		rule := newRule()
		g := []float64{3, -0.5}
		for step := 0; step < 5; step++ {
			upd := rule.Step(append([]float64(nil), g...))
			for i := range g {
				want := 0.1 * g[i] / (math.Abs(g[i]) + 1e-8)
				Expect(upd[i]).To(BeNumerically("~", want, 1e-12))
			}
		}
	})

	It("exposes bias-corrected moments", func() {
		rule := newRule()
		g := []float64{2, -1}
		rule.Step(append([]float64(nil), g...))
		rule.Step(append([]float64(nil), g...))

		m, v := rule.Moments()
		for i := range g {
			Expect(m[i]).To(BeNumerically("~", g[i], 1e-12))
			Expect(v[i]).To(BeNumerically("~", g[i]*g[i], 1e-12))
		}
	})

	It("damps a sign-flipping gradient", func() {
		rule := newRule()
		flip := newRule()

		steady := rule.Step([]float64{1})
		flip.Step([]float64{1})
		flip.Step([]float64{-1})
		flipped := flip.Step([]float64{1})

		Expect(math.Abs(flipped[0])).To(BeNumerically("<", math.Abs(steady[0])))
	})

	It("reports its method name", func() {
		Expect((&Adam{}).Name()).To(Equal(MethodAdam))
	})
})
