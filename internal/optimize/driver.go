// Package optimize runs gradient-based topology optimization of a
// density map against a scalar field objective, with the adjoint method
// supplying the per-cell gradient.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/fdfdopt/internal/adjoint"
	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/linalg"
	"github.com/san-kum/fdfdopt/internal/transform"
)

// Update-rule names accepted by Settings.Method.
const (
	MethodGradientDescent = "gradient-descent"
	MethodAdam            = "adam"
	MethodLBFGSB          = "lbfgsb"
)

// ErrUnknownMethod rejects an unrecognized update-rule name before any
// solve runs.
var ErrUnknownMethod = fmt.Errorf(`optimize: unknown update rule (allowed: %q, %q, %q)`,
	MethodGradientDescent, MethodAdam, MethodLBFGSB)

// Settings selects and tunes the update rule for one run.
type Settings struct {
	Method   string
	Steps    int
	StepSize float64
	Beta1    float64
	Beta2    float64
}

func (s Settings) withDefaults() Settings {
	if s.Steps <= 0 {
		s.Steps = 100
	}
	if s.StepSize == 0 {
		s.StepSize = 0.1
	}
	if s.Beta1 == 0 {
		s.Beta1 = 0.9
	}
	if s.Beta2 == 0 {
		s.Beta2 = 0.999
	}
	return s
}

// State of the driver's run lifecycle.
type State int

const (
	StateInit State = iota
	StateIterating
	StateTerminated
)

// Observer receives one callback per optimizer iteration.
type Observer interface {
	OnIteration(iter int, objective float64)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(iter int, objective float64)

func (f ObserverFunc) OnIteration(iter int, objective float64) { f(iter, objective) }

// Driver owns all mutable optimization state: the density map, the
// oracle's permittivity, the objective history, and the stale-fields
// flag. Exactly one Driver drives one oracle; nothing is shared.
type Driver struct {
	oracle fdfd.Oracle
	chain  *transform.Chain
	obj    Objective
	src    fdfd.Field
	ds     linalg.DirectSolver

	rho       []float64
	stale     bool
	state     State
	history   []float64
	observers []Observer
}

func NewDriver(oracle fdfd.Oracle, chain *transform.Chain, obj Objective, src fdfd.Field, ds linalg.DirectSolver) *Driver {
	if ds == nil {
		ds = linalg.DenseLU{}
	}
	return &Driver{
		oracle: oracle,
		chain:  chain,
		obj:    obj,
		src:    src,
		ds:     ds,
		stale:  true,
	}
}

func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

func (d *Driver) State() State { return d.state }

// History returns the objective value recorded at every iteration.
func (d *Driver) History() []float64 { return append([]float64(nil), d.history...) }

// Density returns a copy of the current density map.
func (d *Driver) Density() []float64 {
	d.ensureDensity()
	return append([]float64(nil), d.rho...)
}

// SetDensity seeds the density map, e.g. when resuming a saved run, and
// pushes the matching permittivity to the oracle.
func (d *Driver) SetDensity(rho []float64) error {
	nx, ny := d.chain.Dims()
	if len(rho) != nx*ny {
		return fmt.Errorf("%w: density has %d cells, grid wants %d", transform.ErrShape, len(rho), nx*ny)
	}
	d.rho = append([]float64(nil), rho...)
	clamp(d.rho)
	d.pushEps()
	return nil
}

// Run executes one optimization with the selected update rule. The
// method name is validated before any solve. Context cancellation stops
// the gradient-driven rules between iterations.
func (d *Driver) Run(ctx context.Context, s Settings) error {
	s = s.withDefaults()

	var rule Rule
	switch s.Method {
	case MethodGradientDescent:
		rule = GradientAscent{StepSize: s.StepSize}
	case MethodAdam:
		rule = &Adam{StepSize: s.StepSize, Beta1: s.Beta1, Beta2: s.Beta2, Epsilon: 1e-8}
	case MethodLBFGSB:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownMethod, s.Method)
	}

	d.ensureDensity()
	d.state = StateIterating
	defer func() { d.state = StateTerminated }()

	if s.Method == MethodLBFGSB {
		return d.runLBFGSB(ctx, s)
	}
	return d.iterate(ctx, s.Steps, rule)
}

func (d *Driver) iterate(ctx context.Context, steps int, rule Rule) error {
	for it := 0; it < steps; it++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		j, err := d.objective()
		if err != nil {
			return err
		}
		d.record(it, j)

		grad, err := d.gradient()
		if err != nil {
			return err
		}

		d.applyUpdate(rule.Step(grad))
	}
	return nil
}

// objective forces a forward solve when the cached fields are stale.
func (d *Driver) objective() (float64, error) {
	if d.stale || d.oracle.Fields() == nil {
		if _, err := d.oracle.SolveFields(d.src); err != nil {
			return 0, err
		}
		d.stale = false
	}
	return d.obj.Value(d.oracle.Fields()), nil
}

func (d *Driver) gradient() ([]float64, error) {
	ez := d.oracle.Fields()
	return adjoint.Sensitivity(d.oracle, d.chain, d.rho, d.obj.Gradient(ez), d.ds)
}

// applyUpdate adds the update inside the design region, clamps to [0,1],
// recomputes the permittivity, and marks the fields stale.
func (d *Driver) applyUpdate(upd []float64) {
	region := d.chain.Region()
	for i := range d.rho {
		if region[i] {
			d.rho[i] += upd[i]
		}
	}
	clamp(d.rho)
	d.pushEps()
}

func (d *Driver) pushEps() {
	d.oracle.ResetEps(d.chain.Eps(d.rho))
	d.stale = true
}

// ensureDensity lazily derives rho from the oracle's permittivity on the
// first run.
func (d *Driver) ensureDensity() {
	if d.rho == nil {
		d.rho = d.chain.Density(d.oracle.Eps())
	}
}

func (d *Driver) record(it int, j float64) {
	d.history = append(d.history, j)
	for _, o := range d.observers {
		o.OnIteration(it, j)
	}
}

func clamp(rho []float64) {
	for i, v := range rho {
		rho[i] = math.Min(1, math.Max(0, v))
	}
}

// CheckDeriv compares the adjoint gradient against finite differences at
// npts random design-region cells with perturbation drho. It restores
// the unperturbed permittivity before returning.
func (d *Driver) CheckDeriv(npts int, drho float64, seed int64) (analytic, numeric []float64, err error) {
	d.ensureDensity()
	d.pushEps()

	j0, err := d.objective()
	if err != nil {
		return nil, nil, err
	}
	grad, err := d.gradient()
	if err != nil {
		return nil, nil, err
	}

	region := d.chain.Region()
	var cells []int
	for i, in := range region {
		if in {
			cells = append(cells, i)
		}
	}
	if len(cells) == 0 {
		return nil, nil, errors.New("optimize: empty design region")
	}

	rng := rand.New(rand.NewSource(seed))
	defer d.pushEps() // back to the unperturbed permittivity

	for p := 0; p < npts; p++ {
		cell := cells[rng.Intn(len(cells))]

		perturbed := append([]float64(nil), d.rho...)
		perturbed[cell] += drho
		d.oracle.ResetEps(d.chain.Eps(perturbed))
		if _, err := d.oracle.SolveFields(d.src); err != nil {
			return nil, nil, err
		}
		jNew := d.obj.Value(d.oracle.Fields())

		analytic = append(analytic, grad[cell])
		numeric = append(numeric, (jNew-j0)/drho)
	}
	return analytic, numeric, nil
}
