package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/optimize"
)

const (
	DefaultDl         = 0.1
	DefaultL0         = 1e-6
	DefaultWavelength = 1.55e-6
	DefaultEpsM       = 5.0
	DefaultChi3       = 1e-3
	DefaultRadius     = 2.0
	DefaultEta        = 0.5
	DefaultBeta       = 100.0
	DefaultThreshold  = 1e-8
	DefaultMaxIter    = 50
	DefaultSteps      = 100
	DefaultStepSize   = 0.1
)

type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	Material  MaterialConfig  `yaml:"material"`
	Filter    FilterConfig    `yaml:"filter"`
	Solver    SolverConfig    `yaml:"solver"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Design    RectConfig      `yaml:"design_region"`
	SourceRow int             `yaml:"source_row"`
	ProbeRow  int             `yaml:"probe_row"`
}

type GridConfig struct {
	Nx         int     `yaml:"nx"`
	Ny         int     `yaml:"ny"`
	Dl         float64 `yaml:"dl"`         // spacing in units of L0
	L0         float64 `yaml:"l0"`         // length scale in meters
	Wavelength float64 `yaml:"wavelength"` // vacuum wavelength in meters
}

type MaterialConfig struct {
	EpsM float64 `yaml:"eps_m"`
	Chi3 float64 `yaml:"chi3"`
}

type FilterConfig struct {
	Radius float64 `yaml:"radius"` // in cells
	Eta    float64 `yaml:"eta"`
	Beta   float64 `yaml:"beta"`
}

type SolverConfig struct {
	Kind      string  `yaml:"kind"` // born or newton
	Threshold float64 `yaml:"threshold"`
	MaxIter   int     `yaml:"max_iter"`
}

type OptimizerConfig struct {
	Method   string  `yaml:"method"`
	Steps    int     `yaml:"steps"`
	StepSize float64 `yaml:"step_size"`
	Beta1    float64 `yaml:"beta1"`
	Beta2    float64 `yaml:"beta2"`
}

// RectConfig marks a half-open cell rectangle [X0,X1)×[Y0,Y1).
type RectConfig struct {
	X0 int `yaml:"x0"`
	Y0 int `yaml:"y0"`
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
}

func DefaultConfig() *Config {
	return &Config{
		Grid:      GridConfig{Nx: 24, Ny: 24, Dl: DefaultDl, L0: DefaultL0, Wavelength: DefaultWavelength},
		Material:  MaterialConfig{EpsM: DefaultEpsM, Chi3: DefaultChi3},
		Filter:    FilterConfig{Radius: DefaultRadius, Eta: DefaultEta, Beta: DefaultBeta},
		Solver:    SolverConfig{Kind: "born", Threshold: DefaultThreshold, MaxIter: DefaultMaxIter},
		Optimizer: OptimizerConfig{Method: optimize.MethodAdam, Steps: DefaultSteps, StepSize: DefaultStepSize, Beta1: 0.9, Beta2: 0.999},
		Design:    RectConfig{X0: 8, Y0: 4, X1: 16, Y1: 20},
		SourceRow: 2,
		ProbeRow:  21,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects a malformed configuration before any solve runs.
func (c *Config) Validate() error {
	g := c.Grid
	switch {
	case g.Nx <= 0 || g.Ny <= 0:
		return fmt.Errorf("config: grid must be positive, got %dx%d", g.Nx, g.Ny)
	case g.Dl <= 0 || g.L0 <= 0 || g.Wavelength <= 0:
		return fmt.Errorf("config: dl, l0 and wavelength must be positive")
	case c.Filter.Radius <= 0:
		return fmt.Errorf("config: filter radius must be positive, got %g", c.Filter.Radius)
	case c.Filter.Beta <= 0:
		return fmt.Errorf("config: projection beta must be positive, got %g", c.Filter.Beta)
	case c.Filter.Eta < 0 || c.Filter.Eta > 1:
		return fmt.Errorf("config: projection eta must lie in [0,1], got %g", c.Filter.Eta)
	case c.SourceRow < 0 || c.SourceRow >= g.Nx:
		return fmt.Errorf("config: source row %d outside grid", c.SourceRow)
	case c.ProbeRow < 0 || c.ProbeRow >= g.Nx:
		return fmt.Errorf("config: probe row %d outside grid", c.ProbeRow)
	case c.Design.X0 < 0 || c.Design.Y0 < 0 || c.Design.X1 > g.Nx || c.Design.Y1 > g.Ny:
		return fmt.Errorf("config: design region outside grid")
	case c.Design.X0 >= c.Design.X1 || c.Design.Y0 >= c.Design.Y1:
		return fmt.Errorf("config: design region is empty")
	}
	switch c.Solver.Kind {
	case "born", "newton":
	default:
		return fmt.Errorf("config: solver kind must be born or newton, got %q", c.Solver.Kind)
	}
	switch c.Optimizer.Method {
	case optimize.MethodGradientDescent, optimize.MethodAdam, optimize.MethodLBFGSB:
	default:
		return fmt.Errorf("%w: got %q", optimize.ErrUnknownMethod, c.Optimizer.Method)
	}
	return nil
}

// Omega is the angular frequency for the configured vacuum wavelength.
func (c *Config) Omega() float64 {
	return 2 * math.Pi * fdfd.C0 / c.Grid.Wavelength
}

// DesignMask rasterizes the design rectangle.
func (c *Config) DesignMask() []bool {
	mask := make([]bool, c.Grid.Nx*c.Grid.Ny)
	for ix := c.Design.X0; ix < c.Design.X1; ix++ {
		for iy := c.Design.Y0; iy < c.Design.Y1; iy++ {
			mask[ix*c.Grid.Ny+iy] = true
		}
	}
	return mask
}

// SourceField places a unit line source on the source row.
func (c *Config) SourceField() fdfd.Field {
	src := make(fdfd.Field, c.Grid.Nx*c.Grid.Ny)
	for iy := 0; iy < c.Grid.Ny; iy++ {
		src[c.SourceRow*c.Grid.Ny+iy] = 1
	}
	return src
}

// ProbeMask marks the probe row the objective integrates over.
func (c *Config) ProbeMask() []bool {
	mask := make([]bool, c.Grid.Nx*c.Grid.Ny)
	for iy := 0; iy < c.Grid.Ny; iy++ {
		mask[c.ProbeRow*c.Grid.Ny+iy] = true
	}
	return mask
}

// BackgroundEps is the vacuum starting permittivity.
func (c *Config) BackgroundEps() []complex128 {
	eps := make([]complex128, c.Grid.Nx*c.Grid.Ny)
	for i := range eps {
		eps[i] = 1
	}
	return eps
}
