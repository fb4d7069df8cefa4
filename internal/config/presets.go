package config

import "github.com/san-kum/fdfdopt/internal/optimize"

var Presets = map[string]*Config{
	"demo-small": {
		Grid:      GridConfig{Nx: 12, Ny: 12, Dl: DefaultDl, L0: DefaultL0, Wavelength: DefaultWavelength},
		Material:  MaterialConfig{EpsM: DefaultEpsM, Chi3: DefaultChi3},
		Filter:    FilterConfig{Radius: 1.5, Eta: DefaultEta, Beta: DefaultBeta},
		Solver:    SolverConfig{Kind: "born", Threshold: DefaultThreshold, MaxIter: DefaultMaxIter},
		Optimizer: OptimizerConfig{Method: optimize.MethodGradientDescent, Steps: 20, StepSize: 0.05, Beta1: 0.9, Beta2: 0.999},
		Design:    RectConfig{X0: 4, Y0: 2, X1: 8, Y1: 10},
		SourceRow: 1,
		ProbeRow:  10,
	},
	"focuser": {
		Grid:      GridConfig{Nx: 40, Ny: 40, Dl: DefaultDl, L0: DefaultL0, Wavelength: DefaultWavelength},
		Material:  MaterialConfig{EpsM: DefaultEpsM, Chi3: 0},
		Filter:    FilterConfig{Radius: 3, Eta: DefaultEta, Beta: DefaultBeta},
		Solver:    SolverConfig{Kind: "born", Threshold: DefaultThreshold, MaxIter: DefaultMaxIter},
		Optimizer: OptimizerConfig{Method: optimize.MethodAdam, Steps: 200, StepSize: 0.05, Beta1: 0.9, Beta2: 0.999},
		Design:    RectConfig{X0: 12, Y0: 6, X1: 28, Y1: 34},
		SourceRow: 3,
		ProbeRow:  36,
	},
	"kerr-switch": {
		Grid:      GridConfig{Nx: 32, Ny: 32, Dl: DefaultDl, L0: DefaultL0, Wavelength: DefaultWavelength},
		Material:  MaterialConfig{EpsM: DefaultEpsM, Chi3: 5e-3},
		Filter:    FilterConfig{Radius: 2, Eta: DefaultEta, Beta: 200},
		Solver:    SolverConfig{Kind: "newton", Threshold: DefaultThreshold, MaxIter: 20},
		Optimizer: OptimizerConfig{Method: optimize.MethodLBFGSB, Steps: 100, StepSize: DefaultStepSize, Beta1: 0.9, Beta2: 0.999},
		Design:    RectConfig{X0: 10, Y0: 6, X1: 22, Y1: 26},
		SourceRow: 2,
		ProbeRow:  29,
	},
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
