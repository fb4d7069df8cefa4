package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/fdfdopt/internal/config"
	"github.com/san-kum/fdfdopt/internal/fdfd"
	"github.com/san-kum/fdfdopt/internal/linalg"
	"github.com/san-kum/fdfdopt/internal/optimize"
	"github.com/san-kum/fdfdopt/internal/solver"
	"github.com/san-kum/fdfdopt/internal/store"
	"github.com/san-kum/fdfdopt/internal/sweep"
	"github.com/san-kum/fdfdopt/internal/transform"
	"github.com/san-kum/fdfdopt/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	method     string
	steps      int
	stepSize   float64
	// gradient check
	checkPts  int
	checkStep float64
	checkSeed int64
	// frequency sweep
	sweepSamples int
	sweepSpan    float64
	sweepWorkers int
	// solve
	solverKind string
	resumeRun  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fdfdopt",
		Short: "nonlinear frequency-domain field solves and adjoint topology optimization",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".fdfdopt", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a topology optimization",
		RunE:  runOptimization,
	}
	runCmd.Flags().StringVar(&method, "method", "", "update rule (overrides config)")
	runCmd.Flags().IntVar(&steps, "steps", 0, "iteration budget (overrides config)")
	runCmd.Flags().Float64Var(&stepSize, "step-size", 0, "step size (overrides config)")
	runCmd.Flags().StringVar(&resumeRun, "resume", "", "seed the density from a saved run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a topology optimization with a live monitor",
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&method, "method", "", "update rule (overrides config)")
	liveCmd.Flags().IntVar(&steps, "steps", 0, "iteration budget (overrides config)")
	liveCmd.Flags().Float64Var(&stepSize, "step-size", 0, "step size (overrides config)")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "single nonlinear solve, residual trace on stdout",
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&solverKind, "solver", "", "born or newton (overrides config)")

	checkCmd := &cobra.Command{
		Use:   "check-grad",
		Short: "compare adjoint gradient against finite differences",
		RunE:  runCheckGrad,
	}
	checkCmd.Flags().IntVar(&checkPts, "points", 5, "number of random design cells")
	checkCmd.Flags().Float64Var(&checkStep, "d-rho", 1e-3, "finite-difference perturbation")
	checkCmd.Flags().Int64Var(&checkSeed, "seed", time.Now().UnixNano(), "random seed")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "scan the objective across frequency",
		RunE:  runSweep,
	}
	sweepCmd.Flags().IntVar(&sweepSamples, "samples", 50, "number of frequency samples")
	sweepCmd.Flags().Float64Var(&sweepSpan, "span", 0.05, "fractional bandwidth")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 4, "concurrent solves")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the objective history of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return store.New(dataDir).ExportJSON(args[0], os.Stdout)
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, solveCmd, checkCmd, sweepCmd, listCmd, plotCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if method != "" {
		cfg.Optimizer.Method = method
	}
	if steps > 0 {
		cfg.Optimizer.Steps = steps
	}
	if stepSize > 0 {
		cfg.Optimizer.StepSize = stepSize
	}
	if solverKind != "" {
		cfg.Solver.Kind = solverKind
	}
	return cfg, cfg.Validate()
}

func newChain(cfg *config.Config, background []complex128) (*transform.Chain, error) {
	return transform.New(cfg.Grid.Nx, cfg.Grid.Ny, cfg.DesignMask(), background,
		cfg.Material.EpsM, cfg.Filter.Radius, cfg.Filter.Eta, cfg.Filter.Beta)
}

type problem struct {
	cfg    *config.Config
	oracle *fdfd.Helmholtz
	driver *optimize.Driver
	src    fdfd.Field
}

func buildProblem(cfg *config.Config) (*problem, error) {
	oracle, err := fdfd.NewHelmholtz(cfg.Grid.Nx, cfg.Grid.Ny, cfg.Grid.Dl, cfg.Grid.L0,
		cfg.Omega(), cfg.BackgroundEps(), linalg.DenseLU{})
	if err != nil {
		return nil, err
	}
	chain, err := newChain(cfg, oracle.Eps())
	if err != nil {
		return nil, err
	}
	src := cfg.SourceField()
	driver := optimize.NewDriver(oracle, chain, optimize.Intensity{Probe: cfg.ProbeMask()}, src, linalg.DenseLU{})
	return &problem{cfg: cfg, oracle: oracle, driver: driver, src: src}, nil
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := buildProblem(cfg)
	if err != nil {
		return err
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	if resumeRun != "" {
		rho, err := st.LoadDensity(resumeRun)
		if err != nil {
			return err
		}
		if err := p.driver.SetDensity(rho); err != nil {
			return err
		}
	}

	p.driver.AddObserver(optimize.ObserverFunc(func(iter int, objective float64) {
		if iter%10 == 0 {
			fmt.Printf("iter %4d  objective %.6e\n", iter, objective)
		}
	}))

	fmt.Printf("optimizing with %s (%d steps)...\n", cfg.Optimizer.Method, cfg.Optimizer.Steps)
	start := time.Now()
	if err := p.driver.Run(context.Background(), settings(cfg)); err != nil {
		return err
	}
	fmt.Printf("completed in %v\n", time.Since(start))

	runID, err := st.Save(metadata(cfg), p.driver.Density(), p.oracle.Eps(), p.driver.History())
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)

	history := p.driver.History()
	if len(history) > 0 {
		fmt.Printf("final objective: %.6e\n", history[len(history)-1])
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := buildProblem(cfg)
	if err != nil {
		return err
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	updates := make(chan tea.Msg, 64)
	p.driver.AddObserver(optimize.ObserverFunc(func(iter int, objective float64) {
		updates <- viz.ProgressMsg{Iter: iter, Objective: objective}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := p.driver.Run(ctx, settings(cfg))
		updates <- viz.DoneMsg{Err: err}
		done <- err
	}()

	prog := tea.NewProgram(viz.NewModel(updates, cfg.Optimizer.Steps))
	_, progErr := prog.Run()

	// quitting the view stops the run; drain the observer channel so the
	// optimizer goroutine can finish its in-flight iteration
	cancel()
	var runErr error
drain:
	for {
		select {
		case <-updates:
		case runErr = <-done:
			break drain
		}
	}
	if progErr != nil {
		return progErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	history := p.driver.History()
	if len(history) == 0 {
		return nil
	}
	runID, err := st.Save(metadata(cfg), p.driver.Density(), p.oracle.Eps(), history)
	if err != nil {
		return err
	}
	if errors.Is(runErr, context.Canceled) {
		fmt.Printf("stopped after %d iterations\n", len(history))
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := buildProblem(cfg)
	if err != nil {
		return err
	}

	opt := solver.Options{Threshold: cfg.Solver.Threshold, MaxIter: cfg.Solver.MaxIter}
	nl := fdfd.Kerr{Chi3: cfg.Material.Chi3}
	mask := cfg.DesignMask()

	var res *solver.Result
	start := time.Now()
	switch cfg.Solver.Kind {
	case "newton":
		res, err = solver.Newton(p.oracle, p.src, mask, nl, linalg.DenseLU{}, opt)
	default:
		res, err = solver.Born(p.oracle, p.src, mask, nl, opt)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s solve: %d iterations in %v, converged=%v\n",
		cfg.Solver.Kind, len(res.Trace), time.Since(start), res.Converged)
	if !res.Converged && len(res.Trace) > 0 {
		fmt.Printf("did not converge, reached %.3e\n", res.Trace[len(res.Trace)-1])
	}

	fmt.Println(asciigraph.Plot(logTrace(res.Trace),
		asciigraph.Height(10),
		asciigraph.Width(60),
		asciigraph.Caption("log10 relative residual"),
	))
	return nil
}

// logTrace takes log10 of a residual trace, floored so a residual that
// underflows to zero cannot put -Inf into the plot.
func logTrace(trace []float64) []float64 {
	out := make([]float64, len(trace))
	for i, v := range trace {
		out[i] = math.Log10(math.Max(v, 1e-16))
	}
	return out
}

func runCheckGrad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := buildProblem(cfg)
	if err != nil {
		return err
	}

	analytic, numeric, err := p.driver.CheckDeriv(checkPts, checkStep, checkSeed)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADJOINT\tNUMERIC\tREL_ERR")
	for i := range analytic {
		relErr := math.Abs(analytic[i]-numeric[i]) / math.Max(math.Abs(numeric[i]), 1e-300)
		fmt.Fprintf(w, "%.6e\t%.6e\t%.3e\n", analytic[i], numeric[i], relErr)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	scan := sweep.Scan{Samples: sweepSamples, Span: sweepSpan, Workers: sweepWorkers}
	eps := cfg.BackgroundEps()
	factory := func(omega float64) (fdfd.Oracle, error) {
		return fdfd.NewHelmholtz(cfg.Grid.Nx, cfg.Grid.Ny, cfg.Grid.Dl, cfg.Grid.L0, omega, eps, linalg.DenseLU{})
	}

	points, err := scan.Run(context.Background(), cfg.Omega(), cfg.SourceField(),
		optimize.Intensity{Probe: cfg.ProbeMask()}, factory)
	if err != nil {
		return err
	}

	objs := make([]float64, len(points))
	for i, pt := range points {
		objs[i] = pt.Objective
	}
	fmt.Println(asciigraph.Plot(objs,
		asciigraph.Height(12),
		asciigraph.Width(70),
		asciigraph.Caption("objective vs frequency"),
	))
	fmt.Printf("center: %.4e Hz  fwhm: %.4e Hz\n", cfg.Omega()/(2*math.Pi), sweep.FWHM(points))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := store.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tMETHOD\tITERS\tOBJECTIVE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.6e\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Method,
			run.Iters,
			run.Final,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	history, err := st.LoadHistory(args[0])
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("no data to plot")
	}
	fmt.Println(asciigraph.Plot(history,
		asciigraph.Height(12),
		asciigraph.Width(70),
		asciigraph.Caption("objective vs iteration"),
	))
	return nil
}

func settings(cfg *config.Config) optimize.Settings {
	return optimize.Settings{
		Method:   cfg.Optimizer.Method,
		Steps:    cfg.Optimizer.Steps,
		StepSize: cfg.Optimizer.StepSize,
		Beta1:    cfg.Optimizer.Beta1,
		Beta2:    cfg.Optimizer.Beta2,
	}
}

func metadata(cfg *config.Config) store.RunMetadata {
	return store.RunMetadata{
		Nx:       cfg.Grid.Nx,
		Ny:       cfg.Grid.Ny,
		EpsM:     cfg.Material.EpsM,
		Radius:   cfg.Filter.Radius,
		Eta:      cfg.Filter.Eta,
		Beta:     cfg.Filter.Beta,
		Method:   cfg.Optimizer.Method,
		Steps:    cfg.Optimizer.Steps,
		StepSize: cfg.Optimizer.StepSize,
		Beta1:    cfg.Optimizer.Beta1,
		Beta2:    cfg.Optimizer.Beta2,
	}
}
