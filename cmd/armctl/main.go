package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/armctl/internal/actuation"
	"github.com/san-kum/armctl/internal/config"
	"github.com/san-kum/armctl/internal/coppelia"
	"github.com/san-kum/armctl/internal/drive"
	"github.com/san-kum/armctl/internal/kinematics"
	"github.com/san-kum/armctl/internal/solver"
	"github.com/san-kum/armctl/internal/store"
	"github.com/san-kum/armctl/internal/watch"
)

var (
	dataDir string
	verbose bool

	configFile string
	preset     string

	host string
	port int

	period    float64
	duration  float64
	eps       float64
	lambda    float64
	maxDq     float64
	tolerance float64

	shape     string
	radius    float64
	frequency float64

	// demo/watch: estimate the Jacobian analytically instead of probing
	analytic bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "armctl",
		Short: "closed-loop Jacobian arm controller",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".armctl", "data directory")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "track a trajectory on a CoppeliaSim arm",
		Args:  cobra.NoArgs,
		RunE:  runCoppelia,
	}
	addLoopFlags(runCmd)
	runCmd.Flags().StringVar(&host, "host", config.DefaultHost, "simulator host")
	runCmd.Flags().IntVar(&port, "port", config.DefaultPort, "remote API port")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "track a trajectory on the built-in planar arm",
		Args:  cobra.NoArgs,
		RunE:  runDemo,
	}
	addLoopFlags(demoCmd)
	demoCmd.Flags().BoolVar(&analytic, "analytic", false, "use the analytic Jacobian instead of probing")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "demo run with live visualization",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	addLoopFlags(watchCmd)
	watchCmd.Flags().BoolVar(&analytic, "analytic", false, "use the analytic Jacobian instead of probing")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export the cycle log to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
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

	rootCmd.AddCommand(runCmd, demoCmd, watchCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&period, "period", config.DefaultPeriod, "control period (s)")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "run duration (s)")
	cmd.Flags().Float64Var(&eps, "eps", config.DefaultEps, "finite-difference step (rad)")
	cmd.Flags().Float64Var(&lambda, "lambda", config.DefaultLambda, "damping factor")
	cmd.Flags().Float64Var(&maxDq, "max-dq", config.DefaultMaxStep, "per-joint step limit (rad)")
	cmd.Flags().Float64Var(&tolerance, "tol", config.DefaultTolerance, "pass tolerance (m)")
	cmd.Flags().StringVar(&shape, "shape", "", "trajectory shape (circle, line, static)")
	cmd.Flags().Float64Var(&radius, "radius", config.DefaultRadius, "circle radius (m)")
	cmd.Flags().Float64Var(&frequency, "freq", config.DefaultFrequency, "circle frequency (hz)")
}

// loadConfig resolves preset, then config file, then CLI flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = c
	}

	if cmd.Flags().Changed("period") {
		cfg.Loop.Period = period
	}
	if cmd.Flags().Changed("time") {
		cfg.Loop.Duration = duration
	}
	if cmd.Flags().Changed("eps") {
		cfg.Loop.Eps = eps
	}
	if cmd.Flags().Changed("lambda") {
		cfg.Loop.Lambda = lambda
	}
	if cmd.Flags().Changed("max-dq") {
		cfg.Loop.MaxStep = maxDq
	}
	if cmd.Flags().Changed("tol") {
		cfg.Loop.Tolerance = tolerance
	}
	if cmd.Flags().Changed("shape") {
		cfg.Trajectory.Shape = shape
	}
	if cmd.Flags().Changed("radius") {
		cfg.Trajectory.Radius = radius
	}
	if cmd.Flags().Changed("freq") {
		cfg.Trajectory.Frequency = frequency
	}
	if cmd.Flags().Changed("host") {
		cfg.Session.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Session.Port = port
	}

	return cfg, nil
}

func newLogger() *zap.SugaredLogger {
	if !verbose {
		return zap.NewNop().Sugar()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return log.Sugar()
}

func loopConfig(cfg *config.Config) drive.Config {
	return drive.Config{
		Period:         cfg.Loop.Period,
		Duration:       cfg.Loop.Duration,
		Eps:            cfg.Loop.Eps,
		Lambda:         cfg.Loop.Lambda,
		Limits:         solver.Limits{MaxStep: cfg.Loop.MaxStep, MaxNorm: cfg.Loop.MaxNorm},
		Tolerance:      cfg.Loop.Tolerance,
		ConvergeWindow: cfg.Loop.ConvergeWindow,
	}
}

func runCoppelia(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger()

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session, err := coppelia.Connect(ctx, cfg.Session.Host, cfg.Session.Port)
	if err != nil {
		return err
	}
	defer session.Close()
	session.SetLogger(log)

	arm, err := coppelia.NewArm(session, coppelia.ArmConfig{
		JointPaths:    cfg.Arm.JointPaths,
		TipPath:       cfg.Arm.TipPath,
		TipCandidates: cfg.Arm.TipCandidates,
		Stepping:      cfg.Session.Stepping,
	})
	if err != nil {
		return err
	}
	arm.SetLogger(log)

	if err := arm.Start(); err != nil {
		return err
	}
	defer arm.Stop()

	p0, err := arm.EndEffectorPosition()
	if err != nil {
		return err
	}
	traj, err := cfg.Trajectory.Build(p0)
	if err != nil {
		return err
	}

	driver := drive.New(loopConfig(cfg), arm, traj)
	driver.SetLogger(log)

	fmt.Printf("tracking %s trajectory on %d joints...\n", cfg.Trajectory.Shape, len(cfg.Arm.JointPaths))
	start := time.Now()
	res, runErr := driver.Run(ctx)
	elapsed := time.Since(start)

	runID, err := st.Save("coppelia", loopConfig(cfg), res)
	if err != nil {
		return err
	}
	printSummary(runID, res, elapsed)
	return runErr
}

// demoDriver builds a driver over the analytic planar arm, no simulator
// required.
func demoDriver(cfg *config.Config, log *zap.SugaredLogger) (*drive.Driver, *actuation.Fake, error) {
	if len(cfg.Arm.Links) != 2 {
		return nil, nil, fmt.Errorf("demo arm needs exactly 2 links, got %d", len(cfg.Arm.Links))
	}
	if len(cfg.Arm.InitAngles) != 2 {
		return nil, nil, fmt.Errorf("demo arm needs 2 initial angles, got %d", len(cfg.Arm.InitAngles))
	}

	model := kinematics.NewTwoLink(cfg.Arm.Links[0], cfg.Arm.Links[1])
	q0 := kinematics.JointVector(cfg.Arm.InitAngles).Clone()
	fake := actuation.NewFake(model, q0)

	p0, err := model.EndEffector(q0)
	if err != nil {
		return nil, nil, err
	}
	traj, err := cfg.Trajectory.Build(p0)
	if err != nil {
		return nil, nil, err
	}

	driver := drive.New(loopConfig(cfg), fake, traj)
	driver.SetLogger(log)
	if analytic {
		driver.SetModel(model)
	}
	return driver, fake, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	driver, _, err := demoDriver(cfg, newLogger())
	if err != nil {
		return err
	}

	fmt.Printf("tracking %s trajectory on the planar arm...\n", cfg.Trajectory.Shape)
	start := time.Now()
	res, runErr := driver.Run(context.Background())
	elapsed := time.Since(start)

	runID, err := st.Save("demo", loopConfig(cfg), res)
	if err != nil {
		return err
	}
	printSummary(runID, res, elapsed)
	return runErr
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	driver, fake, err := demoDriver(cfg, newLogger())
	if err != nil {
		return err
	}
	if err := driver.Begin(); err != nil {
		return err
	}

	m := watch.NewModel(driver, fake, cfg.Arm.Links)
	p := tea.NewProgram(m)
	final, err := p.Run()
	if err != nil {
		return err
	}

	if fm, ok := final.(watch.Model); ok {
		if res := fm.Result(); res != nil {
			runID, err := st.Save("demo", loopConfig(cfg), res)
			if err != nil {
				return err
			}
			fmt.Printf("run id: %s\n", runID)
		}
	}
	return nil
}

func printSummary(runID string, res *drive.Result, elapsed time.Duration) {
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("status: %s\n", res.Status)
	fmt.Printf("cycles: %d\n", res.Cycles)
	fmt.Println("\nmetrics:")
	fmt.Printf("  mean_abs_error: %.6f\n", res.MeanAbsError)
	fmt.Printf("  max_error:      %.6f\n", res.MaxError)
	fmt.Printf("  final_error:    %.6f\n", res.FinalError)
	fmt.Printf("  mean_step_norm: %.6f\n", res.MeanStepNorm)
	fmt.Printf("  clamped_cycles: %d\n", res.ClampedCycles)
	if res.Passed {
		fmt.Println("\nverdict: PASS")
	} else {
		fmt.Println("\nverdict: FAIL")
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tTIME\tSTATUS\tCYCLES\tFINAL_ERR\tPASS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4f\t%v\n",
			run.ID,
			run.Source,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Cycles,
			run.FinalError,
			run.Passed,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cycles, err := st.LoadCycles(runID)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("status: %s\n", meta.Status)
	fmt.Printf("samples: %d\n\n", len(cycles))

	errs := make([]float64, len(cycles))
	steps := make([]float64, len(cycles))
	for i, c := range cycles {
		errs[i] = c.Error
		steps[i] = c.StepNorm
	}

	fmt.Println(asciigraph.Plot(errs,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("tracking error (m)"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(steps,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("step norm |dq| (rad)"),
	))

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cycles, err := st.LoadCycles(runID)
	if err != nil {
		return err
	}

	return store.ExportJSON(os.Stdout, meta, cycles)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := store.New(dataDir)
	cycles, err := st.LoadCycles(runID)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"time", "desired_x", "desired_y", "actual_x", "actual_y", "error", "step_norm", "clamped"}
	if err := w.Write(header); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, c := range cycles {
		row := []string{
			f(c.Time),
			f(c.Desired[0]), f(c.Desired[1]),
			f(c.Actual[0]), f(c.Actual[1]),
			f(c.Error), f(c.StepNorm),
			strconv.FormatBool(c.Clamped),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}
