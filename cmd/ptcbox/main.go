package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/ptcbox/internal/config"
	"github.com/san-kum/ptcbox/internal/export"
	"github.com/san-kum/ptcbox/internal/logging"
	"github.com/san-kum/ptcbox/internal/sim"
	"github.com/san-kum/ptcbox/internal/storage"
	"github.com/san-kum/ptcbox/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	logFormat  string

	duration time.Duration
	seed     int64
	target   float64
	runs     int

	evalTarget float64
	evalMS     int64

	speed     int
	outFile   string
	addr      string
	stdinCmds bool
	timeScale float64
)

var presetInfo = map[string]string{
	"enclosure": "general enclosure at 40 °C",
	"proofing":  "dough proofing at 28 °C",
	"drying":    "filament drying at 55 °C",
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "ptcbox",
		Short:        "PTC heater and fan enclosure controller",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive(config.ListPresets(), presetInfo, buildLive, 10)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "run storage directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "start from a preset configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a closed-loop simulation and store it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().DurationVar(&duration, "time", 0, "simulated duration (default from config)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "sensor noise seed (default from config)")
	runCmd.Flags().Float64Var(&target, "target", 0, "box target temperature (default from config)")
	runCmd.Flags().IntVar(&runs, "runs", 1, "number of seeds to run; more than one prints mean metrics")

	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "score PTC tracking in WARMING at a target, in simulated time",
		Args:  cobra.NoArgs,
		RunE:  evalTracking,
	}
	evalCmd.Flags().Float64Var(&evalTarget, "target", 40, "box target temperature")
	evalCmd.Flags().Int64Var(&evalMS, "ms", 60000, "evaluation window in milliseconds")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with the live terminal monitor",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	liveCmd.Flags().IntVar(&speed, "speed", 10, "fast cycles per frame")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the controller in real time with the HTTP, MQTT and text command interfaces",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	serveCmd.Flags().BoolVar(&stdinCmds, "stdin", false, "read text commands from stdin")
	serveCmd.Flags().Float64Var(&timeScale, "time-scale", 1, "plant seconds per wall second")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot box and PTC temperature of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run trace to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and trace to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render run temperatures to an SVG chart",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Printf("  %-10s %s\n", name, presetInfo[name])
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "configuration helpers",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "write the effective configuration to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	})

	rootCmd.AddCommand(runCmd, evalCmd, newAutotuneCmd(), liveCmd, serveCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies the preset, then the config file, then log flags.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		if err := config.Overlay(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if dataDir != "" {
		cfg.Storage.Dir = dataDir
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("time") {
		cfg.Sim.Duration = duration
	}
	if cmd.Flags().Changed("seed") {
		cfg.Sim.Seed = seed
	}
	if cmd.Flags().Changed("target") {
		cfg.Control.Target = target
	}
	lg, err := newLogger(cfg)
	if err != nil {
		return err
	}
	sc, err := cfg.SimConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if runs > 1 {
		fmt.Printf("running %d seeds of %v...\n", runs, sc.Duration)
		start := time.Now()
		results, err := sim.NewEnsemble(sc, runs, sc.Seed).Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("completed in %v\n\nmean metrics:\n", time.Since(start))
		printMetrics(sim.Mean(results))
		return nil
	}

	st := storage.New(cfg.Storage.Dir)
	if err := st.Init(); err != nil {
		return err
	}

	s, err := sim.New(sc, lg)
	if err != nil {
		return err
	}
	s.AddStandardMetrics()

	fmt.Printf("running %v of enclosure time...\n", sc.Duration)
	start := time.Now()
	result, err := s.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	name := preset
	if name == "" {
		name = "custom"
	}
	runID, err := st.Save(storage.Describe(name, sc), result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d  transitions: %d  safety trips: %d\n", result.Steps, len(result.Transitions), result.Trips)
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func evalTracking(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := cfg.SimConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	s, err := sim.New(sc, nil)
	if err != nil {
		return err
	}
	reply, err := s.Tuning().Exec(ctx, fmt.Sprintf("eval_ptc %g %d", evalTarget, evalMS))
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

// buildLive creates a long simulation for the monitor. The monitor stops
// stepping it on the user's request, not at the configured duration.
func buildLive(name string) (viz.Source, error) {
	cfg := config.GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	return newLiveSim(cfg)
}

func newLiveSim(cfg *config.Config) (*sim.Simulator, error) {
	sc, err := cfg.SimConfig()
	if err != nil {
		return nil, err
	}
	return sim.New(sc, nil)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newLiveSim(cfg)
	if err != nil {
		return err
	}
	name := preset
	if name == "" {
		name = "enclosure"
	}
	return viz.RunMonitor(s, name, speed)
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := storage.New(cfg.Storage.Dir)
	list, err := st.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tDURATION\tTARGET\tSEED\tIAE\tTRIPS")
	for _, run := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%d\t%.1f\t%d\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			time.Duration(run.Duration*float64(time.Second)),
			run.Target,
			run.Seed,
			run.Metrics["iae"],
			run.Trips,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := storage.New(cfg.Storage.Dir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	points, err := st.LoadTrace(args[0])
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s  target: %.1f °C\n", meta.Preset, meta.Target)
	fmt.Printf("samples: %d\n\n", len(points))

	box := make([]float64, len(points))
	ptc := make([]float64, len(points))
	tgt := make([]float64, len(points))
	drive := make([]float64, len(points))
	for i, p := range points {
		box[i], ptc[i], tgt[i] = p.Box, p.PTC, p.Target
		drive[i] = p.Heater - p.Fan
	}

	fmt.Println(asciigraph.PlotMany([][]float64{box, tgt},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("box temperature vs target (°C)"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(ptc,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("PTC temperature (°C)"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(drive,
		asciigraph.Height(6),
		asciigraph.Width(80),
		asciigraph.Caption("heater duty minus fan duty"),
	))
	return nil
}

func output() (*os.File, func() error, error) {
	if outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	return writeExport(func(st *storage.Store, f *os.File) error { return st.ExportCSV(f, args[0]) })
}

func exportJSON(cmd *cobra.Command, args []string) error {
	return writeExport(func(st *storage.Store, f *os.File) error { return st.ExportJSON(f, args[0]) })
}

func exportSVG(cmd *cobra.Command, args []string) error {
	return writeExport(func(st *storage.Store, f *os.File) error {
		points, err := st.LoadTrace(args[0])
		if err != nil {
			return err
		}
		svg := export.TraceToSVG(points, export.TemperatureSeries, 1000, 400)
		if svg == "" {
			return fmt.Errorf("no data to render")
		}
		_, err = f.WriteString(svg)
		return err
	})
}

func writeExport(write func(*storage.Store, *os.File) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, closeFn, err := output()
	if err != nil {
		return err
	}
	if err := write(storage.New(cfg.Storage.Dir), f); err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return err
	}
	if outFile != "" {
		fmt.Fprintf(os.Stderr, "exported to %s\n", outFile)
	}
	return nil
}
