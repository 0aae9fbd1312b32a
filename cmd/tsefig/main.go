package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/config"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/pipeline"
)

var (
	// Flags
	configPath   string
	outputPath   string
	resolution   int
	workers      int
	intermediary bool
	verbose      bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd runs every variant and writes the figure
var rootCmd = &cobra.Command{
	Use:   "tsefig",
	Short: "Simulate the Turbo Spin Echo artifact figure",
	Long: `tsefig builds five variants of a single-shot Turbo Spin Echo sequence,
simulates each on a numerical brain phantom, reconstructs the images and
writes a 2x5 figure: magnitude images on top, log k-space below.

The variants show the N/2 ghost of missing RF phase cycling, its repair by
alternating the receiver phase, the stimulated-echo artifact of missing
readout spoilers, the contrast change of centric ordering, and the
correct reference.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd)

		zc := zap.NewProductionConfig()
		if verbose || cfg.Output.Verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runFigure,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInitConfig,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build the sequences and report their timing without simulating",
	RunE:  runCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tsefig.yaml", "Configuration file")
	rootCmd.PersistentFlags().IntVarP(&resolution, "resolution", "n", 0, "Override the resolution of every variant")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Figure path (.png or .jpg)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of simulation workers (default: all cores)")
	rootCmd.Flags().BoolVar(&intermediary, "intermediary", false, "Save each variant's image and k-space")

	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// applyFlags lets explicitly set flags override the configuration.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("resolution") {
		cfg.SetResolution(resolution)
	}
	if flags.Changed("output") {
		cfg.Output.Figure = outputPath
	}
	if flags.Changed("workers") {
		cfg.Simulation.Workers = workers
	}
	if flags.Changed("intermediary") {
		cfg.Output.SaveIntermediaryResults = intermediary
	}
}

func runFigure(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("================================")
	fmt.Println("TURBO SPIN ECHO ARTIFACTS")
	fmt.Println("Simulated single-shot TSE with five sequence variants")
	fmt.Println("================================")

	runner := pipeline.NewRunner(cfg, pipeline.WithLogger(logger))

	startTime := time.Now()
	results, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("figure generation failed: %w", err)
	}
	if err := runner.Figure(results).Save(cfg.Output.Figure); err != nil {
		return fmt.Errorf("failed to save figure: %w", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nFigure completed in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Saved to: %s\n\n", cfg.Output.Figure)

	fmt.Println("Artifact metrics:")
	fmt.Println("=================")
	for _, r := range results {
		m := r.Metrics
		fmt.Printf("%s %-20s peak (%d, %d)  ghost %.3f  k-space HF %.3f  TE %.1f ms\n",
			r.Params.Label, r.Params.Name, m.PeakRow, m.PeakCol,
			m.GhostFraction, m.KSpaceHighFrequency, r.Build.Timing.Effective*1e3)
	}

	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", cfg.Output.IntermediaryDir)
	}
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.CreateDefaultConfigFile(path); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", path)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	runner := pipeline.NewRunner(cfg, pipeline.WithLogger(logger))

	failed := false
	for _, p := range cfg.VariantParams() {
		res, err := runner.Check(p)
		if err != nil {
			return err
		}
		status := "ok"
		if len(res.Violations) > 0 {
			status = fmt.Sprintf("%d timing violations", len(res.Violations))
			failed = true
		}
		clamped := ""
		if res.Timing.Clamped {
			clamped = " (clamped)"
		}
		fmt.Printf("%s %-20s %4d blocks  %8.3f s  TE %.1f ms%s  %s\n",
			p.Label, p.Name, len(res.Sequence.Blocks()), res.Sequence.Duration(),
			res.Timing.Effective*1e3, clamped, status)
		for _, v := range res.Violations {
			fmt.Printf("    %s\n", v)
		}
	}
	if failed {
		fmt.Println("\nTiming check found violations; the figure can still be generated.")
	}
	return nil
}
