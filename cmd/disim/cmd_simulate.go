package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ckirkos/disim/internal/config"
	"github.com/ckirkos/disim/internal/diffusion"
	"github.com/ckirkos/disim/internal/experiment"
	"github.com/ckirkos/disim/internal/logging"
	"github.com/ckirkos/disim/internal/results"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the bandwagon diffusion experiment",
		Long: `Run the bandwagon threshold experiment across the peripheral-tie and
sensitivity grid.

Each (ties, sensitivity) case runs a batch of trials on freshly generated
core/periphery networks. Results land in the output directory: CSV logs
under a Trickle-<direction>-Simulation/ subdirectory per direction, plus a
shared SQLite database for querying runs later.

Examples:
  disim simulate                       # trickle-down with classic defaults
  disim simulate -d both --seed 1      # reproducible runs, both directions
  disim simulate -n 61 -t 500          # bigger network, more trials`,
		RunE: runSimulate,
	}

	cmd.Flags().StringP("direction", "d", "", "Trickle direction: down, up, or both")
	cmd.Flags().IntP("nodes", "n", 0, "Total agents per network")
	cmd.Flags().IntP("trials", "t", 0, "Trials per grid case")
	cmd.Flags().StringP("output-dir", "o", "", "Output directory")
	cmd.Flags().Int64("seed", 0, "Base random seed (0 seeds from the clock)")
	cmd.Flags().Int("workers", 0, "Concurrent trial workers (0 = one per CPU)")
	cmd.Flags().String("mode", "", "Pressure mode: network or global")
	cmd.Flags().Int("max-cycles", 0, "Cycle cap per trial (0 = run to convergence)")
	cmd.Flags().String("log-level", "", "Log level: info, debug, or trace")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	params, err := experiment.ParamsFromConfig(cfg)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	// Cancel the run on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("interrupted, stopping run")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	store, err := results.Open(filepath.Join(cfg.Output.Dir, cfg.Output.Database))
	if err != nil {
		return err
	}
	defer store.Close()

	// "both" replays the original pair of experiments, trickle-up first
	var directions []diffusion.Direction
	if cfg.Simulation.Direction == "both" {
		directions = []diffusion.Direction{diffusion.TrickleUp, diffusion.TrickleDown}
	} else {
		dir, err := diffusion.ParseDirection(cfg.Simulation.Direction)
		if err != nil {
			return err
		}
		directions = []diffusion.Direction{dir}
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	var summaries []experiment.Summary
	for _, dir := range directions {
		sum, err := simulateDirection(ctx, cfg, params, dir, store, logger)
		if err != nil {
			return err
		}
		summaries = append(summaries, sum)

		if !jsonOut {
			printSummary(cmd, sum)
		}
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"database": store.Path(),
			"runs":     summaries,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Results database: %s\n", store.Path())
	return nil
}

// simulateDirection sweeps the grid in one direction, logging into that
// direction's run directory.
func simulateDirection(ctx context.Context, cfg *config.Config, params experiment.Params, dir diffusion.Direction, store *results.Store, logger *slog.Logger) (experiment.Summary, error) {
	runDir := filepath.Join(cfg.Output.Dir, fmt.Sprintf("Trickle-%s-Simulation", dir))

	trace := logging.NewTraceLogger(runDir, cfg.Logging.Level)
	defer trace.Close()

	sinks := []experiment.Sink{store}
	if cfg.Output.CSV {
		csvLogs := results.NewCSVLogs(runDir)
		defer csvLogs.Close()
		sinks = append(sinks, csvLogs)
	}

	driver := experiment.NewDriver(params, results.NewMultiSink(sinks...), logger)
	driver.SetTrace(trace)

	return driver.Run(ctx, dir)
}

// applyFlagOverrides lays explicitly set command-line flags over cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("direction") {
		cfg.Simulation.Direction, _ = flags.GetString("direction")
	}
	if flags.Changed("nodes") {
		cfg.Simulation.Nodes, _ = flags.GetInt("nodes")
	}
	if flags.Changed("trials") {
		cfg.Simulation.Trials, _ = flags.GetInt("trials")
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("workers") {
		cfg.Simulation.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("mode") {
		cfg.Simulation.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("max-cycles") {
		cfg.Simulation.MaxCycles, _ = flags.GetInt("max-cycles")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
}

func printSummary(cmd *cobra.Command, sum experiment.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trickle-%s run %s\n", sum.Direction, sum.RunID)
	fmt.Fprintf(out, "  cases:         %d\n", sum.Cases)
	fmt.Fprintf(out, "  trials run:    %d\n", sum.TrialsRun)
	if sum.TrialsFailed > 0 {
		fmt.Fprintf(out, "  trials failed: %d\n", sum.TrialsFailed)
	}
	fmt.Fprintf(out, "  elapsed:       %s\n", sum.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(out)
}
