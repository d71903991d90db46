package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ckirkos/disim/internal/experiment"
	"github.com/ckirkos/disim/internal/results"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded simulation runs",
		Long: `List and inspect runs recorded in the results database.

Examples:
  disim runs list
  disim runs show 4f6b        # any unique run ID prefix works`,
	}

	cmd.PersistentFlags().String("database", "", "Results database path (default from config)")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
	)

	return cmd
}

// openRunsStore opens the results database for inspection.
func openRunsStore(cmd *cobra.Command) (*results.Store, error) {
	dbPath, _ := cmd.Flags().GetString("database")
	if dbPath == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		dbPath = filepath.Join(cfg.Output.Dir, cfg.Output.Database)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no results database at %s (run 'disim simulate' first)", dbPath)
	}

	return results.Open(dbPath)
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRunsStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet. Run 'disim simulate' first.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded runs (%d):\n\n", len(runs))
			for i, run := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. [%s] %s\n", i+1, run.Direction, run.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "   Network: %d nodes (%d core), %d trials/case, seed %d\n",
					run.Nodes, run.CoreNodes, run.Trials, run.BaseSeed)
				fmt.Fprintf(cmd.OutOrStdout(), "   Started: %s\n", run.Started.Local().Format("2006-01-02 15:04:05"))
				if run.Finished.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), "   Status:  unfinished")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "   Cases: %d, trials: %d (%d failed), elapsed: %s\n",
						run.Cases, run.TrialsRun, run.TrialsFailed, run.Elapsed.Round(time.Millisecond))
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's case aggregates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRunsStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			run, err := findRun(ctx, store, args[0])
			if err != nil {
				return err
			}

			cases, err := store.RunCases(ctx, run.ID)
			if err != nil {
				return err
			}

			showTrials, _ := cmd.Flags().GetBool("trials")
			var trials []experiment.TrialRecord
			if showTrials {
				trials, err = store.RunTrials(ctx, run.ID)
				if err != nil {
					return err
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				payload := map[string]any{
					"run":   run,
					"cases": cases,
				}
				if showTrials {
					payload["trials"] = trials
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(payload)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Trickle-%s run %s\n", run.Direction, run.ID)
			fmt.Fprintf(out, "Network: %d nodes (%d core), %d trials/case, seed %d\n\n",
				run.Nodes, run.CoreNodes, run.Trials, run.BaseSeed)

			if len(cases) == 0 {
				fmt.Fprintln(out, "No case aggregates recorded.")
				return nil
			}

			fmt.Fprintf(out, "%8s  %11s  %8s  %10s  %8s\n",
				"ties", "sensitivity", "density", "periphery", "core")
			for _, c := range cases {
				fmt.Fprintf(out, "%8d  %11g  %8.4f  %10.4f  %8.4f\n",
					c.PeripheryTies, c.Sensitivity, c.PeripheralDensity,
					c.PeripheralDiffusion, c.CoreDiffusion)
			}

			if showTrials && len(trials) > 0 {
				fmt.Fprintf(out, "\n%8s  %11s  %5s  %5s  %9s  %6s  %s\n",
					"ties", "sensitivity", "trial", "seed", "adopters", "cycles", "outcome")
				for _, tr := range trials {
					fmt.Fprintf(out, "%8d  %11g  %5d  %5d  %4d/%-4d  %6d  %s\n",
						tr.PeripheryTies, tr.Sensitivity, tr.Trial, tr.SeedID,
						tr.CoreAdopters+tr.PeripheryAdopters, tr.CoreNodes+tr.PeripheryNodes,
						tr.Cycles, tr.Outcome)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("trials", false, "Include individual trial records")

	return cmd
}

// findRun resolves a run by exact ID or unique prefix.
func findRun(ctx context.Context, store *results.Store, id string) (*results.RunInfo, error) {
	run, err := store.GetRun(ctx, id)
	if err == nil {
		return run, nil
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	var matches []results.RunInfo
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run %s not found", id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("run ID prefix %s is ambiguous (%d matches)", id, len(matches))
	}
}
