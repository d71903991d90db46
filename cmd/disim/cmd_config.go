package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ckirkos/disim/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage disim configuration",
		Long: `View and modify disim configuration settings.

Configuration is stored in ~/.disim/config.yaml.

Examples:
  disim config list                          # Show all settings
  disim config get simulation.nodes          # Get a specific setting
  disim config set simulation.trials 500     # Set a setting
  disim config set simulation.direction both`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (~/.disim/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Simulation Settings:")
			fmt.Fprintf(out, "  simulation.direction:            %s\n", cfg.Simulation.Direction)
			fmt.Fprintf(out, "  simulation.nodes:                %d\n", cfg.Simulation.Nodes)
			fmt.Fprintf(out, "  simulation.core_ratio:           %g\n", cfg.Simulation.CoreRatio)
			fmt.Fprintf(out, "  simulation.trials:               %d\n", cfg.Simulation.Trials)
			fmt.Fprintf(out, "  simulation.tie_interval:         %d\n", cfg.Simulation.TieInterval)
			fmt.Fprintf(out, "  simulation.sensitivities:        %s\n", formatSensitivities(cfg.Simulation.Sensitivities))
			fmt.Fprintf(out, "  simulation.mode:                 %s\n", cfg.Simulation.Mode)
			fmt.Fprintf(out, "  simulation.update:               %s\n", cfg.Simulation.Update)
			fmt.Fprintf(out, "  simulation.seed_rule:            %s\n", cfg.Simulation.SeedRule)
			fmt.Fprintf(out, "  simulation.assess_mean:          %g\n", cfg.Simulation.AssessMean)
			fmt.Fprintf(out, "  simulation.assess_stddev:        %g\n", cfg.Simulation.AssessStdDev)
			fmt.Fprintf(out, "  simulation.max_cycles:           %d\n", cfg.Simulation.MaxCycles)
			fmt.Fprintf(out, "  simulation.pressure_proportion:  %g\n", cfg.Simulation.PressureProportion)
			fmt.Fprintf(out, "  simulation.workers:              %d\n", cfg.Simulation.Workers)
			fmt.Fprintf(out, "  simulation.seed:                 %d\n", cfg.Simulation.Seed)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Output Settings:")
			fmt.Fprintf(out, "  output.dir:       %s\n", cfg.Output.Dir)
			fmt.Fprintf(out, "  output.database:  %s\n", cfg.Output.Database)
			fmt.Fprintf(out, "  output.csv:       %v\n", cfg.Output.CSV)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging Settings:")
			fmt.Fprintf(out, "  logging.level:  %s\n", cfg.Logging.Level)

			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonOut {
					json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"error": "key not found",
						"key":   key,
					})
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Unknown configuration key: %s\n", key)
				}
				return nil
			}

			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			}

			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			value := args[1]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				if jsonOut {
					json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"error": err.Error(),
						"key":   key,
					})
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
				}
				return nil
			}

			// Catch cross-field problems before persisting
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("refusing to save invalid config: %w", err)
			}

			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			}

			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (any, bool) {
	switch key {
	case "simulation.direction":
		return cfg.Simulation.Direction, true
	case "simulation.nodes":
		return cfg.Simulation.Nodes, true
	case "simulation.core_ratio":
		return cfg.Simulation.CoreRatio, true
	case "simulation.trials":
		return cfg.Simulation.Trials, true
	case "simulation.tie_interval":
		return cfg.Simulation.TieInterval, true
	case "simulation.sensitivities":
		return formatSensitivities(cfg.Simulation.Sensitivities), true
	case "simulation.mode":
		return cfg.Simulation.Mode, true
	case "simulation.update":
		return cfg.Simulation.Update, true
	case "simulation.seed_rule":
		return cfg.Simulation.SeedRule, true
	case "simulation.assess_mean":
		return cfg.Simulation.AssessMean, true
	case "simulation.assess_stddev":
		return cfg.Simulation.AssessStdDev, true
	case "simulation.max_cycles":
		return cfg.Simulation.MaxCycles, true
	case "simulation.pressure_proportion":
		return cfg.Simulation.PressureProportion, true
	case "simulation.workers":
		return cfg.Simulation.Workers, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "output.dir":
		return cfg.Output.Dir, true
	case "output.database":
		return cfg.Output.Database, true
	case "output.csv":
		return cfg.Output.CSV, true
	case "logging.level":
		return cfg.Logging.Level, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "simulation.direction":
		cfg.Simulation.Direction = value
	case "simulation.nodes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid node count: %s", value)
		}
		cfg.Simulation.Nodes = n
	case "simulation.core_ratio":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid ratio: %s", value)
		}
		cfg.Simulation.CoreRatio = f
	case "simulation.trials":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid trial count: %s", value)
		}
		cfg.Simulation.Trials = n
	case "simulation.tie_interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid interval: %s", value)
		}
		cfg.Simulation.TieInterval = n
	case "simulation.sensitivities":
		vals, err := parseSensitivities(value)
		if err != nil {
			return err
		}
		cfg.Simulation.Sensitivities = vals
	case "simulation.mode":
		cfg.Simulation.Mode = value
	case "simulation.update":
		cfg.Simulation.Update = value
	case "simulation.seed_rule":
		cfg.Simulation.SeedRule = value
	case "simulation.assess_mean":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid mean: %s", value)
		}
		cfg.Simulation.AssessMean = f
	case "simulation.assess_stddev":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid stddev: %s", value)
		}
		cfg.Simulation.AssessStdDev = f
	case "simulation.max_cycles":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid cycle cap: %s", value)
		}
		cfg.Simulation.MaxCycles = n
	case "simulation.pressure_proportion":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid proportion: %s", value)
		}
		cfg.Simulation.PressureProportion = f
	case "simulation.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid worker count: %s", value)
		}
		cfg.Simulation.Workers = n
	case "simulation.seed":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %s", value)
		}
		cfg.Simulation.Seed = n
	case "output.dir":
		cfg.Output.Dir = value
	case "output.database":
		cfg.Output.Database = value
	case "output.csv":
		cfg.Output.CSV = value == "true" || value == "1"
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// saveConfig writes the configuration to ~/.disim/config.yaml.
func saveConfig(cfg *config.Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	disimDir := filepath.Join(homeDir, ".disim")
	if err := os.MkdirAll(disimDir, 0700); err != nil {
		return fmt.Errorf("failed to create .disim directory: %w", err)
	}

	configPath := filepath.Join(disimDir, "config.yaml")
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// formatSensitivities renders a sensitivity list as "1,2,3".
func formatSensitivities(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// parseSensitivities parses a comma-separated sensitivity list.
func parseSensitivities(s string) ([]float64, error) {
	var vals []float64
	for _, part := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid sensitivity list: %s", s)
		}
		vals = append(vals, f)
	}
	return vals, nil
}
