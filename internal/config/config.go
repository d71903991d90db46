// Package config provides unified configuration loading for disim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains all disim configuration settings.
type Config struct {
	// Simulation contains the threshold model and experiment grid settings.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Output contains settings for where results are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig configures the bandwagon threshold experiment.
type SimulationConfig struct {
	// Direction selects which stratum seeds the bandwagon: "down" (core),
	// "up" (periphery), or "both" for one run in each direction.
	Direction string `json:"direction" yaml:"direction"`

	// Nodes is the total number of agents in each generated network.
	Nodes int `json:"nodes" yaml:"nodes"`

	// CoreRatio is the fraction of agents assigned to the fully connected
	// core, rounded to the nearest whole agent.
	CoreRatio float64 `json:"core_ratio" yaml:"core_ratio"`

	// Trials is the number of trials per case on the experiment grid.
	Trials int `json:"trials" yaml:"trials"`

	// TieInterval is the step between peripheral tie counts on the grid.
	TieInterval int `json:"tie_interval" yaml:"tie_interval"`

	// Sensitivities lists the bandwagon sensitivity values on the grid.
	Sensitivities []float64 `json:"sensitivities" yaml:"sensitivities"`

	// Mode selects how agents measure bandwagon pressure: "network"
	// (adopted neighbors) or "global" (all adopters).
	Mode string `json:"mode" yaml:"mode"`

	// Update controls when adoptions become visible within a cycle:
	// "synchronous" or "incremental".
	Update string `json:"update" yaml:"update"`

	// SeedRule controls how the seed agent starts the bandwagon: "forced"
	// or "assessed".
	SeedRule string `json:"seed_rule" yaml:"seed_rule"`

	// AssessMean is the mean of the normal distribution agents draw their
	// private profitability assessments from.
	AssessMean float64 `json:"assess_mean" yaml:"assess_mean"`

	// AssessStdDev is that distribution's standard deviation.
	AssessStdDev float64 `json:"assess_stddev" yaml:"assess_stddev"`

	// MaxCycles caps the diffusion cycles per trial. 0 runs each trial to
	// convergence.
	MaxCycles int `json:"max_cycles" yaml:"max_cycles"`

	// PressureProportion is the cross-segment neighborhood share that
	// makes an agent a boundary pressure point.
	PressureProportion float64 `json:"pressure_proportion" yaml:"pressure_proportion"`

	// Workers is the number of concurrent trial workers. 0 uses one per
	// CPU; results are identical either way.
	Workers int `json:"workers" yaml:"workers"`

	// Seed roots the rng seeds of every trial. 0 seeds from the clock;
	// set it explicitly for reproducible runs.
	Seed int64 `json:"seed" yaml:"seed"`
}

// OutputConfig configures where experiment results land.
type OutputConfig struct {
	// Dir is the output directory. Each direction writes its logs into a
	// Trickle-<direction>-Simulation subdirectory. Supports ${VAR} syntax
	// for env vars.
	Dir string `json:"dir" yaml:"dir"`

	// Database is the SQLite results database filename, created directly
	// under Dir and shared by all runs.
	Database string `json:"database" yaml:"database"`

	// CSV enables the classic per-trial and per-case CSV logs alongside
	// the database.
	CSV bool `json:"csv" yaml:"csv"`
}

// LoggingConfig configures disim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables trace logging to <output>/trace.jsonl.
	// "trace" additionally records every individual adoption.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the classic experiment defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Direction:          "down",
			Nodes:              31,
			CoreRatio:          1.0 / 3.0,
			Trials:             100,
			TieInterval:        5,
			Sensitivities:      []float64{1, 2, 3, 4, 5},
			Mode:               "network",
			Update:             "synchronous",
			SeedRule:           "forced",
			AssessMean:         -1.0,
			AssessStdDev:       1.0,
			MaxCycles:          0,
			PressureProportion: 0.5,
			Workers:            0,
			Seed:               0,
		},
		Output: OutputConfig{
			Dir:      ".",
			Database: "results.db",
			CSV:      true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.disim/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	// Try to load from default config file
	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".disim", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand environment variables in output paths
	config.Output.Dir = expandEnvVars(config.Output.Dir)
	config.Output.Database = expandEnvVars(config.Output.Database)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	validDirections := map[string]bool{"down": true, "up": true, "both": true}
	if !validDirections[c.Simulation.Direction] {
		return fmt.Errorf("invalid direction: %s (valid: down, up, both)", c.Simulation.Direction)
	}

	if c.Simulation.Nodes <= 0 {
		return fmt.Errorf("nodes must be positive, got %d", c.Simulation.Nodes)
	}
	if c.Simulation.CoreRatio < 0 || c.Simulation.CoreRatio > 1 {
		return fmt.Errorf("core_ratio must be between 0 and 1, got %v", c.Simulation.CoreRatio)
	}
	if c.Simulation.Trials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", c.Simulation.Trials)
	}
	if c.Simulation.TieInterval <= 0 {
		return fmt.Errorf("tie_interval must be positive, got %d", c.Simulation.TieInterval)
	}
	if len(c.Simulation.Sensitivities) == 0 {
		return fmt.Errorf("sensitivities must list at least one value")
	}
	for _, s := range c.Simulation.Sensitivities {
		if s < 0 {
			return fmt.Errorf("sensitivities must be non-negative, got %v", s)
		}
	}

	validModes := map[string]bool{"network": true, "global": true}
	if !validModes[c.Simulation.Mode] {
		return fmt.Errorf("invalid mode: %s (valid: network, global)", c.Simulation.Mode)
	}

	validUpdates := map[string]bool{"synchronous": true, "incremental": true}
	if !validUpdates[c.Simulation.Update] {
		return fmt.Errorf("invalid update: %s (valid: synchronous, incremental)", c.Simulation.Update)
	}

	validSeedRules := map[string]bool{"forced": true, "assessed": true}
	if !validSeedRules[c.Simulation.SeedRule] {
		return fmt.Errorf("invalid seed_rule: %s (valid: forced, assessed)", c.Simulation.SeedRule)
	}

	if c.Simulation.AssessStdDev < 0 {
		return fmt.Errorf("assess_stddev must be non-negative, got %v", c.Simulation.AssessStdDev)
	}
	if c.Simulation.MaxCycles < 0 {
		return fmt.Errorf("max_cycles must be non-negative, got %d", c.Simulation.MaxCycles)
	}
	if c.Simulation.PressureProportion <= 0 {
		return fmt.Errorf("pressure_proportion must be positive, got %v", c.Simulation.PressureProportion)
	}
	if c.Simulation.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Simulation.Workers)
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output dir must not be empty")
	}
	if c.Output.Database == "" {
		return fmt.Errorf("output database must not be empty")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DISIM_DIRECTION"); v != "" {
		config.Simulation.Direction = v
	}

	if v := os.Getenv("DISIM_NODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Nodes = n
		}
	}
	if v := os.Getenv("DISIM_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Trials = n
		}
	}
	if v := os.Getenv("DISIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Workers = n
		}
	}
	if v := os.Getenv("DISIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Simulation.Seed = n
		}
	}
	if v := os.Getenv("DISIM_MODE"); v != "" {
		config.Simulation.Mode = v
	}

	if v := os.Getenv("DISIM_OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}

	if v := os.Getenv("DISIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
