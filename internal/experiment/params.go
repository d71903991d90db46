package experiment

import (
	"fmt"
	"math"
	"runtime"

	"github.com/ckirkos/disim/internal/boundary"
	"github.com/ckirkos/disim/internal/config"
	"github.com/ckirkos/disim/internal/diffusion"
)

// Params fixes everything about an experiment run except the trickle
// direction, which Driver.Run takes per run.
type Params struct {
	// Nodes is the total number of agents per network.
	Nodes int `json:"nodes"`

	// CoreRatio is the fraction of agents assigned to the core, rounded
	// to the nearest whole agent.
	CoreRatio float64 `json:"core_ratio"`

	// Trials is the number of trials per case.
	Trials int `json:"trials"`

	// TieInterval is the step between peripheral tie counts on the case
	// grid, which runs from 0 up to (excluding) the network's peripheral
	// tie capacity.
	TieInterval int `json:"tie_interval"`

	// Sensitivities lists the bandwagon sensitivity values on the grid.
	Sensitivities []float64 `json:"sensitivities"`

	// Mode, Update and SeedRule configure the threshold model.
	Mode     diffusion.Mode       `json:"mode"`
	Update   diffusion.UpdateRule `json:"update"`
	SeedRule diffusion.SeedRule   `json:"seed_rule"`

	// AssessMean and AssessStdDev parameterize the normal distribution
	// agents draw their private assessments from.
	AssessMean   float64 `json:"assess_mean"`
	AssessStdDev float64 `json:"assess_stddev"`

	// MaxCycles caps each trial. 0 means run to convergence.
	MaxCycles int `json:"max_cycles"`

	// Proportion is the cross-segment neighborhood share that makes an
	// agent a boundary pressure point.
	Proportion float64 `json:"pressure_proportion"`

	// Workers is the number of concurrent trial workers. 0 uses one per
	// CPU. Results are identical regardless of worker count.
	Workers int `json:"workers"`

	// BaseSeed roots every trial's rng seed. 0 seeds from the clock, so
	// set it explicitly for reproducible runs.
	BaseSeed int64 `json:"seed"`
}

// DefaultParams returns the classic experiment setup: 31 agents with a
// third in the core, 100 trials per case, peripheral ties stepped by 5, and
// sensitivities 1 through 5.
func DefaultParams() Params {
	return Params{
		Nodes:         31,
		CoreRatio:     1.0 / 3.0,
		Trials:        100,
		TieInterval:   5,
		Sensitivities: []float64{1, 2, 3, 4, 5},
		Mode:          diffusion.ModeNetwork,
		Update:        diffusion.UpdateSynchronous,
		SeedRule:      diffusion.SeedForced,
		AssessMean:    -1.0,
		AssessStdDev:  1.0,
		Proportion:    boundary.DefaultProportion,
	}
}

// ParamsFromConfig maps a loaded configuration onto experiment parameters,
// parsing the model rule names.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	sim := cfg.Simulation
	mode, err := diffusion.ParseMode(sim.Mode)
	if err != nil {
		return Params{}, err
	}
	update, err := diffusion.ParseUpdateRule(sim.Update)
	if err != nil {
		return Params{}, err
	}
	seedRule, err := diffusion.ParseSeedRule(sim.SeedRule)
	if err != nil {
		return Params{}, err
	}

	return Params{
		Nodes:         sim.Nodes,
		CoreRatio:     sim.CoreRatio,
		Trials:        sim.Trials,
		TieInterval:   sim.TieInterval,
		Sensitivities: sim.Sensitivities,
		Mode:          mode,
		Update:        update,
		SeedRule:      seedRule,
		AssessMean:    sim.AssessMean,
		AssessStdDev:  sim.AssessStdDev,
		MaxCycles:     sim.MaxCycles,
		Proportion:    sim.PressureProportion,
		Workers:       sim.Workers,
		BaseSeed:      sim.Seed,
	}, nil
}

// Validate checks the parameters before a run starts. The driver fails fast
// rather than discovering bad sizing mid-sweep.
func (p Params) Validate() error {
	if p.Nodes <= 0 {
		return fmt.Errorf("nodes must be positive, got %d", p.Nodes)
	}
	if p.CoreRatio < 0 || p.CoreRatio > 1 {
		return fmt.Errorf("core ratio must be within [0, 1], got %v", p.CoreRatio)
	}
	if p.Trials <= 0 {
		return fmt.Errorf("trials must be positive, got %d", p.Trials)
	}
	if p.TieInterval <= 0 {
		return fmt.Errorf("tie interval must be positive, got %d", p.TieInterval)
	}
	if len(p.Sensitivities) == 0 {
		return fmt.Errorf("at least one sensitivity value is required")
	}
	for _, s := range p.Sensitivities {
		if s < 0 {
			return fmt.Errorf("sensitivities must be non-negative, got %v", s)
		}
	}
	if _, err := diffusion.ParseMode(string(p.Mode)); err != nil {
		return err
	}
	if _, err := diffusion.ParseUpdateRule(string(p.Update)); err != nil {
		return err
	}
	if _, err := diffusion.ParseSeedRule(string(p.SeedRule)); err != nil {
		return err
	}
	if p.AssessStdDev < 0 {
		return fmt.Errorf("assessment standard deviation must be non-negative, got %v", p.AssessStdDev)
	}
	if p.MaxCycles < 0 {
		return fmt.Errorf("max cycles must be non-negative, got %d", p.MaxCycles)
	}
	if p.Proportion <= 0 {
		return fmt.Errorf("pressure proportion must be positive, got %v", p.Proportion)
	}
	if p.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", p.Workers)
	}
	return nil
}

// coreNodes resolves the core size from the node count and core ratio.
func (p Params) coreNodes() int {
	return int(math.Round(float64(p.Nodes) * p.CoreRatio))
}

// workers resolves the worker pool size.
func (p Params) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.NumCPU()
}
