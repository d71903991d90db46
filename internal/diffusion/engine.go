// Package diffusion implements the bandwagon threshold model of innovation
// adoption. Each agent privately assesses the innovation's profitability and
// adds the ambient bandwagon pressure, weighted by its sensitivity; it adopts
// once the combined score turns positive. Trials iterate diffusion cycles
// until a full cycle passes with no new adopter.
package diffusion

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/ckirkos/disim/internal/network"
)

// Mode selects how an agent measures bandwagon pressure.
type Mode string

const (
	// ModeNetwork counts only adopted neighbors: pressure travels along
	// ties, so poorly connected agents feel little of it.
	ModeNetwork Mode = "network"
	// ModeGlobal counts every adopter in the population regardless of
	// ties, as if adoption counts were public knowledge.
	ModeGlobal Mode = "global"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "network":
		return ModeNetwork, nil
	case "global":
		return ModeGlobal, nil
	default:
		return "", fmt.Errorf("invalid mode %q (valid: network, global)", s)
	}
}

// UpdateRule controls when adoptions become visible to other agents.
type UpdateRule string

const (
	// UpdateSynchronous evaluates every agent against the previous
	// cycle's adoption state, so order within a cycle does not matter.
	UpdateSynchronous UpdateRule = "synchronous"
	// UpdateIncremental applies each adoption immediately: agents later
	// in the cycle's shuffled evaluation order see it right away, which
	// lets a bandwagon race through the population within one cycle.
	UpdateIncremental UpdateRule = "incremental"
)

// ParseUpdateRule converts a string into an UpdateRule.
func ParseUpdateRule(s string) (UpdateRule, error) {
	switch strings.ToLower(s) {
	case "synchronous":
		return UpdateSynchronous, nil
	case "incremental":
		return UpdateIncremental, nil
	default:
		return "", fmt.Errorf("invalid update rule %q (valid: synchronous, incremental)", s)
	}
}

// SeedRule controls how the seed agent starts the bandwagon.
type SeedRule string

const (
	// SeedForced marks the seed agent adopted at cycle 0 unconditionally,
	// modelling an exogenous first adopter.
	SeedForced SeedRule = "forced"
	// SeedAssessed puts the seed agent through the threshold test at
	// cycle 0 with zero pressure; a pessimistic seed leaves the trial
	// with no adopters at all.
	SeedAssessed SeedRule = "assessed"
)

// ParseSeedRule converts a string into a SeedRule.
func ParseSeedRule(s string) (SeedRule, error) {
	switch strings.ToLower(s) {
	case "forced":
		return SeedForced, nil
	case "assessed":
		return SeedAssessed, nil
	default:
		return "", fmt.Errorf("invalid seed rule %q (valid: forced, assessed)", s)
	}
}

// Config holds the tunable parameters of the threshold model.
type Config struct {
	// Direction selects the stratum the seed adopter is drawn from.
	// Default: down (core-seeded).
	Direction Direction

	// Mode selects how bandwagon pressure is measured. Default: network.
	Mode Mode

	// Update controls when adoptions become visible within a cycle.
	// Default: synchronous.
	Update UpdateRule

	// Seed controls whether the seed agent adopts unconditionally or is
	// assessed like everyone else. Default: forced.
	Seed SeedRule

	// Sensitivity is the pressure weight shared by every agent in a
	// trial. Default: 1.
	Sensitivity float64

	// AssessMean is the mean of the normal distribution agents draw
	// their private assessments from. Default: -1.
	AssessMean float64

	// AssessStdDev is that distribution's standard deviation. Default: 1.
	AssessStdDev float64

	// MaxCycles caps the number of diffusion cycles per trial. 0 means
	// run until convergence, which adoption monotonicity guarantees.
	MaxCycles int
}

// DefaultConfig returns the classic model parameters: a core-seeded
// networked bandwagon with assessments drawn from Normal(-1, 1).
func DefaultConfig() Config {
	return Config{
		Direction:    TrickleDown,
		Mode:         ModeNetwork,
		Update:       UpdateSynchronous,
		Seed:         SeedForced,
		Sensitivity:  1,
		AssessMean:   -1.0,
		AssessStdDev: 1.0,
	}
}

// Validate checks the configuration for values the model cannot run with.
func (c Config) Validate() error {
	if _, err := ParseDirection(string(c.Direction)); err != nil {
		return err
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if _, err := ParseUpdateRule(string(c.Update)); err != nil {
		return err
	}
	if _, err := ParseSeedRule(string(c.Seed)); err != nil {
		return err
	}
	if c.Sensitivity < 0 {
		return fmt.Errorf("sensitivity must be non-negative, got %v", c.Sensitivity)
	}
	if c.AssessStdDev < 0 {
		return fmt.Errorf("assessment standard deviation must be non-negative, got %v", c.AssessStdDev)
	}
	if c.MaxCycles < 0 {
		return fmt.Errorf("max cycles must be non-negative, got %d", c.MaxCycles)
	}
	return nil
}

// AdoptionFunc observes a single adoption as it happens. The score is the
// agent's threshold score at the moment of adoption.
type AdoptionFunc func(cycle, agentID int, pressure, score float64)

// Engine runs bandwagon trials. The engine holds no per-trial state: all of
// it lives in the network passed to RunTrial, so a single engine may be
// shared across goroutines as long as each call gets its own network and
// rng. The adoption hook, if set, must be safe for concurrent use.
type Engine struct {
	config  Config
	onAdopt AdoptionFunc
}

// NewEngine creates an engine with the given configuration.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// OnAdoption registers a hook invoked for every adoption, including the
// seed's.
func (e *Engine) OnAdoption(fn AdoptionFunc) {
	e.onAdopt = fn
}

// RunTrial seeds one bandwagon in net and iterates diffusion cycles until no
// agent changes state or the cycle cap is reached. Assessments and the seed
// choice are drawn from rng, so an identical rng state reproduces the trial
// exactly. The network is left in its final adoption state.
func (e *Engine) RunTrial(ctx context.Context, net *network.Network, rng *rand.Rand) (*Trial, error) {
	if net.Len() == 0 {
		return nil, fmt.Errorf("cannot run a trial on an empty network")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := net.Len()

	// Step 1: draw each agent's private assessment for this trial.
	for i := 0; i < total; i++ {
		ag := net.Agent(i)
		ag.Assessment = e.config.AssessMean + e.config.AssessStdDev*rng.NormFloat64()
		ag.Sensitivity = e.config.Sensitivity
	}

	// Step 2: pick the seed from the direction's focal stratum. A network
	// with nobody there falls back to the whole population.
	candidates := net.Members(e.config.Direction.FocalSegment())
	if len(candidates) == 0 {
		candidates = make([]int, total)
		for i := range candidates {
			candidates[i] = i
		}
	}
	seedID := candidates[rng.Intn(len(candidates))]

	// Step 3: cycle 0, seeding.
	if e.config.Seed == SeedAssessed {
		if net.Agent(seedID).Score(0) > 0 {
			e.adopt(net, seedID, 0, nil, 0)
		}
	} else {
		e.adopt(net, seedID, 0, nil, 0)
	}

	trial := &Trial{
		SeedID:  seedID,
		Outcome: OutcomeConverged,
		Curve:   []int{net.Adopters()},
	}

	// Step 4: iterate diffusion cycles. Adoption is monotone, so a cycle
	// without a new adopter means no later cycle can have one.
	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if net.Adopters() == total {
			break
		}
		if e.config.MaxCycles > 0 && cycle > e.config.MaxCycles {
			trial.Outcome = OutcomeCycleLimit
			break
		}

		var adoptions int
		if e.config.Update == UpdateIncremental {
			adoptions = e.incrementalCycle(net, cycle, rng)
		} else {
			adoptions = e.synchronousCycle(net, cycle)
		}
		if adoptions == 0 {
			break
		}
		trial.Cycles = cycle
		trial.Curve = append(trial.Curve, net.Adopters())
	}

	trial.CoreAdopters = net.SegmentAdopters(network.SegmentCore)
	trial.PeripheryAdopters = net.SegmentAdopters(network.SegmentPeriphery)
	return trial, nil
}

// synchronousCycle evaluates every non-adopted agent against the state left
// by the previous cycle, then applies all adoptions at once.
func (e *Engine) synchronousCycle(net *network.Network, cycle int) int {
	total := net.Len()
	adopters := net.Adopters()

	type adoption struct {
		id        int
		pressure  float64
		influence []int
	}
	var pending []adoption
	for i := 0; i < total; i++ {
		ag := net.Agent(i)
		if ag.Adopted {
			continue
		}
		influence := net.AdoptedNeighbors(i)
		pressure := e.pressure(len(influence), adopters, total)
		if ag.Score(pressure) > 0 {
			pending = append(pending, adoption{id: i, pressure: pressure, influence: influence})
		}
	}
	for _, p := range pending {
		e.adopt(net, p.id, cycle, p.influence, p.pressure)
	}
	return len(pending)
}

// incrementalCycle visits the non-adopted agents in a fresh random order and
// applies each adoption immediately, so later agents in the same cycle feel
// the extra pressure.
func (e *Engine) incrementalCycle(net *network.Network, cycle int, rng *rand.Rand) int {
	total := net.Len()
	var waiting []int
	for i := 0; i < total; i++ {
		if !net.Agent(i).Adopted {
			waiting = append(waiting, i)
		}
	}
	rng.Shuffle(len(waiting), func(i, j int) {
		waiting[i], waiting[j] = waiting[j], waiting[i]
	})

	adoptions := 0
	for _, id := range waiting {
		influence := net.AdoptedNeighbors(id)
		pressure := e.pressure(len(influence), net.Adopters(), total)
		if net.Agent(id).Score(pressure) > 0 {
			e.adopt(net, id, cycle, influence, pressure)
			adoptions++
		}
	}
	return adoptions
}

// pressure computes the bandwagon pressure felt by one agent. The
// denominator is the full population size in both modes.
func (e *Engine) pressure(adoptedNeighbors, totalAdopters, total int) float64 {
	if e.config.Mode == ModeGlobal {
		return float64(totalAdopters) / float64(total)
	}
	return float64(adoptedNeighbors) / float64(total)
}

func (e *Engine) adopt(net *network.Network, id, cycle int, influence []int, pressure float64) {
	ag := net.Agent(id)
	ag.Adopt(cycle, influence)
	if e.onAdopt != nil {
		e.onAdopt(cycle, id, pressure, ag.Score(pressure))
	}
}
