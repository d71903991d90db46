// Package experiment sweeps the bandwagon threshold model across a grid of
// network density and sensitivity cases, running repeated trials per case
// and streaming per-trial and per-case results to a Sink.
package experiment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ckirkos/disim/internal/boundary"
	"github.com/ckirkos/disim/internal/diffusion"
	"github.com/ckirkos/disim/internal/logging"
	"github.com/ckirkos/disim/internal/network"
	"github.com/ckirkos/disim/internal/stats"
)

// caseSpec pins one cell of the case grid.
type caseSpec struct {
	direction   diffusion.Direction
	pties       int
	sensitivity float64
	coreNodes   int
	periphNodes int
}

// Driver runs the experiment for one trickle direction at a time. Trials
// within a case execute on a worker pool; every trial derives its own rng
// seed from the base seed, so results do not depend on the worker count.
type Driver struct {
	params Params
	sink   Sink
	logger *slog.Logger
	trace  *logging.TraceLogger

	// trialFn runs a single trial. It exists so tests can inject
	// failures; NewDriver points it at runTrial.
	trialFn func(ctx context.Context, spec caseSpec, trial int, seed int64) (TrialRecord, error)
}

// NewDriver creates a driver streaming to sink. A nil logger discards
// operational output.
func NewDriver(params Params, sink Sink, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Driver{params: params, sink: sink, logger: logger}
	d.trialFn = d.runTrial
	return d
}

// SetTrace attaches a trace logger recording trial and adoption events.
func (d *Driver) SetTrace(trace *logging.TraceLogger) {
	d.trace = trace
}

// Run sweeps the full case grid for direction and returns the run summary.
// Individual trial failures are logged and counted but do not stop the
// sweep; sink errors and context cancellation do.
func (d *Driver) Run(ctx context.Context, direction diffusion.Direction) (Summary, error) {
	if _, err := diffusion.ParseDirection(string(direction)); err != nil {
		return Summary{}, err
	}
	if err := d.params.Validate(); err != nil {
		return Summary{}, err
	}

	p := d.params
	coreNodes := p.coreNodes()
	periphNodes := p.Nodes - coreNodes
	counts, err := stats.PossibleTies(p.Nodes, coreNodes)
	if err != nil {
		return Summary{}, err
	}

	baseSeed := p.BaseSeed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	run := RunMeta{
		ID:        uuid.NewString(),
		Direction: direction,
		Nodes:     p.Nodes,
		CoreNodes: coreNodes,
		Trials:    p.Trials,
		BaseSeed:  baseSeed,
		Started:   time.Now().UTC(),
		Params:    p,
	}
	if err := d.sink.Begin(ctx, run); err != nil {
		return Summary{}, fmt.Errorf("failed to begin run: %w", err)
	}

	gridCells := ((counts.Periphery + p.TieInterval - 1) / p.TieInterval) * len(p.Sensitivities)
	d.logger.Info("starting simulation",
		"run", run.ID,
		"direction", direction,
		"nodes", p.Nodes,
		"core", coreNodes,
		"cases", gridCells,
		"trials_per_case", p.Trials,
		"workers", p.workers())

	start := time.Now()
	sum := Summary{RunID: run.ID, Direction: direction}
	caseIndex := 0
	for pties := 0; pties < counts.Periphery; pties += p.TieInterval {
		for _, sensitivity := range p.Sensitivities {
			spec := caseSpec{
				direction:   direction,
				pties:       pties,
				sensitivity: sensitivity,
				coreNodes:   coreNodes,
				periphNodes: periphNodes,
			}
			ran, failed, err := d.runCase(ctx, spec, baseSeed, caseIndex)
			caseIndex++
			sum.TrialsRun += ran
			sum.TrialsFailed += failed
			if err != nil {
				return sum, err
			}
			sum.Cases++
		}
	}
	sum.Elapsed = time.Since(start)

	if err := d.sink.Finish(ctx, sum); err != nil {
		return sum, fmt.Errorf("failed to finish run: %w", err)
	}
	d.logger.Info("simulation complete",
		"run", run.ID,
		"cases", sum.Cases,
		"trials", sum.TrialsRun,
		"failed", sum.TrialsFailed,
		"elapsed", sum.Elapsed)
	return sum, nil
}

// runCase executes one grid cell's trials on the worker pool, then records
// them and their aggregate in trial order. It returns how many trials ran
// and how many failed.
func (d *Driver) runCase(ctx context.Context, spec caseSpec, baseSeed int64, caseIndex int) (int, int, error) {
	p := d.params

	type outcome struct {
		rec TrialRecord
		err error
	}
	results := make([]outcome, p.Trials)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for trial := range jobs {
				seed := baseSeed + int64(caseIndex)*int64(p.Trials) + int64(trial)
				rec, err := d.trialFn(ctx, spec, trial, seed)
				results[trial-1] = outcome{rec: rec, err: err}
			}
		}()
	}

feed:
	for trial := 1; trial <= p.Trials; trial++ {
		select {
		case jobs <- trial:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	var periphDiffusion, coreDiffusion stats.Accumulator
	ran, failed := 0, 0
	for i, out := range results {
		if out.err != nil {
			failed++
			d.logger.Warn("trial failed",
				"ties", spec.pties,
				"sensitivity", spec.sensitivity,
				"trial", i+1,
				"error", out.err)
			continue
		}
		ran++
		if err := d.sink.Trial(ctx, out.rec); err != nil {
			return ran, failed, fmt.Errorf("failed to record trial: %w", err)
		}
		periphDiffusion.Add(frac(out.rec.PeripheryAdopters, out.rec.PeripheryNodes))
		coreDiffusion.Add(frac(out.rec.CoreAdopters, out.rec.CoreNodes))
	}

	rec := CaseRecord{
		Direction:           spec.direction,
		PeripheryTies:       spec.pties,
		Sensitivity:         spec.sensitivity,
		Trials:              ran,
		PeripheralDensity:   stats.PeripheralDensity(spec.pties, spec.coreNodes, spec.periphNodes),
		PeripheralDiffusion: periphDiffusion.Mean(),
		CoreDiffusion:       coreDiffusion.Mean(),
	}
	if err := d.sink.Case(ctx, rec); err != nil {
		return ran, failed, fmt.Errorf("failed to record case: %w", err)
	}
	return ran, failed, nil
}

// runTrial generates a fresh network, runs one bandwagon trial on it, and
// scans the boundary of the direction's target segment.
func (d *Driver) runTrial(ctx context.Context, spec caseSpec, trial int, seed int64) (TrialRecord, error) {
	rng := rand.New(rand.NewSource(seed))

	gen := network.Generator{
		CoreNodes:      spec.coreNodes,
		PeripheryNodes: spec.periphNodes,
		PeripheryTies:  spec.pties,
	}
	net, err := gen.Generate(rng)
	if err != nil {
		return TrialRecord{}, fmt.Errorf("failed to generate network: %w", err)
	}

	cfg := diffusion.Config{
		Direction:    spec.direction,
		Mode:         d.params.Mode,
		Update:       d.params.Update,
		Seed:         d.params.SeedRule,
		Sensitivity:  spec.sensitivity,
		AssessMean:   d.params.AssessMean,
		AssessStdDev: d.params.AssessStdDev,
		MaxCycles:    d.params.MaxCycles,
	}
	engine := diffusion.NewEngine(cfg)
	if d.trace != nil {
		engine.OnAdoption(func(cycle, agentID int, pressure, score float64) {
			d.trace.Log(map[string]any{
				"event":       "adoption",
				"ties":        spec.pties,
				"sensitivity": spec.sensitivity,
				"trial":       trial,
				"cycle":       cycle,
				"agent":       agentID,
				"pressure":    pressure,
				"score":       score,
			})
		})
	}

	d.trace.Log(map[string]any{
		"event":       "trial_start",
		"ties":        spec.pties,
		"sensitivity": spec.sensitivity,
		"trial":       trial,
		"seed":        seed,
	})

	result, err := engine.RunTrial(ctx, net, rng)
	if err != nil {
		d.trace.Log(map[string]any{
			"event":       "trial_failed",
			"ties":        spec.pties,
			"sensitivity": spec.sensitivity,
			"trial":       trial,
			"error":       err.Error(),
		})
		return TrialRecord{}, fmt.Errorf("trial %d (ties=%d sensitivity=%v): %w",
			trial, spec.pties, spec.sensitivity, err)
	}

	report := boundary.Find(net, spec.direction.TargetSegment(), d.params.Proportion)

	d.trace.Log(map[string]any{
		"event":       string(result.Outcome),
		"ties":        spec.pties,
		"sensitivity": spec.sensitivity,
		"trial":       trial,
		"cycles":      result.Cycles,
		"adopters":    result.Adopters(),
	})

	return TrialRecord{
		Direction:         spec.direction,
		PeripheryTies:     spec.pties,
		Sensitivity:       spec.sensitivity,
		Trial:             trial,
		SeedID:            result.SeedID,
		CoreAdopters:      result.CoreAdopters,
		CoreNodes:         spec.coreNodes,
		PeripheryAdopters: result.PeripheryAdopters,
		PeripheryNodes:    spec.periphNodes,
		Weaknesses:        len(report.Weaknesses),
		PressurePoints:    len(report.PressurePoints),
		Cycles:            result.Cycles,
		Outcome:           result.Outcome,
		Curve:             result.Curve,
	}, nil
}

func frac(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
