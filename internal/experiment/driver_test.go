package experiment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ckirkos/disim/internal/diffusion"
)

// memSink records everything the driver sends, optionally failing a chosen
// method.
type memSink struct {
	begins   []RunMeta
	trials   []TrialRecord
	cases    []CaseRecord
	finishes []Summary
	failOn   string
}

func (m *memSink) Begin(ctx context.Context, run RunMeta) error {
	if m.failOn == "begin" {
		return errors.New("sink begin failure")
	}
	m.begins = append(m.begins, run)
	return nil
}

func (m *memSink) Trial(ctx context.Context, rec TrialRecord) error {
	if m.failOn == "trial" {
		return errors.New("sink trial failure")
	}
	m.trials = append(m.trials, rec)
	return nil
}

func (m *memSink) Case(ctx context.Context, rec CaseRecord) error {
	if m.failOn == "case" {
		return errors.New("sink case failure")
	}
	m.cases = append(m.cases, rec)
	return nil
}

func (m *memSink) Finish(ctx context.Context, sum Summary) error {
	if m.failOn == "finish" {
		return errors.New("sink finish failure")
	}
	m.finishes = append(m.finishes, sum)
	return nil
}

// smallParams returns a grid small enough for fast tests: 8 agents, half of
// them core, peripheral ties 0,5,10,15,20 and two sensitivities.
func smallParams() Params {
	p := DefaultParams()
	p.Nodes = 8
	p.CoreRatio = 0.5
	p.Trials = 3
	p.Sensitivities = []float64{1, 2}
	p.Workers = 2
	p.BaseSeed = 1234
	return p
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	if got := p.coreNodes(); got != 10 {
		t.Errorf("coreNodes() = %d for 31 nodes at ratio 1/3, want 10", got)
	}
}

func TestParams_Validate(t *testing.T) {
	bad := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero nodes", func(p *Params) { p.Nodes = 0 }},
		{"negative nodes", func(p *Params) { p.Nodes = -5 }},
		{"ratio above one", func(p *Params) { p.CoreRatio = 1.5 }},
		{"negative ratio", func(p *Params) { p.CoreRatio = -0.1 }},
		{"zero trials", func(p *Params) { p.Trials = 0 }},
		{"zero interval", func(p *Params) { p.TieInterval = 0 }},
		{"no sensitivities", func(p *Params) { p.Sensitivities = nil }},
		{"negative sensitivity", func(p *Params) { p.Sensitivities = []float64{1, -2} }},
		{"bad mode", func(p *Params) { p.Mode = "psychic" }},
		{"bad update", func(p *Params) { p.Update = "eventually" }},
		{"bad seed rule", func(p *Params) { p.SeedRule = "maybe" }},
		{"negative stddev", func(p *Params) { p.AssessStdDev = -1 }},
		{"negative max cycles", func(p *Params) { p.MaxCycles = -1 }},
		{"zero proportion", func(p *Params) { p.Proportion = 0 }},
		{"negative workers", func(p *Params) { p.Workers = -1 }},
	}

	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() succeeded, want error")
			}
		})
	}
}

func TestDriver_GridShape(t *testing.T) {
	sink := &memSink{}
	driver := NewDriver(smallParams(), sink, nil)

	sum, err := driver.Run(context.Background(), diffusion.TrickleDown)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 8 agents, 4 core: 22 possible peripheral ties, so the grid steps
	// 0,5,10,15,20 across two sensitivities.
	if sum.Cases != 10 {
		t.Errorf("Cases = %d, want 10", sum.Cases)
	}
	if sum.TrialsRun != 30 || sum.TrialsFailed != 0 {
		t.Errorf("trials = %d run / %d failed, want 30 / 0", sum.TrialsRun, sum.TrialsFailed)
	}
	if len(sink.begins) != 1 || len(sink.finishes) != 1 {
		t.Fatalf("Begin/Finish called %d/%d times, want 1/1", len(sink.begins), len(sink.finishes))
	}
	if len(sink.trials) != 30 || len(sink.cases) != 10 {
		t.Fatalf("sink received %d trials and %d cases, want 30 and 10", len(sink.trials), len(sink.cases))
	}

	run := sink.begins[0]
	if run.ID == "" {
		t.Error("run ID is empty")
	}
	if run.Nodes != 8 || run.CoreNodes != 4 || run.Trials != 3 {
		t.Errorf("run meta = %d nodes / %d core / %d trials, want 8/4/3", run.Nodes, run.CoreNodes, run.Trials)
	}
	if run.BaseSeed != 1234 {
		t.Errorf("BaseSeed = %d, want 1234", run.BaseSeed)
	}

	// Trials arrive grouped per case, in trial order, with the sizing
	// stamped on every record.
	for i, rec := range sink.trials {
		if rec.Trial != i%3+1 {
			t.Fatalf("record %d has trial %d, want %d", i, rec.Trial, i%3+1)
		}
		if rec.CoreNodes != 4 || rec.PeripheryNodes != 4 {
			t.Fatalf("record %d sizing = %d/%d, want 4/4", i, rec.CoreNodes, rec.PeripheryNodes)
		}
		if rec.Direction != diffusion.TrickleDown {
			t.Fatalf("record %d direction = %q, want down", i, rec.Direction)
		}
	}

	wantTies := []int{0, 0, 5, 5, 10, 10, 15, 15, 20, 20}
	wantSens := []float64{1, 2, 1, 2, 1, 2, 1, 2, 1, 2}
	for i, rec := range sink.cases {
		if rec.PeripheryTies != wantTies[i] || rec.Sensitivity != wantSens[i] {
			t.Errorf("case %d = (%d ties, %v), want (%d, %v)",
				i, rec.PeripheryTies, rec.Sensitivity, wantTies[i], wantSens[i])
		}
		if rec.Trials != 3 {
			t.Errorf("case %d aggregated %d trials, want 3", i, rec.Trials)
		}
	}
}

func TestDriver_ReproducibleAcrossWorkerCounts(t *testing.T) {
	run := func(workers int) *memSink {
		p := smallParams()
		p.Workers = workers
		sink := &memSink{}
		if _, err := NewDriver(p, sink, nil).Run(context.Background(), diffusion.TrickleDown); err != nil {
			t.Fatalf("Run with %d workers: %v", workers, err)
		}
		return sink
	}

	serial := run(1)
	parallel := run(4)

	if len(serial.trials) != len(parallel.trials) {
		t.Fatalf("trial counts differ: %d vs %d", len(serial.trials), len(parallel.trials))
	}
	for i := range serial.trials {
		a, b := serial.trials[i], parallel.trials[i]
		if a.SeedID != b.SeedID || a.CoreAdopters != b.CoreAdopters ||
			a.PeripheryAdopters != b.PeripheryAdopters || a.Cycles != b.Cycles ||
			a.Weaknesses != b.Weaknesses || a.PressurePoints != b.PressurePoints {
			t.Fatalf("trial record %d differs across worker counts:\n%+v\n%+v", i, a, b)
		}
		if len(a.Curve) != len(b.Curve) {
			t.Fatalf("trial record %d curves differ: %v vs %v", i, a.Curve, b.Curve)
		}
		for j := range a.Curve {
			if a.Curve[j] != b.Curve[j] {
				t.Fatalf("trial record %d curves differ: %v vs %v", i, a.Curve, b.Curve)
			}
		}
	}
	for i := range serial.cases {
		if serial.cases[i] != parallel.cases[i] {
			t.Fatalf("case record %d differs across worker counts:\n%+v\n%+v",
				i, serial.cases[i], parallel.cases[i])
		}
	}
}

func TestDriver_CaseAggregates(t *testing.T) {
	// No assessment noise and an optimistic mean: every trial ends in full
	// adoption, so both diffusion figures must be exactly 1 and the
	// density pties/5.
	p := DefaultParams()
	p.Nodes = 4
	p.CoreRatio = 0.5
	p.Trials = 2
	p.TieInterval = 2
	p.Sensitivities = []float64{1}
	p.AssessMean = 0.5
	p.AssessStdDev = 0
	p.SeedRule = diffusion.SeedAssessed
	p.Workers = 1
	p.BaseSeed = 7

	sink := &memSink{}
	if _, err := NewDriver(p, sink, nil).Run(context.Background(), diffusion.TrickleDown); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 4 agents, 2 core: 5 possible peripheral ties, grid 0,2,4.
	if len(sink.cases) != 3 {
		t.Fatalf("got %d cases, want 3", len(sink.cases))
	}
	for i, rec := range sink.cases {
		wantDensity := float64(rec.PeripheryTies) / 5.0
		if rec.PeripheralDensity != wantDensity {
			t.Errorf("case %d density = %v, want %v", i, rec.PeripheralDensity, wantDensity)
		}
		if rec.PeripheralDiffusion != 1 || rec.CoreDiffusion != 1 {
			t.Errorf("case %d diffusion = %v/%v, want 1/1",
				i, rec.PeripheralDiffusion, rec.CoreDiffusion)
		}
	}
}

func TestDriver_SeedOnlyDiffusion(t *testing.T) {
	// Zero sensitivity and a pessimistic mean: only the forced seed
	// adopts. Trickling down, that seed sits in the two-agent core.
	p := DefaultParams()
	p.Nodes = 4
	p.CoreRatio = 0.5
	p.Trials = 3
	p.TieInterval = 2
	p.Sensitivities = []float64{0}
	p.AssessMean = -0.5
	p.AssessStdDev = 0
	p.Workers = 1
	p.BaseSeed = 11

	sink := &memSink{}
	if _, err := NewDriver(p, sink, nil).Run(context.Background(), diffusion.TrickleDown); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, rec := range sink.trials {
		if rec.CoreAdopters != 1 || rec.PeripheryAdopters != 0 {
			t.Errorf("trial %d adopters = %d/%d, want 1/0", i, rec.CoreAdopters, rec.PeripheryAdopters)
		}
		if rec.Outcome != diffusion.OutcomeConverged {
			t.Errorf("trial %d outcome = %q, want converged", i, rec.Outcome)
		}
	}
	for i, rec := range sink.cases {
		if rec.CoreDiffusion != 0.5 || rec.PeripheralDiffusion != 0 {
			t.Errorf("case %d diffusion = %v/%v, want 0.5/0",
				i, rec.CoreDiffusion, rec.PeripheralDiffusion)
		}
	}
}

func TestDriver_TrialFailuresAreCountedNotFatal(t *testing.T) {
	sink := &memSink{}
	p := smallParams()
	driver := NewDriver(p, sink, nil)

	real := driver.trialFn
	driver.trialFn = func(ctx context.Context, spec caseSpec, trial int, seed int64) (TrialRecord, error) {
		if trial == 2 {
			return TrialRecord{}, fmt.Errorf("injected failure")
		}
		return real(ctx, spec, trial, seed)
	}

	sum, err := driver.Run(context.Background(), diffusion.TrickleDown)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.TrialsFailed != 10 {
		t.Errorf("TrialsFailed = %d, want 10 (one per case)", sum.TrialsFailed)
	}
	if sum.TrialsRun != 20 {
		t.Errorf("TrialsRun = %d, want 20", sum.TrialsRun)
	}
	if len(sink.trials) != 20 {
		t.Errorf("sink received %d trial records, want 20", len(sink.trials))
	}
	for _, rec := range sink.trials {
		if rec.Trial == 2 {
			t.Errorf("failed trial 2 reached the sink: %+v", rec)
		}
	}
	for i, rec := range sink.cases {
		if rec.Trials != 2 {
			t.Errorf("case %d aggregated %d trials, want 2 survivors", i, rec.Trials)
		}
	}
}

func TestDriver_SinkErrorsAbort(t *testing.T) {
	for _, failOn := range []string{"begin", "trial", "case", "finish"} {
		t.Run(failOn, func(t *testing.T) {
			sink := &memSink{failOn: failOn}
			if _, err := NewDriver(smallParams(), sink, nil).Run(context.Background(), diffusion.TrickleDown); err == nil {
				t.Errorf("Run succeeded with sink failing on %s, want error", failOn)
			}
		})
	}
}

func TestDriver_InvalidInputs(t *testing.T) {
	sink := &memSink{}

	p := smallParams()
	p.Nodes = 0
	if _, err := NewDriver(p, sink, nil).Run(context.Background(), diffusion.TrickleDown); err == nil {
		t.Error("Run with zero nodes succeeded, want error")
	}

	if _, err := NewDriver(smallParams(), sink, nil).Run(context.Background(), "sideways"); err == nil {
		t.Error("Run with invalid direction succeeded, want error")
	}

	if len(sink.begins) != 0 {
		t.Error("Begin was called despite failing validation")
	}
}

func TestDriver_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := NewDriver(smallParams(), &memSink{}, nil).Run(ctx, diffusion.TrickleDown)
	if err == nil {
		t.Fatal("Run with cancelled context succeeded, want error")
	}
	if sum.Cases != 0 {
		t.Errorf("Cases = %d after immediate cancellation, want 0", sum.Cases)
	}
}

func TestDriver_TrickleUpSeedsFromPeriphery(t *testing.T) {
	p := smallParams()
	sink := &memSink{}
	if _, err := NewDriver(p, sink, nil).Run(context.Background(), diffusion.TrickleUp); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, rec := range sink.trials {
		if rec.Direction != diffusion.TrickleUp {
			t.Fatalf("trial %d direction = %q, want up", i, rec.Direction)
		}
		// Core IDs are 0..3, so an up-trickling seed is 4 or higher.
		if rec.SeedID < 4 {
			t.Errorf("trial %d seeded from core agent %d during trickle-up", i, rec.SeedID)
		}
	}
}
