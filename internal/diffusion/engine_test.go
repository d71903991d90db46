package diffusion

import (
	"context"
	"math/rand"
	"testing"

	"github.com/ckirkos/disim/internal/network"
)

func buildNet(t *testing.T, core, periph int, ties [][2]int) *network.Network {
	t.Helper()
	net := network.New(core, periph)
	for _, tie := range ties {
		if err := net.AddTie(tie[0], tie[1]); err != nil {
			t.Fatalf("AddTie(%d, %d): %v", tie[0], tie[1], err)
		}
	}
	return net
}

func genNet(t *testing.T, core, periph, pties int, seed int64) *network.Network {
	t.Helper()
	gen := network.Generator{CoreNodes: core, PeripheryNodes: periph, PeripheryTies: pties}
	net, err := gen.Generate(rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("Generate(%+v): %v", gen, err)
	}
	return net
}

func runTrial(t *testing.T, cfg Config, net *network.Network, seed int64) *Trial {
	t.Helper()
	trial, err := NewEngine(cfg).RunTrial(context.Background(), net, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("RunTrial: %v", err)
	}
	return trial
}

// deterministic returns a config with no assessment noise, so every agent's
// private assessment equals mean exactly.
func deterministic(mean, sensitivity float64) Config {
	cfg := DefaultConfig()
	cfg.AssessMean = mean
	cfg.AssessStdDev = 0
	cfg.Sensitivity = sensitivity
	return cfg
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"down", TrickleDown, false},
		{"up", TrickleUp, false},
		{"DOWN", TrickleDown, false},
		{"Up", TrickleUp, false},
		{"sideways", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDirection(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDirection(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDirection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if m, err := ParseMode("GLOBAL"); err != nil || m != ModeGlobal {
		t.Errorf("ParseMode(GLOBAL) = %q, %v", m, err)
	}
	if _, err := ParseMode("local"); err == nil {
		t.Error("ParseMode(local) succeeded, want error")
	}
	if u, err := ParseUpdateRule("incremental"); err != nil || u != UpdateIncremental {
		t.Errorf("ParseUpdateRule(incremental) = %q, %v", u, err)
	}
	if _, err := ParseUpdateRule("async"); err == nil {
		t.Error("ParseUpdateRule(async) succeeded, want error")
	}
	if s, err := ParseSeedRule("assessed"); err != nil || s != SeedAssessed {
		t.Errorf("ParseSeedRule(assessed) = %q, %v", s, err)
	}
	if _, err := ParseSeedRule("random"); err == nil {
		t.Error("ParseSeedRule(random) succeeded, want error")
	}
}

func TestDirection_Segments(t *testing.T) {
	if TrickleDown.FocalSegment() != network.SegmentCore {
		t.Error("down must seed from the core")
	}
	if TrickleDown.TargetSegment() != network.SegmentPeriphery {
		t.Error("down must target the periphery")
	}
	if TrickleUp.FocalSegment() != network.SegmentPeriphery {
		t.Error("up must seed from the periphery")
	}
	if TrickleUp.TargetSegment() != network.SegmentCore {
		t.Error("up must target the core")
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []func(*Config){
		func(c *Config) { c.Direction = "sideways" },
		func(c *Config) { c.Mode = "psychic" },
		func(c *Config) { c.Update = "eventually" },
		func(c *Config) { c.Seed = "maybe" },
		func(c *Config) { c.Sensitivity = -1 },
		func(c *Config) { c.AssessStdDev = -0.1 },
		func(c *Config) { c.MaxCycles = -1 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("mutation %d: Validate() succeeded, want error", i)
		}
	}
}

func TestRunTrial_EmptyNetwork(t *testing.T) {
	_, err := NewEngine(DefaultConfig()).RunTrial(context.Background(), network.New(0, 0), rand.New(rand.NewSource(1)))
	if err == nil {
		t.Fatal("RunTrial on empty network succeeded, want error")
	}
}

func TestRunTrial_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(DefaultConfig()).RunTrial(ctx, genNet(t, 10, 21, 50, 1), rand.New(rand.NewSource(1)))
	if err != context.Canceled {
		t.Fatalf("RunTrial with cancelled context: err = %v, want context.Canceled", err)
	}
}

func TestRunTrial_SeedComesFromFocalStratum(t *testing.T) {
	tests := []struct {
		direction Direction
		segment   network.Segment
	}{
		{TrickleDown, network.SegmentCore},
		{TrickleUp, network.SegmentPeriphery},
	}

	for _, tt := range tests {
		t.Run(string(tt.direction), func(t *testing.T) {
			for seed := int64(0); seed < 10; seed++ {
				net := genNet(t, 10, 21, 100, seed)
				cfg := DefaultConfig()
				cfg.Direction = tt.direction
				trial := runTrial(t, cfg, net, seed)

				if net.Agent(trial.SeedID).Segment != tt.segment {
					t.Fatalf("seed %d: agent %d is %q, want %q",
						seed, trial.SeedID, net.Agent(trial.SeedID).Segment, tt.segment)
				}
				if net.Agent(trial.SeedID).AdoptedCycle != 0 {
					t.Fatalf("seed agent adopted at cycle %d, want 0", net.Agent(trial.SeedID).AdoptedCycle)
				}
			}
		})
	}
}

func TestRunTrial_CurveNeverDecreases(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		net := genNet(t, 10, 21, 150, seed)
		cfg := DefaultConfig()
		cfg.Sensitivity = 3
		trial := runTrial(t, cfg, net, seed)

		if len(trial.Curve) == 0 {
			t.Fatalf("seed %d: empty adoption curve", seed)
		}
		if trial.Curve[0] != 1 {
			t.Errorf("seed %d: Curve[0] = %d, want 1 after forced seeding", seed, trial.Curve[0])
		}
		for i := 1; i < len(trial.Curve); i++ {
			if trial.Curve[i] < trial.Curve[i-1] {
				t.Fatalf("seed %d: curve decreases at %d: %v", seed, i, trial.Curve)
			}
		}
		if got := trial.Curve[len(trial.Curve)-1]; got != net.Adopters() {
			t.Errorf("seed %d: curve ends at %d but network has %d adopters", seed, got, net.Adopters())
		}
		if trial.Adopters() != trial.CoreAdopters+trial.PeripheryAdopters {
			t.Errorf("seed %d: stratum tallies %d+%d do not sum to %d",
				seed, trial.CoreAdopters, trial.PeripheryAdopters, trial.Adopters())
		}
	}
}

func TestRunTrial_CompleteCoreFullDiffusion(t *testing.T) {
	// Five fully connected core agents, no noise. One adopted neighbor
	// gives pressure 1/5, so score = -0.5 + 10*0.2 = 1.5 and everyone
	// adopts in the first cycle.
	net := genNet(t, 5, 0, 0, 1)
	trial := runTrial(t, deterministic(-0.5, 10), net, 1)

	if trial.Outcome != OutcomeConverged {
		t.Errorf("Outcome = %q, want converged", trial.Outcome)
	}
	if trial.Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", trial.Cycles)
	}
	if len(trial.Curve) != 2 || trial.Curve[0] != 1 || trial.Curve[1] != 5 {
		t.Errorf("Curve = %v, want [1 5]", trial.Curve)
	}
	if trial.CoreAdopters != 5 || trial.PeripheryAdopters != 0 {
		t.Errorf("adopters = %d/%d, want 5/0", trial.CoreAdopters, trial.PeripheryAdopters)
	}
}

func TestRunTrial_NoSpreadWithoutTies(t *testing.T) {
	// One core seed, four isolated peripherals: without ties nobody feels
	// pressure, so the bandwagon stops at the seed.
	net := genNet(t, 1, 4, 0, 1)
	trial := runTrial(t, deterministic(-0.5, 5), net, 1)

	if trial.Cycles != 0 {
		t.Errorf("Cycles = %d, want 0", trial.Cycles)
	}
	if len(trial.Curve) != 1 || trial.Curve[0] != 1 {
		t.Errorf("Curve = %v, want [1]", trial.Curve)
	}
	if trial.Outcome != OutcomeConverged {
		t.Errorf("Outcome = %q, want converged", trial.Outcome)
	}
}

func TestRunTrial_GlobalModeIgnoresTies(t *testing.T) {
	// Same isolated network, but with global pressure the lone adopter is
	// visible to all: 1/5 of the population pushes score to
	// -0.5 + 5*0.2 = 0.5 and everyone adopts.
	net := genNet(t, 1, 4, 0, 1)
	cfg := deterministic(-0.5, 5)
	cfg.Mode = ModeGlobal
	trial := runTrial(t, cfg, net, 1)

	if trial.Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", trial.Cycles)
	}
	if trial.Adopters() != 5 {
		t.Errorf("Adopters() = %d, want 5", trial.Adopters())
	}
}

func TestRunTrial_PressureUsesPopulationSize(t *testing.T) {
	// Chain 0-1-2-3. Agent 1 has one adopted neighbor out of two ties; if
	// pressure were measured against its degree the score would be
	// -0.3 + 0.5 > 0 and the bandwagon would roll. Against the population
	// size it is -0.3 + 0.25 < 0 and nothing spreads.
	net := buildNet(t, 1, 3, [][2]int{{0, 1}, {1, 2}, {2, 3}})
	trial := runTrial(t, deterministic(-0.3, 1), net, 1)

	if trial.Adopters() != 1 {
		t.Fatalf("Adopters() = %d, want 1", trial.Adopters())
	}
}

func TestRunTrial_ChainAdvancesOneHopPerCycle(t *testing.T) {
	// Chain 0-1-2-3 with score 0.05 for one adopted neighbor: under
	// synchronous updates the bandwagon moves one hop per cycle.
	net := buildNet(t, 1, 3, [][2]int{{0, 1}, {1, 2}, {2, 3}})
	trial := runTrial(t, deterministic(-0.2, 1), net, 1)

	if trial.Cycles != 3 {
		t.Errorf("Cycles = %d, want 3", trial.Cycles)
	}
	want := []int{1, 2, 3, 4}
	if len(trial.Curve) != len(want) {
		t.Fatalf("Curve = %v, want %v", trial.Curve, want)
	}
	for i := range want {
		if trial.Curve[i] != want[i] {
			t.Fatalf("Curve = %v, want %v", trial.Curve, want)
		}
	}
	for id, cycle := range map[int]int{0: 0, 1: 1, 2: 2, 3: 3} {
		if got := net.Agent(id).AdoptedCycle; got != cycle {
			t.Errorf("agent %d adopted at cycle %d, want %d", id, got, cycle)
		}
	}
}

func TestRunTrial_MaxCyclesStopsEarly(t *testing.T) {
	net := buildNet(t, 1, 3, [][2]int{{0, 1}, {1, 2}, {2, 3}})
	cfg := deterministic(-0.2, 1)
	cfg.MaxCycles = 2
	trial := runTrial(t, cfg, net, 1)

	if trial.Outcome != OutcomeCycleLimit {
		t.Errorf("Outcome = %q, want cycle_limit", trial.Outcome)
	}
	if trial.Cycles != 2 {
		t.Errorf("Cycles = %d, want 2", trial.Cycles)
	}
	if trial.Adopters() != 3 {
		t.Errorf("Adopters() = %d, want 3", trial.Adopters())
	}
}

func TestRunTrial_IncrementalCanOutpaceSynchronous(t *testing.T) {
	cfg := deterministic(-0.2, 1)
	cfg.Update = UpdateIncremental

	for seed := int64(0); seed < 10; seed++ {
		net := buildNet(t, 1, 3, [][2]int{{0, 1}, {1, 2}, {2, 3}})
		trial := runTrial(t, cfg, net, seed)

		if trial.Adopters() != 4 {
			t.Fatalf("seed %d: Adopters() = %d, want 4", seed, trial.Adopters())
		}
		// Depending on the visit order the whole chain may fall within a
		// single cycle, but never slower than one hop per cycle.
		if trial.Cycles < 1 || trial.Cycles > 3 {
			t.Errorf("seed %d: Cycles = %d, want 1..3", seed, trial.Cycles)
		}
	}
}

func TestRunTrial_AssessedSeed(t *testing.T) {
	t.Run("optimist adopts", func(t *testing.T) {
		net := genNet(t, 2, 3, 0, 1)
		cfg := deterministic(0.5, 1)
		cfg.Seed = SeedAssessed
		trial := runTrial(t, cfg, net, 1)

		if trial.Curve[0] != 1 {
			t.Errorf("Curve[0] = %d, want 1", trial.Curve[0])
		}
		// Everyone assesses 0.5 > 0, so the rest follow on their own.
		if trial.Adopters() != 5 {
			t.Errorf("Adopters() = %d, want 5", trial.Adopters())
		}
	})

	t.Run("pessimist declines", func(t *testing.T) {
		net := genNet(t, 2, 3, 0, 1)
		cfg := deterministic(-0.5, 1)
		cfg.Seed = SeedAssessed
		trial := runTrial(t, cfg, net, 1)

		if trial.Adopters() != 0 {
			t.Errorf("Adopters() = %d, want 0", trial.Adopters())
		}
		if len(trial.Curve) != 1 || trial.Curve[0] != 0 {
			t.Errorf("Curve = %v, want [0]", trial.Curve)
		}
		if trial.Cycles != 0 || trial.Outcome != OutcomeConverged {
			t.Errorf("Cycles = %d, Outcome = %q, want 0, converged", trial.Cycles, trial.Outcome)
		}
	})
}

func TestRunTrial_ZeroSensitivityCountsOptimists(t *testing.T) {
	// With sensitivity 0 the bandwagon term vanishes: exactly the agents
	// with a positive private assessment adopt, nobody else.
	cfg := DefaultConfig()
	cfg.Sensitivity = 0
	cfg.Seed = SeedAssessed

	for seed := int64(0); seed < 10; seed++ {
		net := genNet(t, 10, 20, 80, seed)
		trial := runTrial(t, cfg, net, seed)

		optimists := 0
		for i := 0; i < net.Len(); i++ {
			ag := net.Agent(i)
			if ag.Assessment > 0 {
				optimists++
			}
			if ag.Adopted != (ag.Assessment > 0) {
				t.Fatalf("seed %d: agent %d adopted=%v with assessment %v",
					seed, i, ag.Adopted, ag.Assessment)
			}
		}
		if trial.Adopters() != optimists {
			t.Fatalf("seed %d: Adopters() = %d, want %d optimists", seed, trial.Adopters(), optimists)
		}
	}
}

func TestRunTrial_SingleAgent(t *testing.T) {
	t.Run("adopts when profitable", func(t *testing.T) {
		// The focal core stratum is empty, so seeding falls back to the
		// whole population.
		net := genNet(t, 0, 1, 0, 1)
		cfg := deterministic(1, 1)
		cfg.Seed = SeedAssessed
		trial := runTrial(t, cfg, net, 1)

		if trial.Adopters() != 1 {
			t.Errorf("Adopters() = %d, want 1", trial.Adopters())
		}
		if trial.Cycles != 0 || trial.Outcome != OutcomeConverged {
			t.Errorf("Cycles = %d, Outcome = %q, want 0, converged", trial.Cycles, trial.Outcome)
		}
	})

	t.Run("declines when unprofitable", func(t *testing.T) {
		net := genNet(t, 0, 1, 0, 1)
		cfg := deterministic(-1, 1)
		cfg.Seed = SeedAssessed
		trial := runTrial(t, cfg, net, 1)

		if trial.Adopters() != 0 {
			t.Errorf("Adopters() = %d, want 0", trial.Adopters())
		}
		if trial.Cycles != 0 || trial.Outcome != OutcomeConverged {
			t.Errorf("Cycles = %d, Outcome = %q, want 0, converged", trial.Cycles, trial.Outcome)
		}
	})
}

func TestRunTrial_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensitivity = 3

	run := func() (*Trial, *network.Network) {
		net := genNet(t, 10, 21, 120, 99)
		return runTrial(t, cfg, net, 42), net
	}

	a, netA := run()
	b, netB := run()

	if a.SeedID != b.SeedID || a.Cycles != b.Cycles || a.Outcome != b.Outcome {
		t.Fatalf("same seed produced different trials: %+v vs %+v", a, b)
	}
	if len(a.Curve) != len(b.Curve) {
		t.Fatalf("curves differ: %v vs %v", a.Curve, b.Curve)
	}
	for i := range a.Curve {
		if a.Curve[i] != b.Curve[i] {
			t.Fatalf("curves differ: %v vs %v", a.Curve, b.Curve)
		}
	}
	for i := 0; i < netA.Len(); i++ {
		if netA.Agent(i).Adopted != netB.Agent(i).Adopted ||
			netA.Agent(i).AdoptedCycle != netB.Agent(i).AdoptedCycle {
			t.Fatalf("agent %d state differs between identical runs", i)
		}
	}
}

func TestEngine_OnAdoptionHook(t *testing.T) {
	type event struct {
		cycle, agent    int
		pressure, score float64
	}
	var events []event

	net := genNet(t, 5, 0, 0, 1)
	engine := NewEngine(deterministic(-0.5, 10))
	engine.OnAdoption(func(cycle, agentID int, pressure, score float64) {
		events = append(events, event{cycle, agentID, pressure, score})
	})

	trial, err := engine.RunTrial(context.Background(), net, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("RunTrial: %v", err)
	}

	if len(events) != trial.Adopters() {
		t.Fatalf("hook fired %d times for %d adopters", len(events), trial.Adopters())
	}
	first := events[0]
	if first.cycle != 0 || first.agent != trial.SeedID || first.pressure != 0 {
		t.Errorf("first event = %+v, want seed adoption at cycle 0 with zero pressure", first)
	}
	for _, ev := range events[1:] {
		if ev.cycle != 1 {
			t.Errorf("event %+v outside cycle 1", ev)
		}
		if ev.score <= 0 {
			t.Errorf("event %+v has non-positive score", ev)
		}
	}
}
