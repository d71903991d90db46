package diffusion

// Outcome states how a trial ended.
type Outcome string

const (
	// OutcomeConverged means a full cycle passed without a new adoption.
	OutcomeConverged Outcome = "converged"
	// OutcomeCycleLimit means the trial hit the configured cycle cap
	// before convergence was confirmed.
	OutcomeCycleLimit Outcome = "cycle_limit"
)

// Trial captures one simulated bandwagon.
type Trial struct {
	// SeedID is the agent the bandwagon started from.
	SeedID int

	// Outcome states how the trial ended.
	Outcome Outcome

	// Cycles is the last cycle in which an adoption occurred, or 0 when
	// the bandwagon never spread beyond seeding.
	Cycles int

	// Curve holds the cumulative adopter count after each cycle, starting
	// with the post-seeding state at index 0. It never decreases.
	Curve []int

	// CoreAdopters counts the core agents that ended the trial adopted.
	CoreAdopters int

	// PeripheryAdopters counts the peripheral agents that ended the trial
	// adopted.
	PeripheryAdopters int
}

// Adopters returns the final total number of adopters.
func (t *Trial) Adopters() int {
	if len(t.Curve) == 0 {
		return 0
	}
	return t.Curve[len(t.Curve)-1]
}
