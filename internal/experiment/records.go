package experiment

import (
	"time"

	"github.com/ckirkos/disim/internal/diffusion"
)

// RunMeta identifies one experiment run and snapshots its parameters.
type RunMeta struct {
	// ID is the run's unique identifier.
	ID string `json:"id"`

	// Direction is the trickle direction swept by this run.
	Direction diffusion.Direction `json:"direction"`

	// Nodes and CoreNodes record the resolved network sizing.
	Nodes     int `json:"nodes"`
	CoreNodes int `json:"core_nodes"`

	// Trials is the number of trials per case.
	Trials int `json:"trials"`

	// BaseSeed is the resolved root of every trial's rng seed. Rerunning
	// with the same base seed reproduces the run exactly.
	BaseSeed int64 `json:"base_seed"`

	// Started is when the run began.
	Started time.Time `json:"started"`

	// Params is the full parameter snapshot.
	Params Params `json:"params"`
}

// TrialRecord is one row of the per-trial experiment log.
type TrialRecord struct {
	Direction         diffusion.Direction `json:"direction"`
	PeripheryTies     int                 `json:"periphery_ties"`
	Sensitivity       float64             `json:"sensitivity"`
	Trial             int                 `json:"trial"`
	SeedID            int                 `json:"seed_agent"`
	CoreAdopters      int                 `json:"core_adopters"`
	CoreNodes         int                 `json:"core_nodes"`
	PeripheryAdopters int                 `json:"periphery_adopters"`
	PeripheryNodes    int                 `json:"periphery_nodes"`
	Weaknesses        int                 `json:"weaknesses"`
	PressurePoints    int                 `json:"pressure_points"`
	Cycles            int                 `json:"cycles"`
	Outcome           diffusion.Outcome   `json:"outcome"`
	Curve             []int               `json:"curve"`
}

// CaseRecord aggregates the trials of one (peripheral ties, sensitivity)
// case. The diffusion figures are means of per-trial adoption fractions.
type CaseRecord struct {
	Direction           diffusion.Direction `json:"direction"`
	PeripheryTies       int                 `json:"periphery_ties"`
	Sensitivity         float64             `json:"sensitivity"`
	Trials              int                 `json:"trials"`
	PeripheralDensity   float64             `json:"peripheral_density"`
	PeripheralDiffusion float64             `json:"peripheral_diffusion"`
	CoreDiffusion       float64             `json:"core_diffusion"`
}

// Summary tallies a finished run.
type Summary struct {
	RunID        string              `json:"run_id"`
	Direction    diffusion.Direction `json:"direction"`
	Cases        int                 `json:"cases"`
	TrialsRun    int                 `json:"trials_run"`
	TrialsFailed int                 `json:"trials_failed"`
	Elapsed      time.Duration       `json:"elapsed_ns"`
}
