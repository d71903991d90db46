package experiment

import "context"

// Sink receives experiment output as it is produced. The driver serializes
// all calls, in order: Begin once, then the trial and case records of each
// grid cell in grid order, then Finish once. Implementations do not need to
// be safe for concurrent use.
type Sink interface {
	// Begin opens a recording session for one run.
	Begin(ctx context.Context, run RunMeta) error

	// Trial records one completed trial.
	Trial(ctx context.Context, rec TrialRecord) error

	// Case records one aggregated grid cell. All of a case's trials are
	// recorded before the case itself.
	Case(ctx context.Context, rec CaseRecord) error

	// Finish closes the session with the run's final tallies.
	Finish(ctx context.Context, sum Summary) error
}
