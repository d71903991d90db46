// Package results persists experiment output.
package results

import (
	"context"

	"github.com/ckirkos/disim/internal/experiment"
)

// MultiSink fans experiment output out to several sinks in order. The first
// error stops the fan-out and is returned, so a failing sink aborts the run
// rather than silently dropping records.
type MultiSink struct {
	sinks []experiment.Sink
}

// NewMultiSink creates a sink that forwards every call to each of sinks.
func NewMultiSink(sinks ...experiment.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Begin forwards the run header to every sink.
func (m *MultiSink) Begin(ctx context.Context, run experiment.RunMeta) error {
	for _, s := range m.sinks {
		if err := s.Begin(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

// Trial forwards one trial record to every sink.
func (m *MultiSink) Trial(ctx context.Context, rec experiment.TrialRecord) error {
	for _, s := range m.sinks {
		if err := s.Trial(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Case forwards one case record to every sink.
func (m *MultiSink) Case(ctx context.Context, rec experiment.CaseRecord) error {
	for _, s := range m.sinks {
		if err := s.Case(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Finish forwards the run tallies to every sink.
func (m *MultiSink) Finish(ctx context.Context, sum experiment.Summary) error {
	for _, s := range m.sinks {
		if err := s.Finish(ctx, sum); err != nil {
			return err
		}
	}
	return nil
}
