// Package results persists experiment output.
package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ckirkos/disim/internal/experiment"
)

// CSVLogs writes the per-trial and per-case logs of one run as CSV files in
// a run directory. It implements experiment.Sink.
//
// File names carry the network size (experimentTrialLog-n31.csv,
// experimentCaseLog-n31.csv) and the files have no header row, matching the
// layout these experiments have always been analyzed in.
type CSVLogs struct {
	dir       string
	trialFile *os.File
	caseFile  *os.File
	trialW    *csv.Writer
	caseW     *csv.Writer
}

// NewCSVLogs creates a CSV sink rooted at dir. The directory and files are
// created on Begin.
func NewCSVLogs(dir string) *CSVLogs {
	return &CSVLogs{dir: dir}
}

// Begin creates the run directory and both log files, truncating any
// previous logs for the same network size.
func (l *CSVLogs) Begin(ctx context.Context, run experiment.RunMeta) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	trialPath := filepath.Join(l.dir, fmt.Sprintf("experimentTrialLog-n%d.csv", run.Nodes))
	trialFile, err := os.Create(trialPath)
	if err != nil {
		return fmt.Errorf("failed to create trial log: %w", err)
	}

	casePath := filepath.Join(l.dir, fmt.Sprintf("experimentCaseLog-n%d.csv", run.Nodes))
	caseFile, err := os.Create(casePath)
	if err != nil {
		trialFile.Close()
		return fmt.Errorf("failed to create case log: %w", err)
	}

	l.trialFile = trialFile
	l.caseFile = caseFile
	l.trialW = csv.NewWriter(trialFile)
	l.caseW = csv.NewWriter(caseFile)
	return nil
}

// Trial appends one row to the trial log.
func (l *CSVLogs) Trial(ctx context.Context, rec experiment.TrialRecord) error {
	row := []string{
		strconv.Itoa(rec.PeripheryTies),
		formatFloat(rec.Sensitivity),
		strconv.Itoa(rec.Trial),
		strconv.Itoa(rec.CoreAdopters),
		strconv.Itoa(rec.CoreNodes),
		strconv.Itoa(rec.PeripheryAdopters),
		strconv.Itoa(rec.PeripheryNodes),
		strconv.Itoa(rec.Weaknesses),
		strconv.Itoa(rec.PressurePoints),
	}
	if err := l.trialW.Write(row); err != nil {
		return fmt.Errorf("failed to write trial row: %w", err)
	}
	l.trialW.Flush()
	return l.trialW.Error()
}

// Case appends one row to the case log.
func (l *CSVLogs) Case(ctx context.Context, rec experiment.CaseRecord) error {
	row := []string{
		formatFloat(rec.Sensitivity),
		formatFloat(rec.PeripheralDensity),
		formatFloat(rec.PeripheralDiffusion),
		formatFloat(rec.CoreDiffusion),
	}
	if err := l.caseW.Write(row); err != nil {
		return fmt.Errorf("failed to write case row: %w", err)
	}
	l.caseW.Flush()
	return l.caseW.Error()
}

// Finish flushes and closes both log files.
func (l *CSVLogs) Finish(ctx context.Context, sum experiment.Summary) error {
	return l.Close()
}

// Close flushes and closes both log files. Safe to call more than once, so
// callers can defer it as a backstop for aborted runs.
func (l *CSVLogs) Close() error {
	var firstErr error

	if l.trialW != nil {
		l.trialW.Flush()
		if err := l.trialW.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.trialW = nil
	}
	if l.trialFile != nil {
		if err := l.trialFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.trialFile = nil
	}

	if l.caseW != nil {
		l.caseW.Flush()
		if err := l.caseW.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.caseW = nil
	}
	if l.caseFile != nil {
		if err := l.caseFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.caseFile = nil
	}

	return firstErr
}

// formatFloat renders v the shortest way that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
