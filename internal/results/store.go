// Package results persists experiment output.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ckirkos/disim/internal/diffusion"
	"github.com/ckirkos/disim/internal/experiment"
)

// Store records runs in a SQLite database. It implements experiment.Sink.
// One Store can record any number of runs in sequence; each Begin opens a
// new run row and subsequent trial and case records attach to it.
type Store struct {
	db    *sql.DB
	path  string
	runID string
}

// Open opens the results database at path, creating it and its schema if
// needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin inserts the run row and makes it the current run.
func (s *Store) Begin(ctx context.Context, run experiment.RunMeta) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, direction, nodes, core_nodes, trials, base_seed, params, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Direction), run.Nodes, run.CoreNodes, run.Trials,
		run.BaseSeed, string(params), run.Started.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	s.runID = run.ID
	return nil
}

// Trial records one trial under the current run.
func (s *Store) Trial(ctx context.Context, rec experiment.TrialRecord) error {
	curve, err := json.Marshal(rec.Curve)
	if err != nil {
		return fmt.Errorf("failed to marshal curve: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trial_log (run_id, periphery_ties, sensitivity, trial, seed_agent,
			core_adopters, core_nodes, periphery_adopters, periphery_nodes,
			weaknesses, pressure_points, cycles, outcome, curve)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, rec.PeripheryTies, rec.Sensitivity, rec.Trial, rec.SeedID,
		rec.CoreAdopters, rec.CoreNodes, rec.PeripheryAdopters, rec.PeripheryNodes,
		rec.Weaknesses, rec.PressurePoints, rec.Cycles, string(rec.Outcome), string(curve))
	if err != nil {
		return fmt.Errorf("failed to insert trial: %w", err)
	}
	return nil
}

// Case records one case aggregate under the current run.
func (s *Store) Case(ctx context.Context, rec experiment.CaseRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO case_log (run_id, periphery_ties, sensitivity, trials,
			peripheral_density, peripheral_diffusion, core_diffusion)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.runID, rec.PeripheryTies, rec.Sensitivity, rec.Trials,
		rec.PeripheralDensity, rec.PeripheralDiffusion, rec.CoreDiffusion)
	if err != nil {
		return fmt.Errorf("failed to insert case: %w", err)
	}
	return nil
}

// Finish stamps the run row with its final tallies.
func (s *Store) Finish(ctx context.Context, sum experiment.Summary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, cases = ?, trials_run = ?, trials_failed = ?, elapsed_ns = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), sum.Cases, sum.TrialsRun,
		sum.TrialsFailed, int64(sum.Elapsed), sum.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check finish update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", sum.RunID)
	}
	return nil
}

// RunInfo is one row of the runs table.
type RunInfo struct {
	ID           string        `json:"id"`
	Direction    string        `json:"direction"`
	Nodes        int           `json:"nodes"`
	CoreNodes    int           `json:"core_nodes"`
	Trials       int           `json:"trials"`
	BaseSeed     int64         `json:"base_seed"`
	Started      time.Time     `json:"started"`
	Finished     time.Time     `json:"finished,omitzero"` // zero while the run is in flight
	Cases        int           `json:"cases"`
	TrialsRun    int           `json:"trials_run"`
	TrialsFailed int           `json:"trials_failed"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// ListRuns returns all recorded runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, direction, nodes, core_nodes, trials, base_seed, started_at,
			finished_at, cases, trials_run, trials_failed, elapsed_ns
		FROM runs ORDER BY rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		info, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*RunInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, direction, nodes, core_nodes, trials, base_seed, started_at,
			finished_at, cases, trials_run, trials_failed, elapsed_ns
		FROM runs WHERE id = ?`, id)

	info, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, err
	}
	return &info, nil
}

// RunCases returns the case aggregates of a run in grid order.
func (s *Store) RunCases(ctx context.Context, runID string) ([]experiment.CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.direction, c.periphery_ties, c.sensitivity, c.trials,
			c.peripheral_density, c.peripheral_diffusion, c.core_diffusion
		FROM case_log c JOIN runs r ON r.id = c.run_id
		WHERE c.run_id = ?
		ORDER BY c.periphery_ties, c.sensitivity`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []experiment.CaseRecord
	for rows.Next() {
		var rec experiment.CaseRecord
		var direction string
		if err := rows.Scan(&direction, &rec.PeripheryTies, &rec.Sensitivity, &rec.Trials,
			&rec.PeripheralDensity, &rec.PeripheralDiffusion, &rec.CoreDiffusion); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		rec.Direction = diffusion.Direction(direction)
		cases = append(cases, rec)
	}
	return cases, rows.Err()
}

// RunTrials returns the individual trial records of a run in grid order.
func (s *Store) RunTrials(ctx context.Context, runID string) ([]experiment.TrialRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.direction, t.periphery_ties, t.sensitivity, t.trial, t.seed_agent,
			t.core_adopters, t.core_nodes, t.periphery_adopters, t.periphery_nodes,
			t.weaknesses, t.pressure_points, t.cycles, t.outcome, t.curve
		FROM trial_log t JOIN runs r ON r.id = t.run_id
		WHERE t.run_id = ?
		ORDER BY t.periphery_ties, t.sensitivity, t.trial`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var trials []experiment.TrialRecord
	for rows.Next() {
		var rec experiment.TrialRecord
		var direction, outcome, curve string
		if err := rows.Scan(&direction, &rec.PeripheryTies, &rec.Sensitivity, &rec.Trial,
			&rec.SeedID, &rec.CoreAdopters, &rec.CoreNodes, &rec.PeripheryAdopters,
			&rec.PeripheryNodes, &rec.Weaknesses, &rec.PressurePoints, &rec.Cycles,
			&outcome, &curve); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		rec.Direction = diffusion.Direction(direction)
		rec.Outcome = diffusion.Outcome(outcome)
		if err := json.Unmarshal([]byte(curve), &rec.Curve); err != nil {
			return nil, fmt.Errorf("failed to decode curve: %w", err)
		}
		trials = append(trials, rec)
	}
	return trials, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunInfo, error) {
	var info RunInfo
	var started string
	var finished sql.NullString
	var elapsed int64
	if err := row.Scan(&info.ID, &info.Direction, &info.Nodes, &info.CoreNodes,
		&info.Trials, &info.BaseSeed, &started, &finished, &info.Cases,
		&info.TrialsRun, &info.TrialsFailed, &elapsed); err != nil {
		return RunInfo{}, err
	}

	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		info.Started = t
	}
	if finished.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
			info.Finished = t
		}
	}
	info.Elapsed = time.Duration(elapsed)
	return info, nil
}
