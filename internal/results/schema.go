// Package results persists experiment output.
package results

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the results store.
const schemaV1 = `
-- One row per simulation run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    direction TEXT NOT NULL,       -- 'down' or 'up'
    nodes INTEGER NOT NULL,
    core_nodes INTEGER NOT NULL,
    trials INTEGER NOT NULL,
    base_seed INTEGER NOT NULL,
    params TEXT,                   -- JSON parameter snapshot
    started_at TEXT NOT NULL,
    finished_at TEXT,              -- NULL while the run is in flight
    cases INTEGER DEFAULT 0,
    trials_run INTEGER DEFAULT 0,
    trials_failed INTEGER DEFAULT 0,
    elapsed_ns INTEGER DEFAULT 0
);

-- Per-trial log
CREATE TABLE IF NOT EXISTS trial_log (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    periphery_ties INTEGER NOT NULL,
    sensitivity REAL NOT NULL,
    trial INTEGER NOT NULL,
    seed_agent INTEGER NOT NULL,
    core_adopters INTEGER NOT NULL,
    core_nodes INTEGER NOT NULL,
    periphery_adopters INTEGER NOT NULL,
    periphery_nodes INTEGER NOT NULL,
    weaknesses INTEGER NOT NULL,
    pressure_points INTEGER NOT NULL,
    cycles INTEGER NOT NULL,
    outcome TEXT NOT NULL,         -- 'converged' or 'cycle_limit'
    curve TEXT,                    -- JSON array of cumulative adopters per cycle
    PRIMARY KEY (run_id, periphery_ties, sensitivity, trial)
);

-- Per-case aggregates (one row per grid cell)
CREATE TABLE IF NOT EXISTS case_log (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    periphery_ties INTEGER NOT NULL,
    sensitivity REAL NOT NULL,
    trials INTEGER NOT NULL,
    peripheral_density REAL NOT NULL,
    peripheral_diffusion REAL NOT NULL,
    core_diffusion REAL NOT NULL,
    PRIMARY KEY (run_id, periphery_ties, sensitivity)
);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema initializes the database schema.
// It creates all tables and applies migrations as needed.
// Runs integrity validation before migrations on existing databases.
func InitSchema(ctx context.Context, db *sql.DB) error {
	// Check current schema version
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	// Validate database integrity before migrations
	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	// Apply migrations if needed
	if currentVersion < SchemaVersion {
		if err := migrateSchema(ctx, db, currentVersion); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// createSchema creates the initial database schema.
func createSchema(ctx context.Context, db *sql.DB) error {
	// Execute schema in a transaction
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Create all tables
	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	// Record schema version
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateSchema applies migrations from currentVersion to SchemaVersion.
func migrateSchema(ctx context.Context, db *sql.DB, currentVersion int) error {
	// Currently only one version, no migrations needed
	// When we add v2, migrations go here
	_ = currentVersion
	return nil
}

// ValidateIntegrity runs SQLite integrity checks on the database.
// It runs PRAGMA integrity_check and PRAGMA foreign_key_check.
// Returns an error if any issues are found.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	// Run PRAGMA integrity_check
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	// Run PRAGMA foreign_key_check
	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}

	return nil
}
