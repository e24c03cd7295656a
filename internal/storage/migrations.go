package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate brings the journal schema up to date
func (ss *SQLiteStorage) Migrate() error {
	if _, err := ss.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	if err := ss.MigrateToV1(); err != nil {
		return err
	}
	return ss.MigrateToV2()
}

func (ss *SQLiteStorage) version() (int, error) {
	var version int
	err := ss.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("checking migration version: %w", err)
	}
	return version, nil
}

// MigrateToV1 creates the runs and outcomes tables
func (ss *SQLiteStorage) MigrateToV1() error {
	version, err := ss.version()
	if err != nil {
		return err
	}
	if version >= 1 {
		return nil
	}

	tx, err := ss.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		CREATE TABLE runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			status TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}

	_, err = tx.Exec(`
		CREATE TABLE outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			category TEXT NOT NULL,
			action TEXT NOT NULL,
			name TEXT NOT NULL,
			object_id TEXT,
			pass INTEGER NOT NULL DEFAULT 0,
			succeeded BOOLEAN NOT NULL,
			message TEXT,
			recorded_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating outcomes table: %w", err)
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id)`)
	if err != nil {
		return fmt.Errorf("creating outcomes index: %w", err)
	}

	_, err = tx.Exec(`INSERT OR IGNORE INTO schema_migrations (version) VALUES (1)`)
	if err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// MigrateToV2 adds the operator column to runs
func (ss *SQLiteStorage) MigrateToV2() error {
	version, err := ss.version()
	if err != nil {
		return err
	}
	if version >= 2 {
		return nil
	}

	tx, err := ss.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`ALTER TABLE runs ADD COLUMN operator TEXT NOT NULL DEFAULT ''`)
	if err != nil && !isDuplicateColumnError(err) {
		return fmt.Errorf("adding operator column: %w", err)
	}

	_, err = tx.Exec(`INSERT OR IGNORE INTO schema_migrations (version) VALUES (2)`)
	if err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

func isDuplicateColumnError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column")
}
