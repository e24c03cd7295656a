// Package storage keeps a SQLite journal of cleanup and restore runs.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/martinsuchenak/fmcsweep/internal/model"
	_ "modernc.org/sqlite"
)

// Run kinds
const (
	RunCleanup = "cleanup"
	RunRestore = "restore"
)

// Run is one invocation of cleanup or restore
type Run struct {
	ID         string
	Kind       string
	Endpoint   string
	Operator   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Succeeded  int
	Failed     int
}

// SQLiteStorage is the journal backed by a SQLite file
type SQLiteStorage struct {
	db *sql.DB
}

// NewStorage opens or creates the journal at path and applies migrations
func NewStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	ss := &SQLiteStorage{db: db}
	if err := ss.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return ss, nil
}

func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

// StartRun records the start of a run and returns its ID
func (ss *SQLiteStorage) StartRun(kind, endpoint, operator string) (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating run ID: %w", err)
	}
	id := u.String()
	_, err = ss.db.Exec(`
		INSERT INTO runs (id, kind, endpoint, operator, started_at, status)
		VALUES (?, ?, ?, ?, ?, 'running')
	`, id, kind, endpoint, operator, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as finished with status
func (ss *SQLiteStorage) FinishRun(id, status string) error {
	res, err := ss.db.Exec(`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`, time.Now().UTC(), status, id)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// Record stores the outcome of a single delete or create
func (ss *SQLiteStorage) Record(o model.Outcome) error {
	_, err := ss.db.Exec(`
		INSERT INTO outcomes (run_id, category, action, name, object_id, pass, succeeded, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.RunID, string(o.Category), o.Action, o.Name, o.ObjectID, o.Pass, o.Succeeded, o.Message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", o.Name, err)
	}
	return nil
}

// ListRuns returns the most recent runs first, with outcome counts
func (ss *SQLiteStorage) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := ss.db.Query(`
		SELECT r.id, r.kind, r.endpoint, r.operator, r.started_at, r.finished_at, r.status,
			COALESCE(SUM(CASE WHEN o.succeeded THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.succeeded THEN 0 ELSE 1 END), 0)
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.Endpoint, &r.Operator, &r.StartedAt, &finished, &r.Status, &r.Succeeded, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListOutcomes returns the outcomes of a run in the order they were recorded
func (ss *SQLiteStorage) ListOutcomes(runID string) ([]model.Outcome, error) {
	rows, err := ss.db.Query(`
		SELECT run_id, category, action, name, object_id, pass, succeeded, message
		FROM outcomes
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		var o model.Outcome
		var category string
		if err := rows.Scan(&o.RunID, &category, &o.Action, &o.Name, &o.ObjectID, &o.Pass, &o.Succeeded, &o.Message); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Category = model.Category(category)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
