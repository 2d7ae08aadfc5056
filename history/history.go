// Package history records run outcomes in an SQLite database inside the
// output directory, so drift can be inspected across runs without keeping
// every report around.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hazyhaar/dasite/dbopen"
	"github.com/hazyhaar/dasite/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	start_url         TEXT,
	threshold         REAL NOT NULL,
	targets           INTEGER NOT NULL,
	changed           INTEGER NOT NULL,
	created_baselines INTEGER NOT NULL,
	max_diff_pct      REAL NOT NULL,
	passed            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_targets (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	target        TEXT NOT NULL,
	url           TEXT,
	changed       INTEGER NOT NULL,
	diff_pct      REAL NOT NULL,
	diff_pixels   INTEGER NOT NULL,
	regions       INTEGER NOT NULL,
	error         TEXT,
	PRIMARY KEY (run_id, target)
);

CREATE INDEX IF NOT EXISTS idx_run_targets_target ON run_targets(target);
`

// DBFile is the history database filename inside the output directory.
const DBFile = "history.db"

// Store persists run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database inside dir.
func Open(dir string) (*Store, error) {
	db, err := dbopen.Open(filepath.Join(dir, DBFile),
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(schema),
	)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database (tests).
func NewWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordRun persists one run and its per-target rows.
func (s *Store) RecordRun(ctx context.Context, run *report.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, start_url, threshold, targets, changed, created_baselines, max_diff_pct, passed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(time.RFC3339),
		run.StartURL,
		run.Threshold,
		len(run.Targets),
		run.ChangedCount,
		run.CreatedBaselines,
		run.MaxDiff,
		boolInt(run.Passed),
	)
	if err != nil {
		return fmt.Errorf("history: insert run: %w", err)
	}

	for _, t := range run.Targets {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_targets (run_id, target, url, changed, diff_pct, diff_pixels, regions, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, t.Target, t.URL, boolInt(t.Changed), t.DiffPercentage, t.DiffPixels, len(t.Regions), t.Error,
		)
		if err != nil {
			return fmt.Errorf("history: insert target %s: %w", t.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// RunSummary is one row of the run log.
type RunSummary struct {
	ID               string
	StartedAt        time.Time
	StartURL         string
	Threshold        float64
	Targets          int
	Changed          int
	CreatedBaselines int
	MaxDiff          float64
	Passed           bool
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, start_url, threshold, targets, changed, created_baselines, max_diff_pct, passed
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started string
		var passed int
		if err := rows.Scan(&r.ID, &started, &r.StartURL, &r.Threshold, &r.Targets, &r.Changed, &r.CreatedBaselines, &r.MaxDiff, &passed); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.Passed = passed != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// TargetTrend is one target's diff percentage in one run.
type TargetTrend struct {
	RunID     string
	StartedAt time.Time
	DiffPct   float64
	Changed   bool
}

// TargetHistory returns a target's diff trend across runs, newest first.
func (s *Store) TargetHistory(ctx context.Context, target string, limit int) ([]TargetTrend, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rt.run_id, r.started_at, rt.diff_pct, rt.changed
		 FROM run_targets rt JOIN runs r ON r.id = rt.run_id
		 WHERE rt.target = ?
		 ORDER BY r.started_at DESC, r.id DESC LIMIT ?`, target, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query target %s: %w", target, err)
	}
	defer rows.Close()

	var out []TargetTrend
	for rows.Next() {
		var t TargetTrend
		var started string
		var changed int
		if err := rows.Scan(&t.RunID, &started, &t.DiffPct, &changed); err != nil {
			return nil, fmt.Errorf("history: scan trend: %w", err)
		}
		t.StartedAt, _ = time.Parse(time.RFC3339, started)
		t.Changed = changed != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
