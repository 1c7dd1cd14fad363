// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/tidyrun/internal/plan"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrRunNotFound is returned by Get for an unknown run ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("ledger closed")
)

// =============================================================================
// RECORDS
// =============================================================================

// RunRecord is everything recorded about one clean run.
type RunRecord struct {
	ID         string             `json:"id"`
	Source     string             `json:"source"`
	Model      string             `json:"model,omitempty"`
	PlanID     string             `json:"plan_id,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	InputHash  string             `json:"input_hash"`
	OutputHash string             `json:"output_hash"`
	InputRows  int                `json:"input_rows"`
	OutputRows int                `json:"output_rows"`
	Steps      []plan.StepOutcome `json:"steps"`
}

// Summary is one line of run history.
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Model     string    `json:"model,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Steps     int       `json:"steps"`
	Applied   int       `json:"applied"`
	Failed    int       `json:"failed"`
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger stores run history in SQLite.
type Ledger struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *Ledger) conn() (*sql.DB, error) {
	if l.db == nil {
		return nil, ErrClosed
	}
	return l.db, nil
}

// Record stores rec with all of its steps and attempts in one transaction.
// A missing ID is generated; the ID used is returned.
func (l *Ledger) Record(ctx context.Context, rec RunRecord) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	db, err := l.conn()
	if err != nil {
		return "", err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, source, model, plan_id, started_at, finished_at,
		                  input_hash, output_hash, input_rows, output_rows)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.Model, rec.PlanID,
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		rec.InputHash, rec.OutputHash, rec.InputRows, rec.OutputRows)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, step := range rec.Steps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO steps (run_id, idx, description, status, error) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, step.Index, step.Step, step.Status.String(), step.Error)
		if err != nil {
			return "", fmt.Errorf("insert step %d: %w", step.Index+1, err)
		}
		for _, a := range step.Attempts {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO attempts (run_id, step_idx, number, code, error) VALUES (?, ?, ?, ?, ?)`,
				rec.ID, step.Index, a.Number, a.Code, a.Err)
			if err != nil {
				return "", fmt.Errorf("insert attempt %d of step %d: %w", a.Number, step.Index+1, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return rec.ID, nil
}

// List returns up to n most recent runs, newest first. n <= 0 means all.
func (l *Ledger) List(ctx context.Context, n int) ([]Summary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	db, err := l.conn()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = -1
	}

	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.source, r.model, r.started_at,
		       COUNT(s.idx),
		       COALESCE(SUM(CASE WHEN s.status = 'Applied' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN s.status = 'Failed' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN steps s ON s.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var started int64
		if err := rows.Scan(&s.ID, &s.Source, &s.Model, &started, &s.Steps, &s.Applied, &s.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns the full record of one run. A unique ID prefix is accepted.
func (l *Ledger) Get(ctx context.Context, id string) (*RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	db, err := l.conn()
	if err != nil {
		return nil, err
	}

	rec, err := l.getRun(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := l.loadSteps(ctx, db, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *Ledger) getRun(ctx context.Context, db *sql.DB, id string) (*RunRecord, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, source, model, plan_id, started_at, finished_at,
		       input_hash, output_hash, input_rows, output_rows
		FROM runs WHERE id = ? OR id LIKE ? || '%'
		ORDER BY id = ? DESC LIMIT 2`, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []*RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Model, &rec.PlanID, &started, &finished,
			&rec.InputHash, &rec.OutputHash, &rec.InputRows, &rec.OutputRows); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started).UTC()
		rec.FinishedAt = time.UnixMilli(finished).UTC()
		found = append(found, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case found[0].ID == id || len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("ambiguous run id prefix %q", id)
	}
}

func (l *Ledger) loadSteps(ctx context.Context, db *sql.DB, rec *RunRecord) error {
	rows, err := db.QueryContext(ctx,
		`SELECT idx, description, status, error FROM steps WHERE run_id = ? ORDER BY idx`, rec.ID)
	if err != nil {
		return fmt.Errorf("get steps: %w", err)
	}
	defer rows.Close()

	byIndex := make(map[int]int)
	for rows.Next() {
		var o plan.StepOutcome
		var status string
		if err := rows.Scan(&o.Index, &o.Step, &status, &o.Error); err != nil {
			return fmt.Errorf("scan step: %w", err)
		}
		if err := o.Status.UnmarshalText([]byte(status)); err != nil {
			return err
		}
		byIndex[o.Index] = len(rec.Steps)
		rec.Steps = append(rec.Steps, o)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// Release the only connection before the next query.
	rows.Close()

	attempts, err := db.QueryContext(ctx,
		`SELECT step_idx, number, code, error FROM attempts WHERE run_id = ? ORDER BY step_idx, number`, rec.ID)
	if err != nil {
		return fmt.Errorf("get attempts: %w", err)
	}
	defer attempts.Close()

	for attempts.Next() {
		var idx int
		var a plan.Attempt
		if err := attempts.Scan(&idx, &a.Number, &a.Code, &a.Err); err != nil {
			return fmt.Errorf("scan attempt: %w", err)
		}
		if i, ok := byIndex[idx]; ok {
			rec.Steps[i].Attempts = append(rec.Steps[i].Attempts, a)
		}
	}
	return attempts.Err()
}

// Delete removes a run and its steps.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	db, err := l.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
