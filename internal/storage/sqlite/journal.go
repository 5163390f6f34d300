// Package sqlite keeps a journal of pipeline runs: every graph update and
// the evaluations critics produced, queryable after the run.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dotcommander/storyteller/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	pipeline TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	last_error TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	finished_at INTEGER NULL
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	graph TEXT NOT NULL,
	step INTEGER NOT NULL,
	node TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, id);

CREATE TABLE IF NOT EXISTS evaluations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	node TEXT NOT NULL,
	label TEXT NOT NULL,
	reasoning TEXT NOT NULL,
	changes TEXT NOT NULL,
	criteria TEXT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_evaluations_run ON evaluations(run_id, id);
`

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

type Run struct {
	ID         string
	Pipeline   string
	Title      string
	Status     string
	LastError  string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Event is one node update of a graph run. Payload is stored as JSON.
type Event struct {
	Graph   string
	Step    int
	Node    string
	Payload any
}

type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at path and migrates its schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; parallel nodes record through the same connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun registers a new run and returns its ID.
func (j *Journal) StartRun(ctx context.Context, pipeline, title string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs(id, pipeline, title, status, started_at) VALUES(?, ?, ?, ?, ?)`,
		id, pipeline, title, StatusRunning, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

func (j *Journal) RecordEvent(ctx context.Context, runID string, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events(run_id, graph, step, node, payload, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		runID, e.Graph, e.Step, e.Node, string(payload), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// RecordEvaluations stores the evaluations produced by node in one
// transaction.
func (j *Journal) RecordEvaluations(ctx context.Context, runID, node string, evals []domain.Evaluation) error {
	if len(evals) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin evaluations: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().UnixMilli()
	for _, e := range evals {
		var criteria sql.NullString
		if e.Criteria != nil {
			raw, err := json.Marshal(e.Criteria)
			if err != nil {
				return fmt.Errorf("encode criteria: %w", err)
			}
			criteria = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO evaluations(run_id, node, label, reasoning, changes, criteria, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?)`,
			runID, node, e.Label, e.Reasoning, e.Changes, criteria, now,
		); err != nil {
			return fmt.Errorf("record evaluation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evaluations: %w", err)
	}
	return nil
}

// FinishRun closes a run as succeeded, or failed when runErr is not nil.
func (j *Journal) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := j.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, last_error = ?, finished_at = ? WHERE id = ?`,
		status, msg, time.Now().UTC().UnixMilli(), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

func (j *Journal) Run(ctx context.Context, runID string) (Run, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT id, pipeline, title, status, last_error, started_at, finished_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// Runs lists the most recent runs first, at most limit of them.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, pipeline, title, status, last_error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var started int64
	var finished sql.NullInt64
	if err := row.Scan(&r.ID, &r.Pipeline, &r.Title, &r.Status, &r.LastError, &started, &finished); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		r.FinishedAt = &t
	}
	return r, nil
}

// Events returns the nodes recorded for a run, in recording order.
func (j *Journal) Events(ctx context.Context, runID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT graph, step, node, payload FROM events WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var payload string
		if err := rows.Scan(&e.Graph, &e.Step, &e.Node, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Evaluations returns a run's evaluations in recording order.
func (j *Journal) Evaluations(ctx context.Context, runID string) ([]domain.Evaluation, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT label, reasoning, changes, criteria FROM evaluations WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var out []domain.Evaluation
	for rows.Next() {
		var e domain.Evaluation
		var criteria sql.NullString
		if err := rows.Scan(&e.Label, &e.Reasoning, &e.Changes, &criteria); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if criteria.Valid {
			var c domain.Criteria
			if err := json.Unmarshal([]byte(criteria.String), &c); err != nil {
				return nil, fmt.Errorf("decode criteria: %w", err)
			}
			e.Criteria = &c
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}
