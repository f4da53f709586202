package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

const (
	StatusRunning = "running"
	StatusOk      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// ErrRunInProgress is returned by Begin when another run already holds
// the single-flight reservation.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

type Counters struct {
	Scanned int64 `json:"scanned"`
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
	Blocked int64 `json:"blocked"`
	Skipped int64 `json:"skipped"`
	Errored int64 `json:"errored"`
}

type Run struct {
	Id            int64     `json:"id"`
	CorrelationId string    `json:"correlation_id"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	Status        string    `json:"status"`
	Counters      Counters  `json:"counters"`
	ErrorSummary  string    `json:"error_summary,omitempty"`
}

type Stats struct {
	WindowDays  int        `json:"window_days"`
	Total       int64      `json:"total"`
	Successful  int64      `json:"successful"`
	Failed      int64      `json:"failed"`
	SuccessRate float64    `json:"success_rate"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

type RunStore struct {
	db *sql.DB
}

func NewRunStore(database *sql.DB) RunStore {
	return RunStore{db: database}
}

// Begin inserts the running row for a new run. The partial unique
// index on status makes this insert the single-flight lock; when it
// conflicts, ErrRunInProgress is returned.
func (s RunStore) Begin(ctx context.Context, correlationId string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_run (correlation_id, started_at, status) VALUES (?, ?, ?)`,
		correlationId, startedAt.Unix(), StatusRunning)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrRunInProgress
	}
	return err
}

// RunningCorrelationId returns the correlation id of the in-flight run,
// or "" when idle.
func (s RunStore) RunningCorrelationId(ctx context.Context) (string, error) {
	var cid string
	err := s.db.QueryRowContext(ctx,
		`SELECT correlation_id FROM ingestion_run WHERE status = ?`,
		StatusRunning).Scan(&cid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return cid, err
}

// Finish marks the run terminal. Only the pipeline owning the
// correlation id calls this, exactly once.
func (s RunStore) Finish(ctx context.Context, correlationId, status string, counters Counters, errorSummary string, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_run SET
			status = ?, completed_at = ?,
			scanned = ?, created = ?, updated = ?, blocked = ?, skipped = ?, errored = ?,
			error_summary = ?
		WHERE correlation_id = ?`,
		status, completedAt.Unix(),
		counters.Scanned, counters.Created, counters.Updated,
		counters.Blocked, counters.Skipped, counters.Errored,
		errorSummary, correlationId)
	return err
}

// ReleaseStale flips any leftover running row to failed. Called once on
// startup so a crash mid-run can't wedge the single-flight lock forever.
func (s RunStore) ReleaseStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_run SET status = ?, completed_at = ?, error_summary = ?
		WHERE status = ?`,
		StatusFailed, now.Unix(), "abandoned: process exited mid-run", StatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s RunStore) Get(ctx context.Context, correlationId string) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, correlation_id, started_at, completed_at, status,
			scanned, created, updated, blocked, skipped, errored, error_summary
		FROM ingestion_run WHERE correlation_id = ?`, correlationId)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

func (s RunStore) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, correlation_id, started_at, completed_at, status,
			scanned, created, updated, blocked, skipped, errored, error_summary
		FROM ingestion_run ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s RunStore) Stats(ctx context.Context, windowDays int, now time.Time) (Stats, error) {
	since := now.AddDate(0, 0, -windowDays).Unix()

	stats := Stats{WindowDays: windowDays}
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN ('failed', 'partial') THEN 1 ELSE 0 END), 0)
		FROM ingestion_run
		WHERE started_at >= ? AND status != 'running'`,
		since).Scan(&stats.Total, &stats.Successful, &stats.Failed)
	if err != nil {
		return Stats{}, err
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.Total)
	}

	stats.LastSuccess, err = s.lastCompleted(ctx, `status = 'ok'`)
	if err != nil {
		return Stats{}, err
	}
	stats.LastFailure, err = s.lastCompleted(ctx, `status IN ('failed', 'partial')`)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s RunStore) lastCompleted(ctx context.Context, cond string) (*time.Time, error) {
	var unix sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(completed_at) FROM ingestion_run WHERE `+cond).Scan(&unix)
	if err != nil {
		return nil, err
	}
	if !unix.Valid || unix.Int64 == 0 {
		return nil, nil
	}
	t := time.Unix(unix.Int64, 0)
	return &t, nil
}

// Prune keeps the audit table bounded: only the most recent `keep`
// terminal runs survive.
func (s RunStore) Prune(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ingestion_run WHERE status != 'running' AND id NOT IN (
			SELECT id FROM ingestion_run WHERE status != 'running'
			ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	return err
}

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var run Run
	var started int64
	var completed sql.NullInt64
	err := row.Scan(
		&run.Id, &run.CorrelationId, &started, &completed, &run.Status,
		&run.Counters.Scanned, &run.Counters.Created, &run.Counters.Updated,
		&run.Counters.Blocked, &run.Counters.Skipped, &run.Counters.Errored,
		&run.ErrorSummary,
	)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.Unix(started, 0)
	if completed.Valid {
		run.CompletedAt = time.Unix(completed.Int64, 0)
	}
	return run, nil
}
