package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/bpm-calibrate/internal/capture"
	"github.com/banshee-data/bpm-calibrate/internal/experiment"
	"github.com/banshee-data/bpm-calibrate/internal/sweep"
)

// Sweep statuses.
const (
	SweepRunning   = "running"
	SweepCompleted = "completed"
	SweepFailed    = "failed"
	SweepCancelled = "cancelled"
)

// Sweep is one invocation of a run or sweep command.
type Sweep struct {
	ID         string
	Kind       string
	OutDir     string
	ConfigPath string
	// Params is a free-form description of the sweep axes.
	Params    string
	Status    string
	Points    int
	Completed int
	Skipped   int
	Error     string
	Started   time.Time
	Finished  time.Time
}

// Run is a stored run record.
type Run struct {
	ID string
	sweep.RunRecord
}

// StartSweep inserts s with status running. An empty ID is filled with a
// new UUID.
func (db *DB) StartSweep(ctx context.Context, s *Sweep) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Status = SweepRunning
	_, err := db.ExecContext(ctx, `
		INSERT INTO sweeps (sweep_id, kind, out_dir, config_path, params, status, points, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Kind, s.OutDir, s.ConfigPath, s.Params, s.Status, s.Points, s.Started.UnixNano())
	if err != nil {
		return fmt.Errorf("insert sweep: %w", err)
	}
	return nil
}

// FinishSweep stores the outcome of a sweep. runErr decides the status:
// nil is completed, a cancellation is cancelled, anything else failed.
func (db *DB) FinishSweep(ctx context.Context, id string, sum *sweep.Summary, finished time.Time, runErr error) error {
	status := SweepCompleted
	switch {
	case errors.Is(runErr, experiment.ErrCancelled):
		status = SweepCancelled
	case runErr != nil:
		status = SweepFailed
	}

	var points, completed, skipped int
	if sum != nil {
		points, completed, skipped = sum.Points, sum.Completed, sum.Skipped
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := db.ExecContext(ctx, `
		UPDATE sweeps
		SET status = ?, points = ?, completed = ?, skipped = ?, error = ?, finished_unix_nanos = ?
		WHERE sweep_id = ?`,
		status, points, completed, skipped, msg, finished.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("update sweep %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update sweep %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// RecordRun stores one run. It implements sweep.Recorder.
func (db *DB) RecordRun(ctx context.Context, rec sweep.RunRecord) error {
	stats := ""
	if len(rec.Stats) > 0 {
		b, err := json.Marshal(rec.Stats)
		if err != nil {
			return fmt.Errorf("encode run stats: %w", err)
		}
		stats = string(b)
	}

	var sweepID sql.NullString
	if rec.SweepID != "" {
		sweepID = sql.NullString{String: rec.SweepID, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, sweep_id, point, namespace, seq_index, datapath, artifact_path,
			signature, state, stage, exit_code, hardware_touched, error, stats_json,
			start_unix_nanos, finished_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), sweepID, rec.Point, rec.Namespace, rec.Index, rec.Datapath, rec.ArtifactPath,
		rec.Signature, rec.State, rec.Stage, rec.ExitCode, rec.HardwareTouched, rec.Error, stats,
		unixNanos(rec.Start), unixNanos(rec.Finished))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunQuery filters ListRuns.
type RunQuery struct {
	SweepID string
	// FailedOnly keeps runs that did not reach the done state.
	FailedOnly bool
	// Limit bounds the result; zero means 100.
	Limit int
}

// ListRuns returns runs newest first.
func (db *DB) ListRuns(ctx context.Context, q RunQuery) ([]Run, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT run_id, COALESCE(sweep_id, ''), point, namespace, seq_index, datapath, artifact_path,
		       signature, state, stage, exit_code, hardware_touched, error, stats_json,
		       start_unix_nanos, finished_unix_nanos
		FROM runs WHERE 1 = 1`
	var args []interface{}
	if q.SweepID != "" {
		query += " AND sweep_id = ?"
		args = append(args, q.SweepID)
	}
	if q.FailedOnly {
		query += " AND state != 'done'"
	}
	query += " ORDER BY finished_unix_nanos DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r               Run
			stats           string
			start, finished int64
			touched         bool
		)
		if err := rows.Scan(&r.ID, &r.SweepID, &r.Point, &r.Namespace, &r.Index, &r.Datapath, &r.ArtifactPath,
			&r.Signature, &r.State, &r.Stage, &r.ExitCode, &touched, &r.Error, &stats,
			&start, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.HardwareTouched = touched
		r.Start = fromUnixNanos(start)
		r.Finished = fromUnixNanos(finished)
		if stats != "" {
			var cs []capture.ColumnStats
			if err := json.Unmarshal([]byte(stats), &cs); err != nil {
				return nil, fmt.Errorf("decode stats of run %s: %w", r.ID, err)
			}
			r.Stats = cs
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListSweeps returns sweeps newest first.
func (db *DB) ListSweeps(ctx context.Context, limit int) ([]Sweep, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT sweep_id, kind, out_dir, config_path, params, status, points, completed, skipped, error,
		       started_unix_nanos, COALESCE(finished_unix_nanos, 0)
		FROM sweeps ORDER BY started_unix_nanos DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sweeps: %w", err)
	}
	defer rows.Close()

	var sweeps []Sweep
	for rows.Next() {
		var (
			s                 Sweep
			started, finished int64
		)
		if err := rows.Scan(&s.ID, &s.Kind, &s.OutDir, &s.ConfigPath, &s.Params, &s.Status,
			&s.Points, &s.Completed, &s.Skipped, &s.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		s.Started = fromUnixNanos(started)
		s.Finished = fromUnixNanos(finished)
		sweeps = append(sweeps, s)
	}
	return sweeps, rows.Err()
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
