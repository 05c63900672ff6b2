package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lineage-data/motility.report/internal/lineage"
)

// RunCounters accumulates the outcome tallies of one batch run.
type RunCounters struct {
	LocationsTotal  int
	LocationsFailed int
	TracksTotal     int
	TracksRejected  int
	TracksFailed    int
	SubtracksTotal  int
}

// RunSummary is one row of the batch run history.
type RunSummary struct {
	RunID      string      `json:"run_id"`
	RootPath   string      `json:"root_path"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	Counters   RunCounters `json:"counters"`
}

// StartRun records a new batch run and returns its generated run id.
func (db *DB) StartRun(ctx context.Context, rootPath string, qc lineage.QCConfig) (string, error) {
	runID := uuid.New().String()
	_, err := db.ExecContext(ctx, `INSERT INTO batch_runs
			(run_id, root_path, max_splits_allowed, min_track_duration_frames, status)
		VALUES (?, ?, ?, ?, 'running')`,
		runID, rootPath, qc.MaxSplitsAllowed, qc.MinTrackDurationFrames)
	if err != nil {
		return "", fmt.Errorf("insert batch run: %w", err)
	}
	return runID, nil
}

// CompleteRun finalizes a run with its counters.
func (db *DB) CompleteRun(ctx context.Context, runID string, c RunCounters) error {
	_, err := db.ExecContext(ctx, `UPDATE batch_runs SET
			finished_at = CURRENT_TIMESTAMP,
			locations_total = ?, locations_failed = ?,
			tracks_total = ?, tracks_rejected = ?, tracks_failed = ?,
			subtracks_total = ?,
			status = 'completed'
		WHERE run_id = ?`,
		c.LocationsTotal, c.LocationsFailed,
		c.TracksTotal, c.TracksRejected, c.TracksFailed,
		c.SubtracksTotal, runID)
	if err != nil {
		return fmt.Errorf("complete batch run %s: %w", runID, err)
	}
	return nil
}

// FailRun marks a run as failed with an error message. Counters written so
// far by CompleteRun are untouched; a failed run keeps its defaults.
func (db *DB) FailRun(ctx context.Context, runID, errMsg string) error {
	_, err := db.ExecContext(ctx, `UPDATE batch_runs SET
			finished_at = CURRENT_TIMESTAMP,
			status = 'failed',
			error = ?
		WHERE run_id = ?`,
		errMsg, runID)
	if err != nil {
		return fmt.Errorf("fail batch run %s: %w", runID, err)
	}
	return nil
}

// Runs returns the run history, most recent first.
func (db *DB) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			run_id, root_path, started_at, finished_at,
			locations_total, locations_failed,
			tracks_total, tracks_rejected, tracks_failed,
			subtracks_total, status, COALESCE(error, '')
		FROM batch_runs
		ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query batch runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var finished sql.NullTime
		if err := rows.Scan(&r.RunID, &r.RootPath, &r.StartedAt, &finished,
			&r.Counters.LocationsTotal, &r.Counters.LocationsFailed,
			&r.Counters.TracksTotal, &r.Counters.TracksRejected, &r.Counters.TracksFailed,
			&r.Counters.SubtracksTotal, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan batch run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
