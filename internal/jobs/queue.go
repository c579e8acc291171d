package jobs

import (
	"context"
	"database/sql"
	"time"
)

// Queue is the table-backed work queue. Claim, progress, complete and fail
// are the worker's operations; Sweep is the stale-job safety net.
type Queue interface {
	// Enqueue inserts a queued job.
	Enqueue(ctx context.Context, job Job) error
	// ClaimNext moves the oldest unlocked queued job to processing/Downloading
	// and returns it. ok is false when nothing is claimable.
	ClaimNext(ctx context.Context) (job Job, ok bool, err error)
	// SetProgress, Complete and Fail only apply while the job is processing
	// and return ErrNotProcessing otherwise.
	SetProgress(ctx context.Context, jobID, progress string) error
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, reason string) error
	// SweepStale fails queued or processing jobs not updated within olderThan
	// and returns their ids.
	SweepStale(ctx context.Context, olderThan time.Duration) ([]string, error)
	Get(ctx context.Context, jobID string) (Job, error)
	GetForUser(ctx context.Context, userID, jobID string) (Job, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]Job, error)
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertQueuedSQL = `
INSERT INTO jobs (id, user_id, report_id, status, progress, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// InsertQueued writes job through ex so callers can enqueue inside their own
// transaction.
func InsertQueued(ctx context.Context, ex Execer, job Job) error {
	_, err := ex.ExecContext(ctx, insertQueuedSQL,
		job.ID,
		job.UserID,
		job.ReportID,
		StatusQueued,
		ProgressQueued,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}
