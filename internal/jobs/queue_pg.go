package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"credit-backend/internal/shared/storage/db"
)

// PGQueue implements Queue on the Postgres jobs table.
type PGQueue struct {
	DB *sql.DB
}

const jobColumns = `id, user_id, report_id, status, progress, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var progress sql.NullString
	var errMsg sql.NullString
	if err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.ReportID,
		&j.Status,
		&progress,
		&errMsg,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return Job{}, err
	}
	if progress.Valid {
		j.Progress = strPtr(progress.String)
	}
	if errMsg.Valid {
		j.Error = strPtr(errMsg.String)
	}
	return j, nil
}

// Enqueue inserts a queued job.
func (q *PGQueue) Enqueue(ctx context.Context, job Job) error {
	return InsertQueued(ctx, q.DB, job)
}

// ClaimNext locks the oldest queued row with SKIP LOCKED and flips it to
// processing before the transaction commits, so no other worker can see it
// as queued.
func (q *PGQueue) ClaimNext(ctx context.Context) (Job, bool, error) {
	const selectQuery = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'queued'
ORDER BY created_at ASC, id ASC
LIMIT 1
FOR UPDATE SKIP LOCKED`
	const updateQuery = `
UPDATE jobs
SET status = 'processing', progress = $2, error = NULL, updated_at = now()
WHERE id = $1
RETURNING updated_at`

	var job Job
	err := db.WithTx(ctx, q.DB, func(tx *sql.Tx) error {
		var err error
		job, err = scanJob(tx.QueryRowContext(ctx, selectQuery))
		if err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, updateQuery, job.ID, ProgressDownloading).Scan(&job.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, false, nil
		}
		return Job{}, false, err
	}

	job.Status = StatusProcessing
	job.Progress = strPtr(ProgressDownloading)
	job.Error = nil
	return job, true, nil
}

// SetProgress records a new stage label for a processing job.
func (q *PGQueue) SetProgress(ctx context.Context, jobID, progress string) error {
	const query = `
UPDATE jobs
SET progress = $2, updated_at = now()
WHERE id = $1 AND status = 'processing'`
	return q.guardedExec(ctx, query, jobID, progress)
}

// Complete marks a processing job complete.
func (q *PGQueue) Complete(ctx context.Context, jobID string) error {
	const query = `
UPDATE jobs
SET status = 'complete', progress = $2, error = NULL, updated_at = now()
WHERE id = $1 AND status = 'processing'`
	return q.guardedExec(ctx, query, jobID, ProgressComplete)
}

// Fail marks a processing job failed with reason.
func (q *PGQueue) Fail(ctx context.Context, jobID, reason string) error {
	const query = `
UPDATE jobs
SET status = 'failed', progress = $2, error = $3, updated_at = now()
WHERE id = $1 AND status = 'processing'`
	return q.guardedExec(ctx, query, jobID, ProgressError, reason)
}

func (q *PGQueue) guardedExec(ctx context.Context, query string, args ...any) error {
	res, err := q.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotProcessing
	}
	return nil
}

// SweepStale fails every queued or processing job whose updated_at is older
// than olderThan, measured on the database clock.
func (q *PGQueue) SweepStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	const query = `
UPDATE jobs
SET status = 'failed', progress = $1, error = $2, updated_at = now()
WHERE status IN ('queued', 'processing')
  AND updated_at < now() - make_interval(secs => $3)
RETURNING id`
	rows, err := q.DB.QueryContext(ctx, query, ProgressError, ReasonJobTimeout, olderThan.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get returns a job by id regardless of owner.
func (q *PGQueue) Get(ctx context.Context, jobID string) (Job, error) {
	const query = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return q.getOne(ctx, query, jobID)
}

// GetForUser returns a job owned by userID.
func (q *PGQueue) GetForUser(ctx context.Context, userID, jobID string) (Job, error) {
	const query = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1 AND user_id = $2`
	return q.getOne(ctx, query, jobID, userID)
}

func (q *PGQueue) getOne(ctx context.Context, query string, args ...any) (Job, error) {
	job, err := scanJob(q.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// ListByStatus returns up to limit jobs with status, oldest first.
func (q *PGQueue) ListByStatus(ctx context.Context, status string, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2`
	rows, err := q.DB.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

var _ Queue = (*PGQueue)(nil)
