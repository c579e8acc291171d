package reports

import (
	"context"
	"database/sql"
	"errors"

	"credit-backend/internal/jobs"
	"credit-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateWithJob inserts the report and its queued job in one transaction.
func (r *PGRepo) CreateWithJob(ctx context.Context, report Report, job jobs.Job) error {
	const query = `
INSERT INTO reports (id, user_id, file_key, filename, created_at)
VALUES ($1, $2, $3, $4, $5)`
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query,
			report.ID,
			report.UserID,
			report.FileKey,
			report.FileName,
			report.CreatedAt,
		); err != nil {
			return err
		}
		return jobs.InsertQueued(ctx, tx, job)
	})
}

// GetForUser returns a report owned by userID.
func (r *PGRepo) GetForUser(ctx context.Context, userID, reportID string) (Report, error) {
	const query = `
SELECT id, user_id, file_key, filename, created_at
FROM reports
WHERE id = $1 AND user_id = $2`
	var rep Report
	err := r.DB.QueryRowContext(ctx, query, reportID, userID).Scan(
		&rep.ID,
		&rep.UserID,
		&rep.FileKey,
		&rep.FileName,
		&rep.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	return rep, nil
}

// ListByUser returns a user's reports, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Report, error) {
	const query = `
SELECT id, user_id, file_key, filename, created_at
FROM reports
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var rep Report
		if err := rows.Scan(&rep.ID, &rep.UserID, &rep.FileKey, &rep.FileName, &rep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Resubmit resets the report's pipeline state and queues a fresh job. Jobs are
// deleted before letters so the delete waits on any worker still holding a
// share lock on its job row while writing artifacts.
func (r *PGRepo) Resubmit(ctx context.Context, userID, reportID string, next jobs.Job) error {
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM reports WHERE id = $1 AND user_id = $2 FOR UPDATE`, reportID, userID).Scan(&id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		for _, stmt := range []string{
			`DELETE FROM jobs WHERE report_id = $1`,
			`DELETE FROM analysis_results WHERE report_id = $1`,
			`DELETE FROM dispute_letters WHERE report_id = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, reportID); err != nil {
				return err
			}
		}
		return jobs.InsertQueued(ctx, tx, next)
	})
}

var _ Repo = (*PGRepo)(nil)
