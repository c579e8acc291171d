package analyses

import (
	"context"
	"database/sql"
	"errors"

	"credit-backend/internal/jobs"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Upsert inserts or replaces the report's result. The insert only happens
// while the owning job is processing; the share lock makes a concurrent
// resubmission wait for this statement.
func (r *PGRepo) Upsert(ctx context.Context, jobID string, result Result) error {
	const query = `
INSERT INTO analysis_results (report_id, user_id, result_json, created_at)
SELECT $1, $2, $3::jsonb, now()
WHERE EXISTS (
	SELECT 1 FROM jobs WHERE id = $4 AND status = 'processing' FOR SHARE
)
ON CONFLICT (report_id) DO UPDATE
SET result_json = EXCLUDED.result_json, user_id = EXCLUDED.user_id, created_at = now()`
	res, err := r.DB.ExecContext(ctx, query,
		result.ReportID,
		result.UserID,
		string(result.Document),
		jobID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return jobs.ErrNotProcessing
	}
	return nil
}

// GetForUser returns the result for a report owned by userID.
func (r *PGRepo) GetForUser(ctx context.Context, userID, reportID string) (Result, error) {
	const query = `
SELECT report_id, user_id, result_json, created_at
FROM analysis_results
WHERE report_id = $1 AND user_id = $2`
	var res Result
	var doc []byte
	err := r.DB.QueryRowContext(ctx, query, reportID, userID).Scan(
		&res.ReportID,
		&res.UserID,
		&doc,
		&res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}
	res.Document = doc
	return res, nil
}

var _ Repo = (*PGRepo)(nil)
