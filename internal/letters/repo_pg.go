package letters

import (
	"context"
	"database/sql"

	"credit-backend/internal/jobs"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Insert adds a letter row under the same processing guard as the analysis upsert.
func (r *PGRepo) Insert(ctx context.Context, jobID string, letter Letter) error {
	const query = `
INSERT INTO dispute_letters (id, report_id, user_id, bureau, file_key, content_text, created_at)
SELECT $1, $2, $3, $4, $5, $6, $7
WHERE EXISTS (
	SELECT 1 FROM jobs WHERE id = $8 AND status = 'processing' FOR SHARE
)`
	res, err := r.DB.ExecContext(ctx, query,
		letter.ID,
		letter.ReportID,
		letter.UserID,
		letter.Bureau,
		letter.FileKey,
		letter.ContentText,
		letter.CreatedAt,
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

// ListForUser returns the report's letters ordered by bureau.
func (r *PGRepo) ListForUser(ctx context.Context, userID, reportID string) ([]Letter, error) {
	const query = `
SELECT id, report_id, user_id, bureau, file_key, content_text, created_at
FROM dispute_letters
WHERE report_id = $1 AND user_id = $2
ORDER BY bureau ASC, created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, reportID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Letter{}
	for rows.Next() {
		var l Letter
		if err := rows.Scan(
			&l.ID,
			&l.ReportID,
			&l.UserID,
			&l.Bureau,
			&l.FileKey,
			&l.ContentText,
			&l.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
