package reports

import (
	"context"

	"credit-backend/internal/jobs"
)

// Repo defines persistence operations for reports.
type Repo interface {
	// CreateWithJob inserts report and its first queued job atomically.
	CreateWithJob(ctx context.Context, report Report, job jobs.Job) error
	GetForUser(ctx context.Context, userID, reportID string) (Report, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Report, error)
	// Resubmit verifies ownership, deletes every job, the analysis result and
	// all letters for the report, then inserts next. All or nothing.
	Resubmit(ctx context.Context, userID, reportID string, next jobs.Job) error
}
