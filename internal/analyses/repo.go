package analyses

import "context"

// Repo defines persistence operations for analysis results.
type Repo interface {
	// Upsert writes result while jobID is still processing and returns
	// jobs.ErrNotProcessing otherwise.
	Upsert(ctx context.Context, jobID string, result Result) error
	GetForUser(ctx context.Context, userID, reportID string) (Result, error)
}
