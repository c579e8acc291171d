package letters

import "context"

// Repo persists dispute letters.
type Repo interface {
	// Insert stores letter while the job identified by jobID is processing.
	// It returns jobs.ErrNotProcessing otherwise.
	Insert(ctx context.Context, jobID string, letter Letter) error
	ListForUser(ctx context.Context, userID, reportID string) ([]Letter, error)
}
