package jobs

import "errors"

var (
	ErrNotFound = errors.New("job not found")
	// ErrNotProcessing means a guarded transition matched no row: the job was
	// swept, deleted by a resubmission, or already finished.
	ErrNotProcessing = errors.New("job is no longer processing")
)
