package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. complete and failed are terminal for a row; a resubmission
// inserts a new row instead of reviving an old one.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Progress labels shown to polling clients.
const (
	ProgressQueued            = "Queued"
	ProgressDownloading       = "Downloading"
	ProgressParsing           = "Parsing"
	ProgressAnalyzing         = "Analyzing"
	ProgressGeneratingLetters = "GeneratingLetters"
	ProgressComplete          = "Complete"
	ProgressError             = "Error"
)

// ReasonJobTimeout is the error recorded by the stale sweep.
const ReasonJobTimeout = "job_timeout"

// Job is one unit of pipeline work for a report. It doubles as the status
// read model returned by the API.
type Job struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	ReportID  string    `json:"report_id"`
	Status    string    `json:"status"`
	Progress  *string   `json:"progress"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewQueued builds a fresh queued job for reportID.
func NewQueued(userID, reportID string, now time.Time) Job {
	progress := ProgressQueued
	return Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		ReportID:  reportID,
		Status:    StatusQueued,
		Progress:  &progress,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether status is complete or failed.
func IsTerminal(status string) bool {
	return status == StatusComplete || status == StatusFailed
}

// ProgressLabel returns the progress label or "".
func (j Job) ProgressLabel() string {
	if j.Progress == nil {
		return ""
	}
	return *j.Progress
}

// ErrorMessage returns the recorded error or "".
func (j Job) ErrorMessage() string {
	if j.Error == nil {
		return ""
	}
	return *j.Error
}

func strPtr(s string) *string { return &s }
