package reports

import (
	"time"

	"github.com/google/uuid"
)

// Report is one uploaded credit-report document. It is never updated; a
// delete cascades to its jobs, analysis result and letters.
type Report struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FileKey   string    `json:"file_key"`
	FileName  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// New builds a report with a fresh id.
func New(userID, fileKey, fileName string, now time.Time) Report {
	return Report{
		ID:        uuid.NewString(),
		UserID:    userID,
		FileKey:   fileKey,
		FileName:  fileName,
		CreatedAt: now,
	}
}
