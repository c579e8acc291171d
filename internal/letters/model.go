package letters

import (
	"time"

	"github.com/google/uuid"
)

// Bureaus is the fixed list letters are generated for, in generation order.
var Bureaus = []string{"Equifax", "Experian", "TransUnion"}

// Letter is a generated dispute letter for one bureau.
type Letter struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"report_id"`
	UserID      string    `json:"-"`
	Bureau      string    `json:"bureau"`
	FileKey     string    `json:"file_key"`
	ContentText string    `json:"content_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// New builds a letter row with a fresh id.
func New(userID, reportID, bureau, fileKey, content string, now time.Time) Letter {
	return Letter{
		ID:          uuid.NewString(),
		ReportID:    reportID,
		UserID:      userID,
		Bureau:      bureau,
		FileKey:     fileKey,
		ContentText: content,
		CreatedAt:   now,
	}
}
