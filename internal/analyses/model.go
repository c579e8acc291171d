package analyses

import (
	"encoding/json"
	"time"
)

// Result is the analysis document for a report. Document is opaque to the
// pipeline and stored as-is; one row per report, last write wins.
type Result struct {
	ReportID  string          `json:"report_id"`
	UserID    string          `json:"-"`
	Document  json.RawMessage `json:"result_json"`
	CreatedAt time.Time       `json:"created_at"`
}
