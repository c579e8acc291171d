package workerproc

import (
	"strings"
	"unicode/utf8"
)

// Reason codes recorded on failed jobs. Codes followed by ": detail" carry a
// sanitized copy of the underlying error.
const (
	ReasonReportNotFound      = "report_not_found"
	ReasonReportLookupFailed  = "report_lookup_failed"
	ReasonBlobNotFound        = "blob_not_found"
	ReasonBlobFetchFailed     = "blob_fetch_failed"
	ReasonExtractFailed       = "extract_failed"
	ReasonAnalysisFailed      = "analysis_failed"
	ReasonPersistResultFailed = "persist_result_failed"
	ReasonProgressFailed      = "progress_update_failed"
	ReasonPanic               = "panic"
)

const maxReasonLen = 500

// StageError is a fatal-to-job failure. Reason is what gets stored on the job.
type StageError struct {
	Stage  string
	Reason string
	Err    error
}

func (e *StageError) Error() string { return e.Reason }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage, code string, err error) *StageError {
	reason := code
	if err != nil {
		reason = code + ": " + err.Error()
	}
	return &StageError{Stage: stage, Reason: sanitizeReason(reason), Err: err}
}

// sanitizeReason folds reason onto one line and caps it at maxReasonLen bytes
// without splitting a rune.
func sanitizeReason(reason string) string {
	reason = strings.Join(strings.Fields(reason), " ")
	if len(reason) <= maxReasonLen {
		return reason
	}
	cut := maxReasonLen
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
