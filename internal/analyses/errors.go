package analyses

import "errors"

var (
	ErrNotFound = errors.New("analysis result not found")
	// ErrEmptyDocument is returned when the engine produced no output.
	ErrEmptyDocument = errors.New("analysis_empty")
)
