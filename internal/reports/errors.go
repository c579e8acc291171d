package reports

import "errors"

var (
	ErrNotFound     = errors.New("report not found")
	ErrForbiddenKey = errors.New("file key is outside the caller's namespace")
	ErrValidation   = errors.New("invalid report")
)
