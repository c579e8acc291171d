package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Analyzer turns extracted report text into a structured analysis document.
// The document's shape belongs to the provider; callers treat it as opaque.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (json.RawMessage, error)
}

// LetterDrafter writes the plain-text body of a dispute letter to bureau from
// the analysis findings.
type LetterDrafter interface {
	DraftLetter(ctx context.Context, bureau string, findings json.RawMessage) (string, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient stands in when no provider is configured.
type PlaceholderClient struct{}

// Analyze returns ErrNotImplemented.
func (PlaceholderClient) Analyze(ctx context.Context, text string) (json.RawMessage, error) {
	return nil, ErrNotImplemented
}

// DraftLetter returns ErrNotImplemented.
func (PlaceholderClient) DraftLetter(ctx context.Context, bureau string, findings json.RawMessage) (string, error) {
	return "", ErrNotImplemented
}

// Truncate returns at most max runes of text.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i]
		}
		n++
	}
	return text
}

var (
	_ Analyzer      = PlaceholderClient{}
	_ LetterDrafter = PlaceholderClient{}
)
