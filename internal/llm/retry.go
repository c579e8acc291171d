package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"credit-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// Engine analyzes reports and drafts letters.
type Engine interface {
	Analyzer
	LetterDrafter
}

// Retrying retries a call once after a short delay when the first error
// looks transient.
type Retrying struct {
	Base  Engine
	Delay time.Duration
}

// NewRetrying wraps base.
func NewRetrying(base Engine) *Retrying {
	return &Retrying{Base: base, Delay: retryBaseDelay}
}

// Analyze calls Base.Analyze with one retry.
func (r *Retrying) Analyze(ctx context.Context, text string) (json.RawMessage, error) {
	resp, err := r.Base.Analyze(ctx, text)
	if err == nil || !ShouldRetry(err) {
		return resp, err
	}
	if err := r.wait(ctx, "analyze", err); err != nil {
		return nil, err
	}
	return r.Base.Analyze(ctx, text)
}

// DraftLetter calls Base.DraftLetter with one retry.
func (r *Retrying) DraftLetter(ctx context.Context, bureau string, findings json.RawMessage) (string, error) {
	text, err := r.Base.DraftLetter(ctx, bureau, findings)
	if err == nil || !ShouldRetry(err) {
		return text, err
	}
	if err := r.wait(ctx, "draft_letter", err); err != nil {
		return "", err
	}
	return r.Base.DraftLetter(ctx, bureau, findings)
}

func (r *Retrying) wait(ctx context.Context, op string, cause error) error {
	telemetry.Warn("llm.retry", map[string]any{"op": op, "attempt": 1, "error": cause})
	delay := r.Delay
	if delay <= 0 {
		delay = retryBaseDelay
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShouldRetry reports whether err looks like a timeout, a dropped connection,
// a rate limit or a provider-side 5xx.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrNotImplemented) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "status 5") || strings.Contains(msg, "status 429") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "request timeout") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "unexpected eof")
}

var _ Engine = (*Retrying)(nil)
