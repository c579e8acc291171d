package analyses

import (
	"context"
	"sync"
	"time"

	"credit-backend/internal/jobs"
)

// ProcessingCheck reports whether a job still holds its report.
type ProcessingCheck func(jobID string) bool

// MemoryRepo stores results in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	byReport map[string]Result
	holds    ProcessingCheck
}

// NewMemoryRepo constructs a MemoryRepo. holds may be nil to skip the
// processing guard.
func NewMemoryRepo(holds ProcessingCheck) *MemoryRepo {
	return &MemoryRepo{
		byReport: make(map[string]Result),
		holds:    holds,
	}
}

// Upsert replaces the report's result.
func (r *MemoryRepo) Upsert(ctx context.Context, jobID string, result Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.holds != nil && !r.holds(jobID) {
		return jobs.ErrNotProcessing
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	result.CreatedAt = time.Now().UTC()
	result.Document = append([]byte(nil), result.Document...)
	r.byReport[result.ReportID] = result
	return nil
}

// GetForUser returns the result for a report owned by userID.
func (r *MemoryRepo) GetForUser(ctx context.Context, userID, reportID string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byReport[reportID]
	if !ok || res.UserID != userID {
		return Result{}, ErrNotFound
	}
	return res, nil
}

// DeleteByReport removes the report's result.
func (r *MemoryRepo) DeleteByReport(ctx context.Context, reportID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byReport, reportID)
	return nil
}

// Count returns the number of stored results.
func (r *MemoryRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byReport)
}

var _ Repo = (*MemoryRepo)(nil)
