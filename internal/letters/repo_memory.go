package letters

import (
	"context"
	"sort"
	"sync"

	"credit-backend/internal/jobs"
)

// MemoryRepo stores letters in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu    sync.RWMutex
	rows  []Letter
	holds func(jobID string) bool
}

// NewMemoryRepo constructs a MemoryRepo. holds may be nil to skip the
// processing guard.
func NewMemoryRepo(holds func(jobID string) bool) *MemoryRepo {
	return &MemoryRepo{holds: holds}
}

// Insert appends letter.
func (r *MemoryRepo) Insert(ctx context.Context, jobID string, letter Letter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.holds != nil && !r.holds(jobID) {
		return jobs.ErrNotProcessing
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, letter)
	return nil
}

// ListForUser returns the report's letters ordered by bureau.
func (r *MemoryRepo) ListForUser(ctx context.Context, userID, reportID string) ([]Letter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Letter{}
	for _, l := range r.rows {
		if l.ReportID == reportID && l.UserID == userID {
			out = append(out, l)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bureau < out[j].Bureau })
	return out, nil
}

// DeleteByReport removes every letter for reportID.
func (r *MemoryRepo) DeleteByReport(ctx context.Context, reportID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, l := range r.rows {
		if l.ReportID != reportID {
			kept = append(kept, l)
		}
	}
	r.rows = kept
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
