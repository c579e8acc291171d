package reports

import (
	"context"
	"sort"
	"sync"

	"credit-backend/internal/jobs"
)

// ArtifactStore is a per-report store cleared on resubmission.
type ArtifactStore interface {
	DeleteByReport(ctx context.Context, reportID string) error
}

// MemoryRepo stores reports in memory. It shares a jobs.MemoryQueue with the
// worker and clears the given artifact stores on resubmission.
type MemoryRepo struct {
	mu        sync.Mutex
	byID      map[string]Report
	queue     *jobs.MemoryQueue
	artifacts []ArtifactStore
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo(queue *jobs.MemoryQueue, artifacts ...ArtifactStore) *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Report),
		queue:     queue,
		artifacts: artifacts,
	}
}

// CreateWithJob stores the report and enqueues job.
func (r *MemoryRepo) CreateWithJob(ctx context.Context, report Report, job jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.queue.Enqueue(ctx, job); err != nil {
		return err
	}
	r.byID[report.ID] = report
	return nil
}

// GetForUser returns a report owned by userID.
func (r *MemoryRepo) GetForUser(ctx context.Context, userID, reportID string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.byID[reportID]
	if !ok || rep.UserID != userID {
		return Report{}, ErrNotFound
	}
	return rep, nil
}

// ListByUser returns a user's reports, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	var out []Report
	for _, rep := range r.byID {
		if rep.UserID == userID {
			out = append(out, rep)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Report{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Resubmit clears artifacts and replaces the report's jobs with next.
func (r *MemoryRepo) Resubmit(ctx context.Context, userID, reportID string, next jobs.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.byID[reportID]
	if !ok || rep.UserID != userID {
		return ErrNotFound
	}
	if err := r.queue.ReplaceForReport(ctx, reportID, next); err != nil {
		return err
	}
	for _, a := range r.artifacts {
		if err := a.DeleteByReport(ctx, reportID); err != nil {
			return err
		}
	}
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
