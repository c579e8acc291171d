package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue implements Queue in memory and is safe for concurrent use. The
// mutex stands in for the row lock: a claim selects and flips a job under it.
type MemoryQueue struct {
	mu   sync.Mutex
	byID map[string]*memJob
	seq  int64
	now  func() time.Time
}

type memJob struct {
	job Job
	seq int64
}

// NewMemoryQueue constructs a MemoryQueue using the wall clock.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		byID: make(map[string]*memJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for updated_at and sweeps.
func (q *MemoryQueue) WithClock(now func() time.Time) *MemoryQueue {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
	return q
}

// Enqueue inserts a queued job.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.insertLocked(job)
	return nil
}

func (q *MemoryQueue) insertLocked(job Job) {
	job.Status = StatusQueued
	job.Progress = strPtr(ProgressQueued)
	job.Error = nil
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	q.seq++
	q.byID[job.ID] = &memJob{job: job, seq: q.seq}
}

// ClaimNext moves the oldest queued job to processing/Downloading.
func (q *MemoryQueue) ClaimNext(ctx context.Context) (Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var next *memJob
	for _, m := range q.byID {
		if m.job.Status != StatusQueued {
			continue
		}
		if next == nil || older(m, next) {
			next = m
		}
	}
	if next == nil {
		return Job{}, false, nil
	}
	next.job.Status = StatusProcessing
	next.job.Progress = strPtr(ProgressDownloading)
	next.job.Error = nil
	next.job.UpdatedAt = q.now()
	return next.job, true, nil
}

func older(a, b *memJob) bool {
	if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
		return a.job.CreatedAt.Before(b.job.CreatedAt)
	}
	return a.seq < b.seq
}

// SetProgress records a new stage label for a processing job.
func (q *MemoryQueue) SetProgress(ctx context.Context, jobID, progress string) error {
	return q.transition(ctx, jobID, func(j *Job) {
		j.Progress = strPtr(progress)
	})
}

// Complete marks a processing job complete.
func (q *MemoryQueue) Complete(ctx context.Context, jobID string) error {
	return q.transition(ctx, jobID, func(j *Job) {
		j.Status = StatusComplete
		j.Progress = strPtr(ProgressComplete)
		j.Error = nil
	})
}

// Fail marks a processing job failed with reason.
func (q *MemoryQueue) Fail(ctx context.Context, jobID, reason string) error {
	return q.transition(ctx, jobID, func(j *Job) {
		j.Status = StatusFailed
		j.Progress = strPtr(ProgressError)
		j.Error = strPtr(reason)
	})
}

func (q *MemoryQueue) transition(ctx context.Context, jobID string, apply func(*Job)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.byID[jobID]
	if !ok || m.job.Status != StatusProcessing {
		return ErrNotProcessing
	}
	apply(&m.job)
	m.job.UpdatedAt = q.now()
	return nil
}

// SweepStale fails queued or processing jobs not updated within olderThan.
func (q *MemoryQueue) SweepStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	cutoff := now.Add(-olderThan)
	var ids []string
	for id, m := range q.byID {
		if m.job.Status != StatusQueued && m.job.Status != StatusProcessing {
			continue
		}
		if !m.job.UpdatedAt.Before(cutoff) {
			continue
		}
		m.job.Status = StatusFailed
		m.job.Progress = strPtr(ProgressError)
		m.job.Error = strPtr(ReasonJobTimeout)
		m.job.UpdatedAt = now
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Get returns a job by id.
func (q *MemoryQueue) Get(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return m.job, nil
}

// GetForUser returns a job owned by userID.
func (q *MemoryQueue) GetForUser(ctx context.Context, userID, jobID string) (Job, error) {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.UserID != userID {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListByStatus returns up to limit jobs with status, oldest first.
func (q *MemoryQueue) ListByStatus(ctx context.Context, status string, limit int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var matched []*memJob
	for _, m := range q.byID {
		if m.job.Status == status {
			matched = append(matched, m)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return older(matched[i], matched[j]) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]Job, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.job)
	}
	return out, nil
}

// ListByReport returns every job row for reportID, oldest first.
func (q *MemoryQueue) ListByReport(ctx context.Context, reportID string) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	var matched []*memJob
	for _, m := range q.byID {
		if m.job.ReportID == reportID {
			matched = append(matched, m)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return older(matched[i], matched[j]) })
	out := make([]Job, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.job)
	}
	return out, nil
}

// ReplaceForReport deletes every job for reportID and inserts next, as one step.
func (q *MemoryQueue) ReplaceForReport(ctx context.Context, reportID string, next Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, m := range q.byID {
		if m.job.ReportID == reportID {
			delete(q.byID, id)
		}
	}
	q.insertLocked(next)
	return nil
}

// IsProcessing reports whether jobID exists and is processing.
func (q *MemoryQueue) IsProcessing(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.byID[jobID]
	return ok && m.job.Status == StatusProcessing
}

// Touch sets updated_at on a job. Tests use it to age rows.
func (q *MemoryQueue) Touch(jobID string, at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if m, ok := q.byID[jobID]; ok {
		m.job.UpdatedAt = at
	}
}

var _ Queue = (*MemoryQueue)(nil)
