package workerproc

import (
	"context"
	"time"

	"credit-backend/internal/jobs"
	"credit-backend/internal/shared/metrics"
	"credit-backend/internal/shared/telemetry"
)

// Default sweep timings.
const (
	DefaultStaleAfter    = 10 * time.Minute
	DefaultSweepInterval = 2 * time.Minute
)

// Sweeper periodically fails jobs whose updated_at has gone stale.
type Sweeper struct {
	Queue      jobs.Queue
	StaleAfter time.Duration
	Interval   time.Duration
}

// SweepOnce runs a single sweep and returns the reclaimed job ids.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]string, error) {
	staleAfter := s.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	ids, err := s.Queue.SweepStale(ctx, staleAfter)
	if err != nil {
		telemetry.Error("worker.sweep.failed", map[string]any{"error": err})
		return nil, err
	}
	if len(ids) > 0 {
		metrics.AddJobsSwept(int64(len(ids)))
		telemetry.Warn("worker.sweep.reclaimed", map[string]any{
			"count":   len(ids),
			"job_ids": ids,
		})
	}
	return ids, nil
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, _ = s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
