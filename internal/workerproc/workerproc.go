// Package workerproc runs the report pipeline: a poll loop that claims jobs
// one at a time, the stage processor and the stale-job sweeper.
package workerproc

import (
	"context"
	"errors"
	"time"

	"credit-backend/internal/jobs"
	"credit-backend/internal/shared/metrics"
	"credit-backend/internal/shared/telemetry"
)

// Default loop timings.
const (
	DefaultPollInterval = time.Second
	DefaultErrorBackoff = 2 * time.Second
)

// JobProcessor processes one claimed job.
type JobProcessor interface {
	Process(ctx context.Context, job jobs.Job) error
}

// StepResult describes what one loop iteration did.
type StepResult int

const (
	// StepIdle means no job was queued.
	StepIdle StepResult = iota
	// StepProcessed means a job was claimed and driven to an end state.
	StepProcessed
	// StepClaimError means the claim itself failed; nothing changed.
	StepClaimError
	// StepStopped means the context was cancelled before claiming.
	StepStopped
)

func (r StepResult) String() string {
	switch r {
	case StepIdle:
		return "idle"
	case StepProcessed:
		return "processed"
	case StepClaimError:
		return "claim_error"
	case StepStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Loop claims and processes jobs sequentially.
type Loop struct {
	Queue        jobs.Queue
	Processor    JobProcessor
	PollInterval time.Duration
	ErrorBackoff time.Duration
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Step performs one claim and, when a job is available, processes it fully.
// The job runs on a context detached from ctx's cancellation so a shutdown
// lets it finish.
func (l *Loop) Step(ctx context.Context) StepResult {
	if ctx.Err() != nil {
		return StepStopped
	}
	job, ok, err := l.Queue.ClaimNext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return StepStopped
		}
		metrics.IncClaimErrors()
		telemetry.Error("worker.claim.failed", map[string]any{"error": err})
		return StepClaimError
	}
	if !ok {
		return StepIdle
	}

	metrics.IncJobsClaimed()
	telemetry.Info("worker.job.claimed", map[string]any{
		"job_id":    job.ID,
		"report_id": job.ReportID,
	})
	if err := l.Processor.Process(context.WithoutCancel(ctx), job); err != nil {
		var se *StageError
		if !errors.As(err, &se) && !errors.Is(err, jobs.ErrNotProcessing) {
			telemetry.Error("worker.job.error", map[string]any{
				"job_id": job.ID,
				"error":  err,
			})
		}
	}
	return StepProcessed
}

// Run loops until ctx is cancelled: idle steps sleep PollInterval, claim
// errors sleep ErrorBackoff, processed steps claim again immediately.
func (l *Loop) Run(ctx context.Context) error {
	poll := l.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	backoff := l.ErrorBackoff
	if backoff <= 0 {
		backoff = DefaultErrorBackoff
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	telemetry.Info("worker.started", map[string]any{
		"poll_interval_ms": poll.Milliseconds(),
		"error_backoff_ms": backoff.Milliseconds(),
	})
	for {
		var wait time.Duration
		switch l.Step(ctx) {
		case StepStopped:
			telemetry.Info("worker.stopped", nil)
			return nil
		case StepIdle:
			wait = poll
		case StepClaimError:
			wait = backoff
		case StepProcessed:
			continue
		}
		if err := sleep(ctx, wait); err != nil {
			telemetry.Info("worker.stopped", nil)
			return nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
