package workerproc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"credit-backend/internal/jobs"
)

type scriptedQueue struct {
	jobs.Queue
	mu      sync.Mutex
	results []claimResult
	claims  int
}

type claimResult struct {
	job jobs.Job
	ok  bool
	err error
}

func (q *scriptedQueue) ClaimNext(ctx context.Context) (jobs.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.claims++
	if len(q.results) == 0 {
		return jobs.Job{}, false, nil
	}
	r := q.results[0]
	q.results = q.results[1:]
	return r.job, r.ok, r.err
}

type recordingProcessor struct {
	processed []string
	ctxErrs   []error
	err       error
}

func (p *recordingProcessor) Process(ctx context.Context, job jobs.Job) error {
	p.processed = append(p.processed, job.ID)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

func TestStepOutcomes(t *testing.T) {
	q := &scriptedQueue{results: []claimResult{
		{err: errors.New("connection refused")},
		{job: jobs.Job{ID: "job-1"}, ok: true},
		{},
	}}
	proc := &recordingProcessor{}
	loop := &Loop{Queue: q, Processor: proc}
	ctx := context.Background()

	if got := loop.Step(ctx); got != StepClaimError {
		t.Fatalf("expected claim error, got %s", got)
	}
	if got := loop.Step(ctx); got != StepProcessed {
		t.Fatalf("expected processed, got %s", got)
	}
	if got := loop.Step(ctx); got != StepIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if len(proc.processed) != 1 || proc.processed[0] != "job-1" {
		t.Fatalf("unexpected processed jobs %v", proc.processed)
	}
}

func TestStepCountsFailedJobAsProcessed(t *testing.T) {
	q := &scriptedQueue{results: []claimResult{{job: jobs.Job{ID: "job-1"}, ok: true}}}
	proc := &recordingProcessor{err: &StageError{Stage: jobs.ProgressParsing, Reason: "extract_failed: bad pdf"}}
	loop := &Loop{Queue: q, Processor: proc}
	if got := loop.Step(context.Background()); got != StepProcessed {
		t.Fatalf("expected processed, got %s", got)
	}
}

func TestStepStoppedWhenCancelled(t *testing.T) {
	q := &scriptedQueue{}
	loop := &Loop{Queue: q, Processor: &recordingProcessor{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := loop.Step(ctx); got != StepStopped {
		t.Fatalf("expected stopped, got %s", got)
	}
	if q.claims != 0 {
		t.Fatalf("cancelled loop must not claim")
	}
}

func TestRunSleepsPerOutcomeAndFinishesInFlightJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := &scriptedQueue{results: []claimResult{
		{},
		{err: errors.New("db down")},
		{job: jobs.Job{ID: "job-1"}, ok: true},
		{},
	}}
	proc := &recordingProcessor{}
	var waits []time.Duration
	loop := &Loop{
		Queue:        q,
		Processor:    proc,
		PollInterval: time.Second,
		ErrorBackoff: 2 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			if len(waits) == 3 {
				cancel()
				return ctx.Err()
			}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not stop")
	}

	want := []time.Duration{time.Second, 2 * time.Second, time.Second}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("waits = %v, want %v", waits, want)
		}
	}
	if len(proc.processed) != 1 || proc.ctxErrs[0] != nil {
		t.Fatalf("expected one job processed on a live context, got %v %v", proc.processed, proc.ctxErrs)
	}
}

func TestRunProcessesWithDetachedContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &scriptedQueue{results: []claimResult{{job: jobs.Job{ID: "job-1"}, ok: true}}}
	proc := &recordingProcessor{}
	loop := &Loop{Queue: q, Processor: processorFunc(func(pctx context.Context, job jobs.Job) error {
		cancel()
		return proc.Process(pctx, job)
	})}

	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(proc.ctxErrs) != 1 || proc.ctxErrs[0] != nil {
		t.Fatalf("in-flight job context must survive shutdown, got %v", proc.ctxErrs)
	}
}

type processorFunc func(ctx context.Context, job jobs.Job) error

func (f processorFunc) Process(ctx context.Context, job jobs.Job) error { return f(ctx, job) }
