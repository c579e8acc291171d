package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"credit-backend/internal/analyses"
	"credit-backend/internal/jobs"
	"credit-backend/internal/letters"
	"credit-backend/internal/reports"
	"credit-backend/internal/shared/util"
)

type cliTestEnv struct {
	queue   *jobs.MemoryQueue
	service *reports.Service
	backend *backend
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	queue := jobs.NewMemoryQueue()
	results := analyses.NewMemoryRepo(queue.IsProcessing)
	letterRepo := letters.NewMemoryRepo(queue.IsProcessing)
	svc := &reports.Service{
		Repo:       reports.NewMemoryRepo(queue, results, letterRepo),
		Jobs:       queue,
		Results:    results,
		LetterRepo: letterRepo,
	}
	return &cliTestEnv{
		queue:   queue,
		service: svc,
		backend: &backend{queue: queue, service: svc},
	}
}

func (e *cliTestEnv) createReport(t *testing.T, userID string) (reports.Report, jobs.Job) {
	t.Helper()
	report, job, err := e.service.Create(context.Background(), userID, util.OwnerPrefix(userID)+"uploads/r.pdf", "r.pdf")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return report, job
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommandWith(func(ctx context.Context, databaseURL string) (*backend, error) {
		return env.backend, nil
	})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}

func TestJobsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	_, job := env.createReport(t, "user-1")

	out, err := runCLI(t, env, "jobs", "list", "--status", "queued")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, jobs.ProgressQueued)

	out, err = runCLI(t, env, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list failed: %v", err)
	}
	requireContains(t, out, "No failed jobs")

	out, err = runCLI(t, env, "jobs", "show", job.ID)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	var view jobView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	if view.ID != job.ID || view.UserID != "user-1" || view.Status != jobs.StatusQueued {
		t.Fatalf("unexpected job view: %+v", view)
	}
}

func TestJobsListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "jobs", "list", "--status", "paused"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestJobsShowUnknown(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := runCLI(t, env, "jobs", "show", "missing")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected jobs.ErrNotFound, got %v", err)
	}
}

func TestSweepFailsStaleJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	_, job := env.createReport(t, "user-1")
	env.queue.WithClock(func() time.Time { return time.Now().UTC().Add(time.Hour) })

	out, err := runCLI(t, env, "sweep", "--older-than", "10m")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	requireContains(t, out, "Reclaimed 1 stale job(s)")
	requireContains(t, out, job.ID)

	got, err := env.queue.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusFailed || got.ErrorMessage() != jobs.ReasonJobTimeout {
		t.Fatalf("unexpected swept job: %+v", got)
	}
}

func TestRetryRequiresForceForUnfinishedJob(t *testing.T) {
	env := setupCLITestEnv(t)
	_, job := env.createReport(t, "user-1")

	if _, err := runCLI(t, env, "retry", job.ID); err == nil {
		t.Fatalf("expected retry of a queued job to need --force")
	}

	out, err := runCLI(t, env, "retry", "--force", job.ID)
	if err != nil {
		t.Fatalf("retry --force: %v", err)
	}
	requireContains(t, out, "resubmitted as job")

	if _, err := env.queue.Get(context.Background(), job.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected old job removed, got %v", err)
	}
}

func TestRetryFailedJob(t *testing.T) {
	env := setupCLITestEnv(t)
	report, _ := env.createReport(t, "user-1")
	claimed, ok, err := env.queue.ClaimNext(context.Background())
	if err != nil || !ok {
		t.Fatalf("ClaimNext: ok=%v err=%v", ok, err)
	}
	if err := env.queue.Fail(context.Background(), claimed.ID, "extract_failed: bad pdf"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	if _, err := runCLI(t, env, "retry", claimed.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}

	queued, err := env.queue.ListByStatus(context.Background(), jobs.StatusQueued, 10)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(queued) != 1 || queued[0].ReportID != report.ID {
		t.Fatalf("expected one fresh queued job for the report, got %+v", queued)
	}
}

func TestEnqueueCreatesReport(t *testing.T) {
	env := setupCLITestEnv(t)
	key := util.OwnerPrefix("user-9") + "uploads/report.txt"

	out, err := runCLI(t, env, "enqueue", "--user", "user-9", "--key", key)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	requireContains(t, out, "queued as job")

	if _, err := runCLI(t, env, "enqueue", "--user", "user-9", "--key", "someone-else/uploads/r.txt"); !errors.Is(err, reports.ErrForbiddenKey) {
		t.Fatalf("expected ErrForbiddenKey, got %v", err)
	}
}

func TestMigrateNeedsPostgres(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "migrate", "version"); !errors.Is(err, errNoMigrations) {
		t.Fatalf("expected errNoMigrations, got %v", err)
	}

	var applied bool
	env.backend.migrate = func(context.Context) error { applied = true; return nil }
	env.backend.version = func(context.Context) (int64, error) { return 1, nil }
	if _, err := runCLI(t, env, "migrate", "up"); err != nil || !applied {
		t.Fatalf("migrate up: applied=%v err=%v", applied, err)
	}
	out, err := runCLI(t, env, "migrate", "version")
	if err != nil {
		t.Fatalf("migrate version: %v", err)
	}
	requireContains(t, out, "Schema version 1")
}
