package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"credit-backend/internal/jobs"
	"credit-backend/internal/shared/config"
	"credit-backend/internal/shared/storage/object"
	"credit-backend/internal/workerproc"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		LLMProvider:     "none",
		Worker: config.WorkerConfig{
			MaxAnalysisChars: 1000,
		},
	}
}

func TestBuildInMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), memoryConfig(t), RoleAPI)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !app.InMemory() {
		t.Fatalf("expected in-memory app without DATABASE_URL")
	}
	if _, ok := app.Queue.(*jobs.MemoryQueue); !ok {
		t.Fatalf("expected memory queue, got %T", app.Queue)
	}
	if app.Router == nil || app.Processor == nil || app.Generator == nil {
		t.Fatalf("expected router, processor and generator to be wired")
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Env = "production"
	if _, err := Build(context.Background(), cfg, RoleWorker); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildOpenAIRequiresKeyOutsideDev(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := buildLLM(config.Config{Env: "production", LLMProvider: "openai"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := buildLLM(config.Config{Env: "dev", LLMProvider: "openai"}); err != nil {
		t.Fatalf("expected placeholder fallback in dev, got %v", err)
	}
}

func TestInMemoryPipelineEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(context.Background(), memoryConfig(t), RoleAPI)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	const user = "user-42"
	key := object.UploadKey(user, "report.txt", time.Now())
	if _, err := app.Store.SaveWithKey(context.Background(), key, "text/plain", strings.NewReader("MIDLAND CREDIT collection")); err != nil {
		t.Fatalf("save upload: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"fileKey": key, "fileName": "report.txt"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", user)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create report status = %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Job jobs.Job `json:"job"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	if got := app.Loop().Step(context.Background()); got != workerproc.StepProcessed {
		t.Fatalf("Step() = %s, want processed", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+created.Job.ID, nil)
	req.Header.Set("X-User-Id", user)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job status = %d body=%s", rec.Code, rec.Body.String())
	}
	var job jobs.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	// No provider is configured, so the analysis stage fails the job.
	if job.Status != jobs.StatusFailed {
		t.Fatalf("job status = %q, want failed", job.Status)
	}
	if job.Error == nil || !strings.HasPrefix(*job.Error, workerproc.ReasonAnalysisFailed) {
		t.Fatalf("unexpected job error: %v", job.Error)
	}
}

func TestRunWorkerStopsOnCancel(t *testing.T) {
	app, err := Build(context.Background(), memoryConfig(t), RoleWorker)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunWorker(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunWorker: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunWorker did not stop after cancel")
	}
}
