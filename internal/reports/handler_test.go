package reports

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

	"credit-backend/internal/analyses"
	"credit-backend/internal/jobs"
	"credit-backend/internal/letters"
	"credit-backend/internal/shared/server/middleware"
)

type stubPresigner struct{}

func (stubPresigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return "https://blob.example/put/" + key, nil
}

func (stubPresigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://blob.example/get/" + key, nil
}

func setupRouter(t *testing.T) (*gin.Engine, fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture()
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Identity())
	NewHandler(f.svc, stubPresigner{}, 10*time.Minute).RegisterRoutes(api)
	return r, f
}

func doJSON(t *testing.T, r *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateReportAndPollJob(t *testing.T) {
	r, _ := setupRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/reports", "user-1", map[string]string{
		"fileKey":  ownedKey("user-1", "r.pdf"),
		"fileName": "My Report.pdf",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		Report Report `json:"report"`
		Job    struct {
			ID       string  `json:"id"`
			ReportID string  `json:"report_id"`
			Status   string  `json:"status"`
			Progress *string `json:"progress"`
		} `json:"job"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Job.Status != jobs.StatusQueued || created.Job.ReportID != created.Report.ID {
		t.Fatalf("unexpected create response %+v", created)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+created.Job.ID, "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"id", "status", "progress", "error", "report_id", "created_at", "updated_at"} {
		if _, ok := status[key]; !ok {
			t.Fatalf("job status missing %s: %v", key, status)
		}
	}
	if _, ok := status["UserID"]; ok {
		t.Fatalf("user id must not be exposed")
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+created.Job.ID, "user-2", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other user, got %d", resp.Code)
	}
}

func TestCreateReportValidation(t *testing.T) {
	r, _ := setupRouter(t)

	if resp := doJSON(t, r, http.MethodPost, "/api/v1/reports", "user-1", map[string]string{}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	resp := doJSON(t, r, http.MethodPost, "/api/v1/reports", "user-1", map[string]string{"fileKey": ownedKey("user-2", "x.pdf")})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	if resp := doJSON(t, r, http.MethodPost, "/api/v1/reports", "", map[string]string{"fileKey": "x"}); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.Code)
	}
}

func TestResultAndLetters(t *testing.T) {
	r, f := setupRouter(t)
	ctx := context.Background()
	report, job, err := f.svc.Create(ctx, "user-1", ownedKey("user-1", "r.pdf"), "r.pdf")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := doJSON(t, r, http.MethodGet, "/api/v1/reports/"+report.ID+"/result", "user-1", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before analysis, got %d", resp.Code)
	}

	if _, _, err := f.queue.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if err := f.results.Upsert(ctx, job.ID, analyses.Result{ReportID: report.ID, UserID: "user-1", Document: json.RawMessage(`{"negatives":[]}`)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	letter := letters.New("user-1", report.ID, "Experian", "owner/letters/x_experian.pdf", "Dear Experian", time.Now())
	if err := f.letters.Insert(ctx, job.ID, letter); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/reports/"+report.ID+"/result", "user-1", nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"result_json":{"negatives":[]}`) {
		t.Fatalf("unexpected result response %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/reports/"+report.ID+"/letters", "user-1", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Items []struct {
			Bureau      string `json:"bureau"`
			DownloadURL string `json:"download_url"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].Bureau != "Experian" || body.Items[0].DownloadURL != "https://blob.example/get/owner/letters/x_experian.pdf" {
		t.Fatalf("unexpected letters %+v", body.Items)
	}
}

func TestRetryReport(t *testing.T) {
	r, f := setupRouter(t)
	report, first, err := f.svc.Create(context.Background(), "user-1", ownedKey("user-1", "r.pdf"), "r.pdf")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := doJSON(t, r, http.MethodPost, "/api/v1/reports/"+report.ID+"/retry", "user-1", nil)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID == first.ID || job.Status != jobs.StatusQueued {
		t.Fatalf("unexpected retry job %+v", job)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/reports/"+report.ID+"/retry", "user-2", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other user, got %d", resp.Code)
	}
}
