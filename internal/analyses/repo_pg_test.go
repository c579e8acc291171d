package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"credit-backend/internal/jobs"
)

func TestPGRepoUpsertGuardedByJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	res := Result{ReportID: "rep-1", UserID: "user-1", Document: json.RawMessage(`{"negatives":[]}`)}

	mock.ExpectExec("INSERT INTO analysis_results").
		WithArgs("rep-1", "user-1", `{"negatives":[]}`, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(report_id\\) DO UPDATE").
		WithArgs("rep-1", "user-1", `{"negatives":[]}`, "job-stale").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Upsert(context.Background(), "job-1", res); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(context.Background(), "job-stale", res); !errors.Is(err, jobs.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	created := time.Now().UTC()
	mock.ExpectQuery("FROM analysis_results").
		WithArgs("rep-1", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"report_id", "user_id", "result_json", "created_at"}).
			AddRow("rep-1", "user-1", []byte(`{"score":{"value":651}}`), created))
	mock.ExpectQuery("FROM analysis_results").
		WithArgs("rep-2", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"report_id", "user_id", "result_json", "created_at"}))

	got, err := repo.GetForUser(context.Background(), "user-1", "rep-1")
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if string(got.Document) != `{"score":{"value":651}}` {
		t.Fatalf("unexpected document %s", got.Document)
	}
	if _, err := repo.GetForUser(context.Background(), "user-1", "rep-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoUpsertIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo(nil)

	_ = repo.Upsert(ctx, "job-1", Result{ReportID: "rep-1", UserID: "u", Document: json.RawMessage(`{"v":1}`)})
	_ = repo.Upsert(ctx, "job-2", Result{ReportID: "rep-1", UserID: "u", Document: json.RawMessage(`{"v":2}`)})

	if repo.Count() != 1 {
		t.Fatalf("expected one result per report, got %d", repo.Count())
	}
	got, err := repo.GetForUser(ctx, "u", "rep-1")
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if string(got.Document) != `{"v":2}` {
		t.Fatalf("expected latest document, got %s", got.Document)
	}
}

func TestMemoryRepoGuard(t *testing.T) {
	repo := NewMemoryRepo(func(jobID string) bool { return jobID == "live" })
	err := repo.Upsert(context.Background(), "gone", Result{ReportID: "rep-1", UserID: "u", Document: json.RawMessage(`{"v":1}`)})
	if !errors.Is(err, jobs.ErrNotProcessing) {
		t.Fatalf("expected ErrNotProcessing, got %v", err)
	}
	if repo.Count() != 0 {
		t.Fatalf("guarded upsert should not store")
	}
}
