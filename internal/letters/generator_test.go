package letters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"credit-backend/internal/jobs"
	"credit-backend/internal/shared/storage/object"
)

type fakeDrafter struct {
	failFor map[string]error
	seen    []string
	mu      sync.Mutex
}

func (d *fakeDrafter) DraftLetter(ctx context.Context, bureau string, findings json.RawMessage) (string, error) {
	d.mu.Lock()
	d.seen = append(d.seen, bureau+":"+string(findings))
	d.mu.Unlock()
	if err := d.failFor[bureau]; err != nil {
		return "", err
	}
	return "Dear " + bureau + ",\n\nPlease investigate the accounts below.", nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failKey string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) SaveWithKey(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if key == s.failKey {
		return 0, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return int64(len(data)), nil
}

func (s *memStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fixedRenderer struct{ err error }

func (r fixedRenderer) Render(text string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 " + text), nil
}

func testInput() Input {
	return Input{
		JobID:    "job-1",
		UserID:   "user-1",
		ReportID: "rep-1",
		Findings: json.RawMessage(`[{"creditor":"MIDLAND"}]`),
	}
}

func TestGenerateAllBureaus(t *testing.T) {
	store := newMemStore()
	repo := NewMemoryRepo(nil)
	drafter := &fakeDrafter{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	gen := &Generator{
		Drafter:  drafter,
		Renderer: fixedRenderer{},
		Store:    store,
		Repo:     repo,
		Now:      func() time.Time { return now },
	}

	batch := gen.Generate(context.Background(), testInput())
	if len(batch.Outcomes) != 3 || len(batch.Succeeded()) != 3 || len(batch.Failed()) != 0 {
		t.Fatalf("expected 3 successes, got %+v", batch.Outcomes)
	}
	if batch.Abandoned() {
		t.Fatalf("batch should not be abandoned")
	}

	for _, bureau := range Bureaus {
		key := object.LetterKey("user-1", "rep-1", bureau)
		if store.types[key] != "application/pdf" {
			t.Fatalf("expected pdf at %s, got %q", key, store.types[key])
		}
	}
	letters, err := repo.ListForUser(context.Background(), "user-1", "rep-1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(letters) != 3 || !letters[0].CreatedAt.Equal(now) {
		t.Fatalf("unexpected letters: %+v", letters)
	}
	if !strings.HasSuffix(letters[0].FileKey, "/letters/rep-1_equifax.pdf") {
		t.Fatalf("unexpected file key %s", letters[0].FileKey)
	}
	if drafter.seen[0] != `Equifax:[{"creditor":"MIDLAND"}]` {
		t.Fatalf("drafter got %q", drafter.seen[0])
	}
}

func TestGenerateIsolatesBureauFailures(t *testing.T) {
	store := newMemStore()
	store.failKey = object.LetterKey("user-1", "rep-1", "TransUnion")
	repo := NewMemoryRepo(nil)
	gen := &Generator{
		Drafter:  &fakeDrafter{failFor: map[string]error{"Experian": errors.New("model overloaded")}},
		Renderer: fixedRenderer{},
		Store:    store,
		Repo:     repo,
	}

	batch := gen.Generate(context.Background(), testInput())
	if len(batch.Outcomes) != 3 {
		t.Fatalf("expected an outcome per bureau, got %d", len(batch.Outcomes))
	}
	ok := batch.Succeeded()
	if len(ok) != 1 || ok[0].Bureau != "Equifax" {
		t.Fatalf("expected only Equifax to succeed, got %+v", ok)
	}
	failed := batch.Failed()
	if len(failed) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failed))
	}
	if failed[0].Bureau != "Experian" || failed[0].Step != StepDraft {
		t.Fatalf("unexpected first failure %+v", failed[0])
	}
	if failed[1].Bureau != "TransUnion" || failed[1].Step != StepUpload {
		t.Fatalf("unexpected second failure %+v", failed[1])
	}
	letters, _ := repo.ListForUser(context.Background(), "user-1", "rep-1")
	if len(letters) != 1 {
		t.Fatalf("expected 1 stored letter, got %d", len(letters))
	}
}

func TestGenerateDefaultsEmptyFindings(t *testing.T) {
	drafter := &fakeDrafter{}
	gen := &Generator{
		Drafter:  drafter,
		Renderer: fixedRenderer{},
		Store:    newMemStore(),
		Repo:     NewMemoryRepo(nil),
		Bureaus:  []string{"Experian"},
	}
	in := testInput()
	in.Findings = nil
	gen.Generate(context.Background(), in)
	if len(drafter.seen) != 1 || drafter.seen[0] != "Experian:[]" {
		t.Fatalf("expected [] findings, got %v", drafter.seen)
	}
}

func TestGenerateStopsWhenJobNoLongerProcessing(t *testing.T) {
	drafter := &fakeDrafter{}
	gen := &Generator{
		Drafter:  drafter,
		Renderer: fixedRenderer{},
		Store:    newMemStore(),
		Repo:     NewMemoryRepo(func(string) bool { return false }),
	}
	batch := gen.Generate(context.Background(), testInput())
	if !batch.Abandoned() {
		t.Fatalf("expected abandoned batch")
	}
	if len(batch.Outcomes) != 1 || !errors.Is(batch.Outcomes[0].Err, jobs.ErrNotProcessing) {
		t.Fatalf("expected a single ErrNotProcessing outcome, got %+v", batch.Outcomes)
	}
	if len(drafter.seen) != 1 {
		t.Fatalf("expected generation to stop after first bureau, drafted %d", len(drafter.seen))
	}
}

func TestGenerateRenderFailure(t *testing.T) {
	gen := &Generator{
		Drafter:  &fakeDrafter{},
		Renderer: fixedRenderer{err: errors.New("font missing")},
		Store:    newMemStore(),
		Repo:     NewMemoryRepo(nil),
		Bureaus:  []string{"Equifax"},
	}
	batch := gen.Generate(context.Background(), testInput())
	if len(batch.Failed()) != 1 || batch.Failed()[0].Step != StepRender {
		t.Fatalf("expected render failure, got %+v", batch.Outcomes)
	}
}
