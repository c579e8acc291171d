package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"credit-backend/internal/shared/storage/object"
)

func TestSaveWithKeyThenOpen(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.SaveWithKey(ctx, "owner/letters/rep_equifax.pdf", "application/pdf", strings.NewReader("%PDF-1.3"))
	if err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 bytes written, got %d", n)
	}

	rc, err := store.Open(ctx, "owner/letters/rep_equifax.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF-1.3" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestSaveWithKeyOverwritesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()
	key := "owner/letters/rep_experian.pdf"

	for _, body := range []string{"first version", "v2"} {
		if _, err := store.SaveWithKey(ctx, key, "application/pdf", strings.NewReader(body)); err != nil {
			t.Fatalf("SaveWithKey: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "owner", "letters", "rep_experian.pdf"))
	if err != nil || string(data) != "v2" {
		t.Fatalf("expected overwritten content, got %q err=%v", data, err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "owner", "letters"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "owner/uploads/missing.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../secret", "owner/../../secret", "", "/abs/path"} {
		if _, err := store.Open(context.Background(), key); !errors.Is(err, object.ErrInvalidKey) {
			t.Fatalf("Open(%q): expected ErrInvalidKey, got %v", key, err)
		}
	}
	if _, err := store.SaveWithKey(context.Background(), "/abs/path", "text/plain", strings.NewReader("x")); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected absolute key to be rejected, got %v", err)
	}
}

func TestPresignUnsupported(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.PresignPut(context.Background(), "k", "application/pdf", time.Minute); !errors.Is(err, object.ErrPresignUnsupported) {
		t.Fatalf("expected ErrPresignUnsupported, got %v", err)
	}
	if _, err := store.PresignGet(context.Background(), "k", time.Minute); !errors.Is(err, object.ErrPresignUnsupported) {
		t.Fatalf("expected ErrPresignUnsupported, got %v", err)
	}
}
