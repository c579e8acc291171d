package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"credit-backend/internal/shared/storage/object"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "owner/uploads/file.pdf", want: "owner/uploads/file.pdf"},
		{name: "simple prefix", prefix: "credit", key: "owner/uploads/file.pdf", want: "credit/owner/uploads/file.pdf"},
		{name: "prefix and key slashes", prefix: "/credit/", key: "/owner/file.pdf", want: "credit/owner/file.pdf"},
		{name: "empty key", prefix: "credit", key: "", want: "credit"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func testConfig(region string) aws.Config {
	return aws.Config{
		Region:      region,
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
}

func TestPresignPutUsesCustomEndpoint(t *testing.T) {
	store := newWithConfig(testConfig("auto"), Options{
		Bucket:   "reports",
		Prefix:   "credit",
		Endpoint: "https://account.r2.cloudflarestorage.com",
	})

	raw, err := store.PresignPut(context.Background(), "owner/uploads/a.pdf", "application/pdf", 10*time.Minute)
	if err != nil {
		t.Fatalf("PresignPut: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if parsed.Host != "account.r2.cloudflarestorage.com" {
		t.Fatalf("unexpected host %q", parsed.Host)
	}
	if parsed.Path != "/reports/credit/owner/uploads/a.pdf" {
		t.Fatalf("expected path-style key, got %q", parsed.Path)
	}
	if got := parsed.Query().Get("X-Amz-Expires"); got != "600" {
		t.Fatalf("expected 600s expiry, got %q", got)
	}
	if store.sse {
		t.Fatalf("sse headers should be disabled for custom endpoints")
	}
}

func TestPresignGetSignsHost(t *testing.T) {
	store := newWithConfig(testConfig("us-east-1"), Options{Bucket: "reports"})

	raw, err := store.PresignGet(context.Background(), "owner/letters/r_equifax.pdf", 5*time.Minute)
	if err != nil {
		t.Fatalf("PresignGet: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	signed := parsed.Query().Get("X-Amz-SignedHeaders")
	if !strings.Contains(signed, "host") {
		t.Fatalf("expected host in signed headers: %s", signed)
	}
	if !strings.HasSuffix(parsed.Path, "owner/letters/r_equifax.pdf") {
		t.Fatalf("unexpected path %q", parsed.Path)
	}
}

func fakeBucket(t *testing.T, objects map[string]string) *Store {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := objects[r.URL.Path]
		if r.Method != http.MethodGet || !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return newWithConfig(testConfig("us-east-1"), Options{Bucket: "reports", Prefix: "credit", Endpoint: srv.URL})
}

func TestOpenReadsPrefixedKey(t *testing.T) {
	store := fakeBucket(t, map[string]string{"/reports/credit/owner/uploads/r.txt": "TRANSUNION"})

	rc, err := store.Open(context.Background(), "owner/uploads/r.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "TRANSUNION" {
		t.Fatalf("unexpected body %q", data)
	}
}

func TestOpenMissingKeyIsNotFound(t *testing.T) {
	store := fakeBucket(t, nil)
	if _, err := store.Open(context.Background(), "owner/uploads/gone.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected object.ErrNotFound, got %v", err)
	}
}
