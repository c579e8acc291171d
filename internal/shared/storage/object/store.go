package object

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrPresignUnsupported is returned by stores that cannot mint signed URLs.
	ErrPresignUnsupported = errors.New("object store does not support signed urls")
	// ErrNotFound is returned by Open when no object exists at the key.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey rejects keys that escape the store root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// ObjectStore defines the contract for saving and retrieving binary objects by key.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// Presigner mints time-limited URLs for direct client access to a key.
type Presigner interface {
	PresignPut(ctx context.Context, storageKey, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
}

// Store is an ObjectStore that can also presign.
type Store interface {
	ObjectStore
	Presigner
}
