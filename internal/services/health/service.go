package health

import (
	"context"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Database states reported by Status.
const (
	DatabaseOK          = "ok"
	DatabaseUnavailable = "unavailable"
	DatabaseMemory      = "memory"
)

const defaultTimeout = 2 * time.Second

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	Timeout time.Duration
}

// NewService constructs a health service. A nil db means in-memory storage.
func NewService(db Pinger) *Service {
	return &Service{DB: db, Timeout: defaultTimeout}
}

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// Status pings the database, bounded by Timeout.
func (s *Service) Status(ctx context.Context) Status {
	if s == nil || s.DB == nil {
		return Status{OK: true, Database: DatabaseMemory}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		return Status{OK: false, Database: DatabaseUnavailable}
	}
	return Status{OK: true, Database: DatabaseOK}
}
