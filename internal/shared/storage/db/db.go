// Package db owns the Postgres connection pool, transactions and the
// embedded goose migrations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"credit-backend/internal/shared/telemetry"
)

// ErrNoDatabaseURL is returned by Connect for a blank connection string.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is empty")

// Options sizes the pool. Zero values fall back to conservative defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var openDB = sql.Open

func profile(maxOpen, maxIdle int, idle time.Duration) Options {
	return Options{
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxIdleTime: idle,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// DefaultServerOptions sizes the API pool for concurrent request handlers.
func DefaultServerOptions() Options { return profile(10, 5, 2*time.Minute) }

// DefaultWorkerOptions sizes a worker pool: one job at a time plus the
// sweeper and a claim transaction.
func DefaultWorkerOptions() Options { return profile(4, 2, 2*time.Minute) }

// DefaultCLIOptions leaves room for a lookup while a transaction is open.
func DefaultCLIOptions() Options { return profile(2, 1, time.Minute) }

func DefaultMigrateOptions() Options { return profile(1, 1, 2*time.Minute) }

// OptionsFromEnv applies DB_* overrides on top of defaults. Unparseable
// values are logged and ignored.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	for key, dst := range map[string]*int{
		"DB_MAX_OPEN_CONNS": &opts.MaxOpenConns,
		"DB_MAX_IDLE_CONNS": &opts.MaxIdleConns,
	} {
		envOverride(key, dst, strconv.Atoi)
	}
	for key, dst := range map[string]*time.Duration{
		"DB_CONN_MAX_LIFETIME":  &opts.ConnMaxLifetime,
		"DB_CONN_MAX_IDLE_TIME": &opts.ConnMaxIdleTime,
		"DB_PING_TIMEOUT":       &opts.PingTimeout,
	} {
		envOverride(key, dst, time.ParseDuration)
	}
	return opts
}

func envOverride[T any](key string, dst *T, parse func(string) (T, error)) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	v, err := parse(raw)
	if err != nil {
		telemetry.Warn("db.env.invalid", map[string]any{"key": key, "value": raw, "error": err})
		return
	}
	*dst = v
}

// Connect opens a pgx-backed pool and pings it. Callers share the returned
// *sql.DB for the life of the process.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrNoDatabaseURL
	}
	pool, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	opts = withFallbacks(opts)
	pool.SetMaxOpenConns(opts.MaxOpenConns)
	pool.SetMaxIdleConns(opts.MaxIdleConns)
	pool.SetConnMaxLifetime(opts.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		_ = pool.Close()
		telemetry.Warn("db.ping_failed", map[string]any{"error": err, "timeout_ms": opts.PingTimeout.Milliseconds()})
		return nil, fmt.Errorf("ping database: %w", err)
	}

	stats := pool.Stats()
	telemetry.Info("db.connected", map[string]any{
		"max_open": stats.MaxOpenConnections,
		"max_idle": opts.MaxIdleConns,
		"open":     stats.OpenConnections,
	})
	return pool, nil
}

func withFallbacks(opts Options) Options {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = min(5, opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = time.Hour
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	return opts
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back otherwise.
func WithTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
