// Command migrate applies pending schema migrations and exits. It is the
// release step for container deploys; operators use creditctl migrate.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"time"

	"credit-backend/internal/shared/config"
	"credit-backend/internal/shared/storage/db"
	"credit-backend/internal/shared/telemetry"
)

const connectAttemptDelay = 2 * time.Second

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env, cfg.LogLevel); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	// MIGRATE_WAIT bounds how long to wait for the database to accept connections.
	wait := config.DurationEnv("MIGRATE_WAIT", 30*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), wait+time.Minute)
	defer cancel()

	if err := run(ctx, cfg.DatabaseURL, wait); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err})
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, wait time.Duration) error {
	sqlDB, err := connectWithin(ctx, databaseURL, wait)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	before, err := db.MigrationVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return err
	}
	after, err := db.MigrationVersion(ctx, sqlDB)
	if err != nil {
		return err
	}
	telemetry.Info("migrate.completed", map[string]any{"from_version": before, "version": after})
	return nil
}

// connectWithin retries Connect until it succeeds or wait elapses.
func connectWithin(ctx context.Context, databaseURL string, wait time.Duration) (*sql.DB, error) {
	deadline := time.Now().Add(wait)
	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	for attempt := 1; ; attempt++ {
		sqlDB, err := db.Connect(ctx, databaseURL, opts)
		if err == nil {
			return sqlDB, nil
		}
		if errors.Is(err, db.ErrNoDatabaseURL) || time.Now().After(deadline) {
			return nil, err
		}
		telemetry.Warn("migrate.connect_retry", map[string]any{"attempt": attempt, "error": err})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectAttemptDelay):
		}
	}
}
