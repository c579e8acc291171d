package main

import (
	"context"
	"errors"
	"strings"

	"credit-backend/internal/analyses"
	"credit-backend/internal/jobs"
	"credit-backend/internal/letters"
	"credit-backend/internal/reports"
	"credit-backend/internal/shared/config"
	"credit-backend/internal/shared/storage/db"
)

var errNoMigrations = errors.New("migrations require a Postgres database")

// backend is what the commands operate on.
type backend struct {
	queue   jobs.Queue
	service *reports.Service
	migrate func(ctx context.Context) error
	version func(ctx context.Context) (int64, error)
	close   func() error
}

type openFunc func(ctx context.Context, databaseURL string) (*backend, error)

type commandContext struct {
	databaseURL *string
	open        openFunc
}

func (c *commandContext) withBackend(ctx context.Context, fn func(*backend) error) error {
	b, err := c.open(ctx, strings.TrimSpace(*c.databaseURL))
	if err != nil {
		return err
	}
	if b.close != nil {
		defer b.close()
	}
	return fn(b)
}

func openPostgres(ctx context.Context, databaseURL string) (*backend, error) {
	if databaseURL == "" {
		databaseURL = config.Load().DatabaseURL
	}
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL or --database-url is required")
	}

	sqlDB, err := db.Connect(ctx, databaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
	if err != nil {
		return nil, err
	}

	queue := &jobs.PGQueue{DB: sqlDB}
	repo := &reports.PGRepo{DB: sqlDB}
	return &backend{
		queue: queue,
		service: &reports.Service{
			Repo:       repo,
			Jobs:       queue,
			Results:    &analyses.PGRepo{DB: sqlDB},
			LetterRepo: &letters.PGRepo{DB: sqlDB},
		},
		migrate: func(ctx context.Context) error { return db.RunMigrations(ctx, sqlDB) },
		version: func(ctx context.Context) (int64, error) { return db.MigrationVersion(ctx, sqlDB) },
		close:   sqlDB.Close,
	}, nil
}
