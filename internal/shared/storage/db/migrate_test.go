package db

import (
	"context"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected at least one migration")
	}
	data, err := migrationFiles.ReadFile(migrationsDir + "/" + entries[0].Name())
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, table := range []string{"reports", "jobs", "analysis_results", "dispute_letters"} {
		if !strings.Contains(string(data), "create table if not exists "+table) {
			t.Fatalf("migration missing table %s", table)
		}
	}
}

func TestRunMigrationsNilDB(t *testing.T) {
	if err := RunMigrations(context.Background(), nil); err != nil {
		t.Fatalf("expected nil db to be a no-op, got %v", err)
	}
}
