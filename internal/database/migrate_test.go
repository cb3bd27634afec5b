package database

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"example.com/daily-budget/backend/internal/config"
)

func TestMigrationURL(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "budget",
		Password: "p@ss",
		Name:     "daily_budget",
		SSLMode:  "disable",
	}

	got := migrationURL(cfg)
	want := "pgx5://budget:p%40ss@db:5432/daily_budget?sslmode=disable"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

// TestMigrationsArePaired проверяет, что у каждой up-миграции есть down.
func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}

	names := map[string]bool{}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	if len(names) == 0 {
		t.Fatalf("expected embedded migrations")
	}

	for name := range names {
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		if !names[down] {
			t.Fatalf("missing %s for %s", down, name)
		}
	}
}

func TestPoolConfigLimits(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:            "db",
		Port:            5432,
		User:            "budget",
		Password:        "budget",
		Name:            "daily_budget",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    3,
		ConnMaxIdleTime: time.Minute,
		ConnMaxLifetime: time.Hour,
	}

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if pc.MaxConns != 10 || pc.MinConns != 3 {
		t.Fatalf("unexpected pool size: max=%d min=%d", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnIdleTime != time.Minute || pc.MaxConnLifetime != time.Hour {
		t.Fatalf("unexpected lifetimes: %v %v", pc.MaxConnIdleTime, pc.MaxConnLifetime)
	}
	if pc.ConnConfig.Database != "daily_budget" {
		t.Fatalf("expected database daily_budget, got %s", pc.ConnConfig.Database)
	}

	// min больше max игнорируется, остается значение pgxpool по умолчанию.
	cfg.MaxIdleConns = 20
	pc, err = poolConfig(cfg)
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if pc.MinConns != 0 {
		t.Fatalf("expected default min conns, got %d", pc.MinConns)
	}
}
