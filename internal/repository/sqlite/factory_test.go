package sqlite

import (
	"context"
	"testing"

	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/repository"
)

func TestNewRepositories_Success(t *testing.T) {
	db := setupTestDB(t)

	repos, err := NewRepositories(&config.Config{DBPath: ":memory:"}, db)
	if err != nil {
		t.Fatalf("NewRepositories() error = %v", err)
	}

	if repos.SecurityLogs == nil {
		t.Error("SecurityLogs repository is nil")
	}
	if repos.Sessions == nil {
		t.Error("Sessions repository is nil")
	}
	if repos.Products == nil {
		t.Error("Products repository is nil")
	}
	if repos.Carts == nil {
		t.Error("Carts repository is nil")
	}
	if repos.RateLimits == nil {
		t.Error("RateLimits repository is nil")
	}
	if repos.Health == nil {
		t.Error("Health repository is nil")
	}
	if repos.DatabaseType != repository.DatabaseTypeSQLite {
		t.Errorf("DatabaseType = %s, want %s", repos.DatabaseType, repository.DatabaseTypeSQLite)
	}
	if repos.Cleanup == nil {
		t.Error("Cleanup is nil")
	}
}

func TestNewRepositories_NilDatabase(t *testing.T) {
	repos, err := NewRepositories(nil, nil)
	if err == nil {
		t.Fatal("NewRepositories() expected error for nil database, got nil")
	}
	if err != repository.ErrNilDatabase {
		t.Errorf("NewRepositories() error = %v, want %v", err, repository.ErrNilDatabase)
	}
	if repos != nil {
		t.Error("NewRepositories() expected nil repos for nil database")
	}
}

func TestHealthRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewHealthRepository(db, "")
	ctx := context.Background()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	health, err := repo.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth() error = %v", err)
	}
	if health.Name != "sqlite" {
		t.Errorf("Name = %s, want sqlite", health.Name)
	}
	if health.Status == repository.HealthStatusUnhealthy {
		t.Errorf("Status = %s, want healthy or degraded", health.Status)
	}

	state, err := repo.CheckSchema(ctx)
	if err != nil {
		t.Fatalf("CheckSchema() error = %v", err)
	}
	if state.Applied != 4 || len(state.Pending) != 0 || len(state.Drifted) != 0 {
		t.Errorf("CheckSchema() = %+v, want 4 applied", state)
	}

	stats, err := repo.GetDatabaseStats(ctx)
	if err != nil {
		t.Fatalf("GetDatabaseStats() error = %v", err)
	}
	for _, key := range []string{"page_count", "index_count", "rate_limit_entries_rows", "active_sessions"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
}
