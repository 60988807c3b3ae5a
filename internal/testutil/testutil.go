package testutil

import (
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/database"
	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/repository/sqlite"

	_ "modernc.org/sqlite" // SQLite driver
)

// SetupTestDB creates an in-memory SQLite database for testing
// The database is automatically closed when the test completes
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// IMPORTANT: Force single connection for in-memory databases
	// Each connection in the pool gets its own separate :memory: database
	// This ensures migrations and queries see the same database
	db.SetMaxOpenConns(1)

	// Run migrations to create schema
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Cleanup when test completes
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestIssuerSecret signs sign-in assertions in tests.
const TestIssuerSecret = "test-issuer-secret-0123456789abcdef"

// SetupTestConfig creates a validated configuration with test-friendly values
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg.Port = "8080"
	cfg.LogLevel = "error"
	cfg.DBType = config.DBTypeSQLite
	cfg.DBPath = ":memory:"
	cfg.ClientStorageDir = ""
	cfg.HTTPSEnabled = false
	cfg.TrustProxyHeaders = "false"
	cfg.RateLimitBackend = config.RateLimitBackendMemory
	cfg.CSRFTokenTTLMinutes = 60
	cfg.SessionMaxAgeHours = 24
	cfg.SessionRenewalThresholdMinutes = 60
	cfg.SessionMaxPerUser = 5
	cfg.SessionActivityIntervalSeconds = 300
	cfg.SessionActivityThrottleSeconds = 60
	cfg.SessionIssuerSecret = TestIssuerSecret
	cfg.SessionIssuer = "naaz-backend"
	cfg.ClientStorageTabIdleHours = 24
	cfg.ClientStorageMaxIdleDays = 30
	cfg.ClientStorageSweepIntervalMins = 30
	cfg.RateLimitAPIMaxRequests = 100
	cfg.RateLimitAPIWindowSeconds = 60
	cfg.RateLimitLoginMaxRequests = 5
	cfg.AuditQueueSize = 100
	cfg.AuditWorkers = 1

	return cfg
}

// SetupTestRepos returns SQLite repositories over a fresh in-memory database
func SetupTestRepos(t *testing.T) (*repository.Repositories, *config.Config) {
	t.Helper()

	cfg := SetupTestConfig(t)
	db := SetupTestDB(t)

	repos, err := sqlite.NewRepositories(cfg, db)
	if err != nil {
		t.Fatalf("failed to create repositories: %v", err)
	}

	return repos, cfg
}

// AssertStatusCode checks that the HTTP response status code matches expected
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int) {
	t.Helper()

	if rr.Code != wantStatus {
		t.Errorf("status code = %d, want %d\nBody: %s", rr.Code, wantStatus, rr.Body.String())
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()

	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual(t *testing.T, got, want any) {
	t.Helper()

	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertContains fails the test if haystack doesn't contain needle
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()

	if !strings.Contains(haystack, needle) {
		t.Errorf("expected %q to contain %q", haystack, needle)
	}
}
