package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/repository/sqlite"
	"github.com/naazbooks/storefront/internal/testutil"
)

type staticChecker repository.ComponentHealth

func (c staticChecker) CheckHealth(context.Context) repository.ComponentHealth {
	return repository.ComponentHealth(c)
}

type fixedQueue int

func (q fixedQueue) QueueSize() int { return int(q) }

func getHealthResponse(t *testing.T, handler http.HandlerFunc) (int, models.HealthResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp models.HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health response: %v\nBody: %s", err, rr.Body.String())
	}
	return rr.Code, resp
}

func component(resp models.HealthResponse, name string) *models.HealthComponent {
	for i := range resp.Components {
		if resp.Components[i].Name == name {
			return &resp.Components[i]
		}
	}
	return nil
}

func TestHealthHandler_Components(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := sqlite.NewHealthRepository(db, ":memory:")

	handler := HealthHandler(repo, repository.DatabaseTypeSQLite, time.Now(), fixedQueue(3),
		staticChecker{Name: "rate_limit_store", Status: repository.HealthStatusHealthy},
		staticChecker{Name: "sessions", Status: repository.HealthStatusHealthy, Message: "no heartbeat yet"},
	)

	code, resp := getHealthResponse(t, handler)
	if code != http.StatusOK || resp.Status != "healthy" {
		t.Fatalf("health = %d %q, want 200 healthy: %+v", code, resp.Status, resp.Components)
	}
	if resp.AuditQueued != 3 {
		t.Errorf("audit_queued = %d, want 3", resp.AuditQueued)
	}

	want := []string{"sqlite", "schema", "rate_limit_store", "sessions"}
	if len(resp.Components) != len(want) {
		t.Fatalf("components = %+v, want %v", resp.Components, want)
	}
	for i, name := range want {
		if resp.Components[i].Name != name {
			t.Errorf("component %d = %q, want %q", i, resp.Components[i].Name, name)
		}
	}
	if schema := component(resp, "schema"); schema.Message != "4 migrations applied" {
		t.Errorf("schema message = %q", schema.Message)
	}
}

func TestHealthHandler_DegradedComponent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := sqlite.NewHealthRepository(db, ":memory:")

	handler := HealthHandler(repo, repository.DatabaseTypeSQLite, time.Now(), nil,
		staticChecker{
			Name:    "rate_limit_store",
			Status:  repository.HealthStatusDegraded,
			Message: "entry store unreachable; requests are allowed uncounted",
		},
		staticChecker{Name: "audit_queue", Status: repository.HealthStatusHealthy},
	)

	code, resp := getHealthResponse(t, handler)
	if code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", code)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if c := component(resp, "rate_limit_store"); c == nil || c.Status != "degraded" || c.Message == "" {
		t.Errorf("rate_limit_store = %+v", c)
	}
	if resp.DatabaseError != "" {
		t.Errorf("database_error = %q, want empty", resp.DatabaseError)
	}
}

func TestHealthHandler_DriftedSchema(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := sqlite.NewHealthRepository(db, ":memory:")

	if _, err := db.Exec(`UPDATE schema_migrations SET checksum = 'edited' WHERE version = 2`); err != nil {
		t.Fatalf("failed to edit checksum: %v", err)
	}

	code, resp := getHealthResponse(t, HealthHandler(repo, repository.DatabaseTypeSQLite, time.Now(), nil))
	if code != http.StatusServiceUnavailable || resp.Status != "unhealthy" {
		t.Errorf("health = %d %q, want 503 unhealthy", code, resp.Status)
	}
	schema := component(resp, "schema")
	if schema == nil || schema.Status != "unhealthy" {
		t.Fatalf("schema = %+v, want unhealthy", schema)
	}
	testutil.AssertContains(t, schema.Message, "migrations changed after apply")
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := sqlite.NewHealthRepository(db, ":memory:")
	db.Close()

	code, resp := getHealthResponse(t, HealthHandler(repo, repository.DatabaseTypeSQLite, time.Now(), nil))
	if code != http.StatusServiceUnavailable || resp.Status != "unhealthy" {
		t.Errorf("health = %d %q, want 503 unhealthy", code, resp.Status)
	}
	if resp.DatabaseError == "" {
		t.Error("database_error not set")
	}
	if component(resp, "schema") != nil {
		t.Error("schema checked against an unreachable database")
	}
}
