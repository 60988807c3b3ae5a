package repository

import (
	"context"
	"fmt"
	"strings"
)

// HealthStatus is the state of one /health component or of the whole instance.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worse returns whichever of s and other is more severe.
func (s HealthStatus) Worse(other HealthStatus) HealthStatus {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// ComponentHealth is one line of the /health report.
type ComponentHealth struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	LatencyMS int64        `json:"latency_ms,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// SchemaState describes which embedded migrations a database has applied.
// A migration is drifted when the checksum recorded at apply time no longer
// matches the SQL shipped with the binary.
type SchemaState struct {
	Applied int
	Pending []string
	Drifted []string
}

// Component turns the state into a health line. Pending migrations degrade
// the instance; drifted ones make it unhealthy because the tables may not
// match what the repositories expect.
func (s *SchemaState) Component() ComponentHealth {
	c := ComponentHealth{Name: "schema", Status: HealthStatusHealthy}
	switch {
	case len(s.Drifted) > 0:
		c.Status = HealthStatusUnhealthy
		c.Message = "migrations changed after apply: " + strings.Join(s.Drifted, ", ")
	case len(s.Pending) > 0:
		c.Status = HealthStatusDegraded
		c.Message = "pending migrations: " + strings.Join(s.Pending, ", ")
	default:
		c.Message = fmt.Sprintf("%d migrations applied", s.Applied)
	}
	return c
}

// HealthRepository provides health check operations for the database.
type HealthRepository interface {
	// Ping performs a basic connectivity check. It backs /health/live and
	// should stay cheap.
	Ping(ctx context.Context) error

	// CheckHealth runs a query and reports its latency.
	CheckHealth(ctx context.Context) (*ComponentHealth, error)

	// CheckSchema compares the applied migrations with the embedded ones.
	CheckSchema(ctx context.Context) (*SchemaState, error)

	// GetDatabaseStats returns database-specific statistics for monitoring.
	// Returns nil if stats are not available for the database type.
	GetDatabaseStats(ctx context.Context) (map[string]any, error)
}
