package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/naazbooks/storefront/internal/metrics"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// Health check timeout for the database
const healthCheckTimeout = 5 * time.Second

// QueueSizer reports the number of pending audit rows.
type QueueSizer interface {
	QueueSize() int
}

// ComponentChecker reports the health of one subsystem for /health.
type ComponentChecker interface {
	CheckHealth(ctx context.Context) repository.ComponentHealth
}

// setHealthCacheHeaders sets appropriate cache-control headers for health endpoints.
// Health checks should never be cached so every check sees current state.
func setHealthCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// HealthHandler reports the database, its schema and every checker as
// components. The overall status is the worst component; anything but
// healthy answers 503.
func HealthHandler(healthRepo repository.HealthRepository, dbType repository.DatabaseType, startTime time.Time, queue QueueSizer, checks ...ComponentChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HealthCheckDuration.WithLabelValues("health").Observe(time.Since(start).Seconds())
		}()

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		response := getHealth(ctx, healthRepo, dbType, startTime, queue, checks)

		metrics.HealthChecksTotal.WithLabelValues("health", response.Status).Inc()
		updateHealthStatusGauge(response.Status)

		httpCode := http.StatusOK
		if response.Status != string(repository.HealthStatusHealthy) {
			httpCode = http.StatusServiceUnavailable
		}

		setHealthCacheHeaders(w)
		sendJSON(w, httpCode, response)
	}
}

func getHealth(ctx context.Context, healthRepo repository.HealthRepository, dbType repository.DatabaseType, startTime time.Time, queue QueueSizer, checks []ComponentChecker) *models.HealthResponse {
	response := &models.HealthResponse{
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		DatabaseType:  string(dbType),
	}
	if queue != nil {
		response.AuditQueued = queue.QueueSize()
	}

	overall := repository.HealthStatusHealthy
	add := func(c repository.ComponentHealth) {
		if c.Status != repository.HealthStatusHealthy {
			slog.Warn("health component not healthy", "component", c.Name, "status", c.Status, "message", c.Message)
		}
		overall = overall.Worse(c.Status)
		response.Components = append(response.Components, models.HealthComponent{
			Name:      c.Name,
			Status:    string(c.Status),
			LatencyMS: c.LatencyMS,
			Message:   c.Message,
		})
	}

	dbHealth, err := healthRepo.CheckHealth(ctx)
	if err != nil {
		slog.Error("database health check failed", "error", err)
		dbHealth = &repository.ComponentHealth{Name: string(dbType), Status: repository.HealthStatusUnhealthy}
	}
	if dbHealth.Status != repository.HealthStatusHealthy {
		response.DatabaseError = "database health check failed"
		if dbHealth.Message != "" {
			response.DatabaseError = dbHealth.Message
		}
	}
	add(*dbHealth)

	if dbHealth.Status != repository.HealthStatusUnhealthy {
		schema, err := healthRepo.CheckSchema(ctx)
		if err != nil {
			slog.Error("schema check failed", "error", err)
			add(repository.ComponentHealth{Name: "schema", Status: repository.HealthStatusUnhealthy, Message: "schema check failed"})
		} else {
			add(schema.Component())
		}
	}

	for _, check := range checks {
		add(check.CheckHealth(ctx))
	}

	response.Status = string(overall)
	return response
}

// HealthLivenessHandler handles liveness checks
// Minimal check: is the process alive and can we ping the database?
func HealthLivenessHandler(healthRepo repository.HealthRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.HealthCheckDuration.WithLabelValues("live").Observe(time.Since(start).Seconds())
		}()

		setHealthCacheHeaders(w)

		if err := healthRepo.Ping(r.Context()); err != nil {
			slog.Error("liveness check failed: database ping error", "error", err)
			metrics.HealthChecksTotal.WithLabelValues("live", "unhealthy").Inc()
			sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}

		metrics.HealthChecksTotal.WithLabelValues("live", "healthy").Inc()
		sendJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// updateHealthStatusGauge updates the Prometheus gauge based on status string
func updateHealthStatusGauge(status string) {
	switch status {
	case "healthy":
		metrics.HealthStatus.Set(2)
	case "degraded":
		metrics.HealthStatus.Set(1)
	default:
		metrics.HealthStatus.Set(0)
	}
}
