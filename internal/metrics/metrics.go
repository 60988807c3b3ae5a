package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counter metrics (monotonically increasing)
var (
	// RateLimitDecisionsTotal counts rate limit checks by action and outcome (allowed, blocked, skipped, error)
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_rate_limit_decisions_total",
			Help: "Total number of rate limit checks",
		},
		[]string{"action", "outcome"},
	)

	// RateLimitViolationsTotal counts transitions into the blocked state by action
	RateLimitViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_rate_limit_violations_total",
			Help: "Total number of rate limit keys that tripped into a block",
		},
		[]string{"action"},
	)

	// RateLimitEntriesSweptTotal counts stale entries removed by the background sweep
	RateLimitEntriesSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_rate_limit_entries_swept_total",
			Help: "Total number of stale rate limit entries removed",
		},
	)

	// ClientStorageKeysSweptTotal counts client storage keys removed by the idle scope sweep
	ClientStorageKeysSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_client_storage_keys_swept_total",
			Help: "Total number of idle client storage keys removed",
		},
	)

	// CSRFValidationsTotal counts CSRF validations by result (valid, missing, mismatch, expired, session_mismatch, no_stored_token)
	CSRFValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_csrf_validations_total",
			Help: "Total number of CSRF token validations",
		},
		[]string{"result"},
	)

	// CSRFTokensGeneratedTotal counts generated tokens by source (secure, fallback)
	CSRFTokensGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_csrf_tokens_generated_total",
			Help: "Total number of CSRF tokens generated",
		},
		[]string{"source"},
	)

	// SessionEventsTotal counts session lifecycle events (created, renewed, destroyed, evicted, invalid)
	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_session_events_total",
			Help: "Total number of session lifecycle events",
		},
		[]string{"event"},
	)

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status code
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ErrorsTotal counts application errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_errors_total",
			Help: "Total number of application errors",
		},
		[]string{"type"},
	)
)

// Histogram metrics (distributions)
var (
	// HTTPRequestDuration tracks HTTP request latency by method and path
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Gauge metrics backed by database queries are defined in collector.go

// Health check metrics
var (
	// HealthStatus is a gauge representing current health status
	// Values: 0 = unhealthy, 1 = degraded, 2 = healthy
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_health_status",
			Help: "Current health status (0=unhealthy, 1=degraded, 2=healthy)",
		},
	)

	// HealthCheckDuration tracks health check execution time by endpoint
	HealthCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_health_check_duration_seconds",
			Help:    "Health check execution time in seconds",
			Buckets: []float64{.001, .002, .005, .01, .025, .05, .1},
		},
		[]string{"endpoint"},
	)

	// HealthChecksTotal counts total health check calls by endpoint and status
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_health_checks_total",
			Help: "Total number of health checks performed",
		},
		[]string{"endpoint", "status"},
	)
)
