package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	// Test that all metrics are properly registered
	metrics := []prometheus.Collector{
		RateLimitDecisionsTotal,
		RateLimitViolationsTotal,
		RateLimitEntriesSweptTotal,
		ClientStorageKeysSweptTotal,
		CSRFValidationsTotal,
		CSRFTokensGeneratedTotal,
		SessionEventsTotal,
		HTTPRequestsTotal,
		ErrorsTotal,
		HTTPRequestDuration,
	}

	for _, metric := range metrics {
		if metric == nil {
			t.Error("Metric is nil")
		}
	}
}

func TestRateLimitDecisionsTotal(t *testing.T) {
	// Note: Cannot reset counters in tests, they are cumulative
	initialAllowed := testutil.ToFloat64(RateLimitDecisionsTotal.WithLabelValues("login", "allowed"))
	initialBlocked := testutil.ToFloat64(RateLimitDecisionsTotal.WithLabelValues("login", "blocked"))

	RateLimitDecisionsTotal.WithLabelValues("login", "allowed").Inc()
	RateLimitDecisionsTotal.WithLabelValues("login", "allowed").Inc()
	RateLimitDecisionsTotal.WithLabelValues("login", "blocked").Inc()

	allowed := testutil.ToFloat64(RateLimitDecisionsTotal.WithLabelValues("login", "allowed"))
	if allowed < initialAllowed+2.0 {
		t.Errorf("Expected at least %.0f allowed decisions, got %f", initialAllowed+2.0, allowed)
	}

	blocked := testutil.ToFloat64(RateLimitDecisionsTotal.WithLabelValues("login", "blocked"))
	if blocked < initialBlocked+1.0 {
		t.Errorf("Expected at least %.0f blocked decisions, got %f", initialBlocked+1.0, blocked)
	}
}

func TestCSRFValidationsTotal(t *testing.T) {
	initialValid := testutil.ToFloat64(CSRFValidationsTotal.WithLabelValues("valid"))
	initialExpired := testutil.ToFloat64(CSRFValidationsTotal.WithLabelValues("expired"))

	CSRFValidationsTotal.WithLabelValues("valid").Inc()
	CSRFValidationsTotal.WithLabelValues("expired").Inc()
	CSRFValidationsTotal.WithLabelValues("mismatch").Inc()

	if got := testutil.ToFloat64(CSRFValidationsTotal.WithLabelValues("valid")); got < initialValid+1.0 {
		t.Errorf("Expected at least %.0f valid validations, got %f", initialValid+1.0, got)
	}
	if got := testutil.ToFloat64(CSRFValidationsTotal.WithLabelValues("expired")); got < initialExpired+1.0 {
		t.Errorf("Expected at least %.0f expired validations, got %f", initialExpired+1.0, got)
	}
}

func TestSessionEventsTotal(t *testing.T) {
	initialCreated := testutil.ToFloat64(SessionEventsTotal.WithLabelValues("created"))

	SessionEventsTotal.WithLabelValues("created").Inc()
	SessionEventsTotal.WithLabelValues("created").Inc()
	SessionEventsTotal.WithLabelValues("evicted").Inc()

	created := testutil.ToFloat64(SessionEventsTotal.WithLabelValues("created"))
	if created < initialCreated+2.0 {
		t.Errorf("Expected at least %.0f created sessions, got %f", initialCreated+2.0, created)
	}
}

func TestHTTPRequestMetrics(t *testing.T) {
	// Record initial values
	initialGetProducts200 := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/products", "200"))
	initialPostItems201 := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/cart/items", "201"))

	// Simulate some HTTP requests
	HTTPRequestsTotal.WithLabelValues("GET", "/api/products", "200").Inc()
	HTTPRequestsTotal.WithLabelValues("GET", "/api/products", "200").Inc()
	HTTPRequestsTotal.WithLabelValues("POST", "/api/cart/items", "201").Inc()
	HTTPRequestsTotal.WithLabelValues("GET", "/api/products/:id", "404").Inc()

	getProducts := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/products", "200"))
	if getProducts < initialGetProducts200+2.0 {
		t.Errorf("Expected at least %.0f GET /api/products 200 requests, got %f", initialGetProducts200+2.0, getProducts)
	}

	postItems := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/cart/items", "201"))
	if postItems < initialPostItems201+1.0 {
		t.Errorf("Expected at least %.0f POST /api/cart/items 201 requests, got %f", initialPostItems201+1.0, postItems)
	}
}

func TestErrorsTotal(t *testing.T) {
	// Record initial values
	initialDBErrors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("database"))
	initialValidationErrors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("validation"))

	// Simulate errors
	ErrorsTotal.WithLabelValues("database").Inc()
	ErrorsTotal.WithLabelValues("validation").Inc()
	ErrorsTotal.WithLabelValues("validation").Inc()

	dbErrors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("database"))
	if dbErrors < initialDBErrors+1.0 {
		t.Errorf("Expected at least %.0f database errors, got %f", initialDBErrors+1.0, dbErrors)
	}

	validationErrors := testutil.ToFloat64(ErrorsTotal.WithLabelValues("validation"))
	if validationErrors < initialValidationErrors+2.0 {
		t.Errorf("Expected at least %.0f validation errors, got %f", initialValidationErrors+2.0, validationErrors)
	}
}

func TestHealthMetrics(t *testing.T) {
	initialStatus := testutil.ToFloat64(HealthStatus)

	HealthStatus.Set(2) // Healthy
	if got := testutil.ToFloat64(HealthStatus); got != 2.0 {
		t.Errorf("Expected health status 2.0, got %f", got)
	}

	HealthStatus.Set(1) // Degraded
	if got := testutil.ToFloat64(HealthStatus); got != 1.0 {
		t.Errorf("Expected health status 1.0, got %f", got)
	}

	HealthStatus.Set(0) // Unhealthy
	if got := testutil.ToFloat64(HealthStatus); got != 0.0 {
		t.Errorf("Expected health status 0.0, got %f", got)
	}

	// Restore initial status
	HealthStatus.Set(initialStatus)
}

func TestHealthCheckMetrics(t *testing.T) {
	initialHealthChecks := testutil.ToFloat64(HealthChecksTotal.WithLabelValues("/health", "healthy"))

	HealthChecksTotal.WithLabelValues("/health", "healthy").Inc()
	HealthChecksTotal.WithLabelValues("/health", "healthy").Inc()
	HealthChecksTotal.WithLabelValues("/health", "degraded").Inc()

	healthChecks := testutil.ToFloat64(HealthChecksTotal.WithLabelValues("/health", "healthy"))
	if healthChecks < initialHealthChecks+2.0 {
		t.Errorf("Expected at least %.0f health checks, got %f", initialHealthChecks+2.0, healthChecks)
	}
}

func TestHistograms(t *testing.T) {
	// Histograms accept observations without panicking
	HealthCheckDuration.WithLabelValues("/health").Observe(0.001)
	HTTPRequestDuration.WithLabelValues("GET", "/api/products").Observe(0.1)
	HTTPRequestDuration.WithLabelValues("POST", "/api/cart/items").Observe(0.05)
}
