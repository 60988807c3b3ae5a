package handlers

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/naazbooks/storefront/internal/metrics"
)

// MetricsHandler returns an HTTP handler for Prometheus metrics endpoint
func MetricsHandler(source metrics.StatsSource) http.Handler {
	// Create and register database metrics collector
	collector := metrics.NewDatabaseMetricsCollector(source)
	if err := prometheus.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			panic(err)
		}
	}

	return promhttp.Handler()
}
