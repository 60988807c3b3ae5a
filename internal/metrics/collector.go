package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// collectTimeout bounds the stats query run on each scrape.
const collectTimeout = 2 * time.Second

// StatsSource reports database statistics as a flat map.
// repository.HealthRepository satisfies it for both backends.
type StatsSource interface {
	GetDatabaseStats(ctx context.Context) (map[string]any, error)
}

// DatabaseMetricsCollector collects metrics from the database on each scrape
type DatabaseMetricsCollector struct {
	source StatsSource

	// Metric descriptors
	activeSessions   *prometheus.Desc
	rateLimitEntries *prometheus.Desc
	databaseSize     *prometheus.Desc
}

// NewDatabaseMetricsCollector creates a new collector
func NewDatabaseMetricsCollector(source StatsSource) *DatabaseMetricsCollector {
	return &DatabaseMetricsCollector{
		source: source,
		activeSessions: prometheus.NewDesc(
			"storefront_active_sessions",
			"Number of active sessions in user_sessions",
			nil, nil,
		),
		rateLimitEntries: prometheus.NewDesc(
			"storefront_rate_limit_entries",
			"Number of rows in rate_limit_entries (database backend only)",
			nil, nil,
		),
		databaseSize: prometheus.NewDesc(
			"storefront_database_size_bytes",
			"Size of the database in bytes",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to Prometheus
func (c *DatabaseMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSessions
	ch <- c.rateLimitEntries
	ch <- c.databaseSize
}

// Collect fetches current metrics from database and sends to Prometheus
func (c *DatabaseMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	stats, err := c.source.GetDatabaseStats(ctx)
	if err != nil {
		slog.Error("failed to query database metrics", "error", err)
		// Send zero values on error to avoid scrape failure
		stats = nil
	}

	ch <- prometheus.MustNewConstMetric(c.activeSessions, prometheus.GaugeValue, statValue(stats, "active_sessions"))
	ch <- prometheus.MustNewConstMetric(c.rateLimitEntries, prometheus.GaugeValue, statValue(stats, "rate_limit_entries_rows"))
	ch <- prometheus.MustNewConstMetric(c.databaseSize, prometheus.GaugeValue, statValue(stats, "size_bytes"))
}

// statValue converts a numeric stats entry to float64. Missing or
// non-numeric entries read as zero.
func statValue(stats map[string]any, key string) float64 {
	switch v := stats[key].(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
