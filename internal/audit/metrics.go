package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the audit queue
var (
	// AuditEventsTotal counts events accepted into the queue by kind
	AuditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_audit_events_total",
			Help: "Total number of security log events queued",
		},
		[]string{"kind"},
	)

	// AuditWritesTotal counts completed writes by kind and status
	AuditWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_audit_writes_total",
			Help: "Total number of security log writes",
		},
		[]string{"kind", "status"},
	)

	// AuditQueueSize is a gauge representing the current queue length
	AuditQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_audit_queue_size",
			Help: "Current size of the security log queue",
		},
	)

	// AuditDroppedEventsTotal counts events dropped because the queue was full or closed
	AuditDroppedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_audit_dropped_events_total",
			Help: "Total number of security log events dropped",
		},
	)
)

// PrometheusMetrics implements MetricsRecorder using Prometheus
type PrometheusMetrics struct{}

// NewPrometheusMetrics creates a new Prometheus metrics recorder
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// RecordEvent records an accepted event
func (m *PrometheusMetrics) RecordEvent(kind Kind) {
	AuditEventsTotal.WithLabelValues(string(kind)).Inc()
}

// RecordWrite records the outcome of a write
func (m *PrometheusMetrics) RecordWrite(kind Kind, status string) {
	AuditWritesTotal.WithLabelValues(string(kind), status).Inc()
}

// RecordDroppedEvent records a dropped event
func (m *PrometheusMetrics) RecordDroppedEvent() {
	AuditDroppedEventsTotal.Inc()
}

// SetQueueSize sets the current queue size
func (m *PrometheusMetrics) SetQueueSize(size int) {
	AuditQueueSize.Set(float64(size))
}
