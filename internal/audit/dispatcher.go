package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/utils"
)

// writeTimeout bounds a single event write including its retries.
const writeTimeout = 5 * time.Second

// Dispatcher handles asynchronous security log writes
type Dispatcher struct {
	repo        repository.SecurityLogRepository
	eventChan   chan *Event
	workerCount int
	shutdown    chan struct{}
	wg          sync.WaitGroup
	metrics     MetricsRecorder
	retry       utils.RetryOptions

	retention       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	// mu guards closed so Emit never sends on a closed channel
	mu           sync.RWMutex
	closed       bool
	shutdownOnce sync.Once
}

// MetricsRecorder is an interface for recording audit queue metrics
type MetricsRecorder interface {
	RecordEvent(kind Kind)
	RecordWrite(kind Kind, status string)
	RecordDroppedEvent()
	SetQueueSize(size int)
}

// NewDispatcher creates a new audit dispatcher. metrics may be nil.
func NewDispatcher(repo repository.SecurityLogRepository, workerCount, bufferSize int, metrics MetricsRecorder) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Dispatcher{
		repo:        repo,
		eventChan:   make(chan *Event, bufferSize),
		workerCount: workerCount,
		shutdown:    make(chan struct{}),
		metrics:     metrics,
		retry:       utils.DefaultRetryOptions,
		now:         time.Now,
	}
}

// SetRetention enables periodic deletion of log rows older than retention.
// It must be called before Start.
func (d *Dispatcher) SetRetention(retention, interval time.Duration) {
	d.retention = retention
	d.cleanupInterval = interval
}

// Start starts the audit workers and, when configured, the retention sweep
func (d *Dispatcher) Start() {
	slog.Info("starting audit dispatcher", "workers", d.workerCount, "queue_size", cap(d.eventChan))

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	if d.retention > 0 && d.cleanupInterval > 0 {
		d.wg.Add(1)
		go d.retentionProcessor()
	}
}

// Shutdown stops accepting events, lets workers drain what is already
// queued and waits for them. It is safe to call more than once.
func (d *Dispatcher) Shutdown() {
	d.shutdownOnce.Do(func() {
		slog.Info("shutting down audit dispatcher", "pending", len(d.eventChan))

		d.mu.Lock()
		d.closed = true
		close(d.shutdown)
		close(d.eventChan)
		d.mu.Unlock()
	})

	d.wg.Wait()

	slog.Info("audit dispatcher shutdown complete")
}

// Emit queues an event. It never blocks: when the queue is full or the
// dispatcher is shutting down the event is dropped and counted.
func (d *Dispatcher) Emit(event *Event) {
	if event == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		slog.Debug("audit dispatcher shut down, dropping event", "kind", event.Kind)
		d.metrics.RecordDroppedEvent()
		return
	}

	select {
	case d.eventChan <- event:
		d.metrics.RecordEvent(event.Kind)
		d.metrics.SetQueueSize(len(d.eventChan))
	default:
		slog.Warn("audit queue full, dropping event", "kind", event.Kind)
		d.metrics.RecordDroppedEvent()
	}
}

// QueueSize returns the number of events waiting to be written
func (d *Dispatcher) QueueSize() int {
	return len(d.eventChan)
}

// CheckHealth reports the queue depth. A queue more than half full means
// writers are falling behind and events will soon be dropped.
func (d *Dispatcher) CheckHealth(_ context.Context) repository.ComponentHealth {
	queued, capacity := len(d.eventChan), cap(d.eventChan)
	c := repository.ComponentHealth{
		Name:    "audit_queue",
		Status:  repository.HealthStatusHealthy,
		Message: fmt.Sprintf("%d of %d queued", queued, capacity),
	}
	if capacity > 0 && queued*2 > capacity {
		c.Status = repository.HealthStatusDegraded
	}
	return c
}

// worker writes events until the channel is closed and drained
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	slog.Debug("audit worker started", "worker_id", id)

	for event := range d.eventChan {
		d.processEvent(event)
		d.metrics.SetQueueSize(len(d.eventChan))
	}

	slog.Debug("audit worker stopped", "worker_id", id)
}

// processEvent writes one event, retrying transient failures
func (d *Dispatcher) processEvent(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := utils.WithRetry(ctx, d.retry, func(ctx context.Context) error {
		return d.write(ctx, event)
	})
	if err != nil {
		slog.Error("failed to write security log", "kind", event.Kind, "error", err)
		d.metrics.RecordWrite(event.Kind, "failed")
		return
	}
	d.metrics.RecordWrite(event.Kind, "success")
}

func (d *Dispatcher) write(ctx context.Context, event *Event) error {
	switch event.Kind {
	case KindRateLimitLog:
		if event.RateLimitLog == nil {
			return fmt.Errorf("%s event without payload", event.Kind)
		}
		return d.repo.InsertRateLimitLog(ctx, event.RateLimitLog)
	case KindRateLimitViolation:
		if event.Violation == nil {
			return fmt.Errorf("%s event without payload", event.Kind)
		}
		return d.repo.InsertRateLimitViolation(ctx, event.Violation)
	case KindCSRFValidation:
		if event.CSRFValidation == nil {
			return fmt.Errorf("%s event without payload", event.Kind)
		}
		return d.repo.InsertCSRFValidationLog(ctx, event.CSRFValidation)
	default:
		return fmt.Errorf("unknown audit event kind %q", event.Kind)
	}
}

// retentionProcessor periodically deletes rows older than the retention period
func (d *Dispatcher) retentionProcessor() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C:
			d.cleanup()
		}
	}
}

// cleanup runs one retention pass
func (d *Dispatcher) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := d.now().Add(-d.retention)
	removed, err := d.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("failed to prune security logs", "cutoff", cutoff, "error", err)
		return
	}
	if removed > 0 {
		slog.Info("pruned security logs", "removed", removed, "cutoff", cutoff)
	}
}

// Ensure Dispatcher implements Emitter.
var _ Emitter = (*Dispatcher)(nil)

type noopMetrics struct{}

func (noopMetrics) RecordEvent(Kind)         {}
func (noopMetrics) RecordWrite(Kind, string) {}
func (noopMetrics) RecordDroppedEvent()      {}
func (noopMetrics) SetQueueSize(int)         {}
