// Package ratelimit implements fixed-window request counting with blocking.
//
// A key starts open. Each allowed check increments its counter; once the
// counter reaches MaxRequests the next check trips the key and blocks it
// for BlockDuration. When the block elapses the following check starts a
// fresh window. There is no half-open state.
//
// Internal failures (store errors, invalid configuration) never reject a
// request: the service logs them and allows the call. Authoritative limits
// are enforced by whatever stands behind the gated operation.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/naazbooks/storefront/internal/audit"
	"github.com/naazbooks/storefront/internal/metrics"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

const (
	// DefaultSweepInterval is how often stale entries are removed.
	DefaultSweepInterval = 5 * time.Minute

	// StaleAfter is the age past which an unblocked entry is swept.
	StaleAfter = time.Hour

	sweepTimeout = 30 * time.Second

	// healthCheckKey is read, never written, by CheckHealth.
	healthCheckKey = "health:check"
)

// Config describes one limit. It is supplied by the caller and never mutated.
type Config struct {
	Name                   string        // Used for logs, metrics and audit rows
	Window                 time.Duration // Length of a counting window
	MaxRequests            int           // Requests allowed per window
	BlockDuration          time.Duration // Zero means Window
	SkipSuccessfulRequests bool          // Record ignores successful outcomes
	SkipFailedRequests     bool          // Record ignores failed outcomes
	KeyGenerator           KeyGenerator  // Nil means DefaultKey
}

func (c Config) validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", c.Window)
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("max requests must be positive, got %d", c.MaxRequests)
	}
	if c.BlockDuration < 0 {
		return fmt.Errorf("block duration cannot be negative, got %v", c.BlockDuration)
	}
	return nil
}

func (c Config) blockDuration() time.Duration {
	if c.BlockDuration > 0 {
		return c.BlockDuration
	}
	return c.Window
}

func (c Config) key(userID string, hint ClientHint) string {
	if c.KeyGenerator != nil {
		return c.KeyGenerator(userID, hint)
	}
	return DefaultKey(userID, hint)
}

func (c Config) label() string {
	if c.Name == "" {
		return "custom"
	}
	return c.Name
}

// Result is the outcome of a check or a status read.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetTime  time.Time     // End of the window, or of the block when rejected
	RetryAfter time.Duration // Zero when allowed
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds.
func (r Result) RetryAfterSeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(r.RetryAfter.Seconds()))
}

// Service owns the rate limit entries of one store.
type Service struct {
	store         EntryStore
	events        audit.Emitter
	now           func() time.Time
	sweepInterval time.Duration

	// mu serializes load, decide and save inside this process. Processes
	// sharing a remote store can still interleave between load and save,
	// which at worst undercounts a key.
	mu sync.Mutex

	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// Option configures a Service.
type Option func(*Service)

// WithEmitter sends violation and request log rows to e.
func WithEmitter(e audit.Emitter) Option {
	return func(s *Service) {
		if e != nil {
			s.events = e
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepInterval sets how often Start sweeps stale entries.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// NewService creates a service over store. A nil store means a new MemoryStore.
func NewService(store EntryStore, opts ...Option) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Service{
		store:         store,
		events:        audit.Discard,
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check decides whether one more request for the derived key is allowed
// and counts it when it is.
func (s *Service) Check(ctx context.Context, cfg Config, userID string, hint ClientHint) Result {
	now := s.now()
	key := cfg.key(userID, hint)

	result, err := s.check(ctx, cfg, key, now)
	if err != nil {
		slog.Error("rate limit check failed, allowing request",
			"error", err,
			"key", key,
			"limit_type", cfg.Name,
		)
		metrics.RateLimitDecisionsTotal.WithLabelValues(cfg.label(), "error").Inc()
		return Result{Allowed: true, Remaining: cfg.MaxRequests, ResetTime: now.Add(cfg.Window)}
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = "blocked"
	}
	metrics.RateLimitDecisionsTotal.WithLabelValues(cfg.label(), outcome).Inc()
	return result
}

func (s *Service) check(ctx context.Context, cfg Config, key string, now time.Time) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load entry: %w", err)
	}

	if entry != nil && entry.Blocked(now) {
		return blockedResult(*entry.BlockedUntil, now), nil
	}

	// No entry, an elapsed block or an expired window all start a fresh window
	if entry == nil || entry.BlockedUntil != nil || now.Sub(entry.WindowStart) >= cfg.Window {
		entry = &models.RateLimitEntry{Key: key, WindowStart: now}
	}

	if entry.Count >= cfg.MaxRequests {
		until := now.Add(cfg.blockDuration())
		entry.BlockedUntil = &until
		if err := s.store.Save(ctx, entry); err != nil {
			return Result{}, fmt.Errorf("failed to save blocked entry: %w", err)
		}

		slog.Warn("rate limit exceeded",
			"key", key,
			"limit_type", cfg.Name,
			"limit", cfg.MaxRequests,
			"blocked_until", until,
		)
		metrics.RateLimitViolationsTotal.WithLabelValues(cfg.label()).Inc()
		s.events.Emit(audit.ViolationEvent(models.RateLimitViolation{
			Key:          key,
			Action:       cfg.Name,
			RequestCount: entry.Count,
			MaxRequests:  cfg.MaxRequests,
			WindowMs:     cfg.Window.Milliseconds(),
			BlockedUntil: until,
			CreatedAt:    now,
		}))
		return blockedResult(until, now), nil
	}

	entry.Count++
	if err := s.store.Save(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("failed to save entry: %w", err)
	}

	return Result{
		Allowed:   true,
		Remaining: cfg.MaxRequests - entry.Count,
		ResetTime: entry.WindowStart.Add(cfg.Window),
	}, nil
}

func blockedResult(until, now time.Time) Result {
	return Result{
		Allowed:    false,
		Remaining:  0,
		ResetTime:  until,
		RetryAfter: until.Sub(now),
	}
}

// Record logs the outcome of a request that passed Check. It honors the
// skip flags of cfg and never fails the caller.
func (s *Service) Record(ctx context.Context, cfg Config, success bool, userID string, hint ClientHint) {
	if (success && cfg.SkipSuccessfulRequests) || (!success && cfg.SkipFailedRequests) {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("failed to record rate limited request", "panic", r, "limit_type", cfg.Name)
		}
	}()

	s.events.Emit(audit.RateLimitLogEvent(models.RateLimitLog{
		Key:       cfg.key(userID, hint),
		Action:    cfg.Name,
		Success:   success,
		CreatedAt: s.now(),
	}))
}

// Reset deletes the entry for the derived key. A nil keyGen means DefaultKey.
func (s *Service) Reset(ctx context.Context, userID string, hint ClientHint, keyGen KeyGenerator) error {
	if keyGen == nil {
		keyGen = DefaultKey
	}
	key := keyGen(userID, hint)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to reset rate limit for %s: %w", key, err)
	}
	return nil
}

// Status returns the current state of the derived key without counting a
// request. It returns nil when the key has no entry or its window is over.
func (s *Service) Status(ctx context.Context, cfg Config, userID string, hint ClientHint) *Result {
	if err := cfg.validate(); err != nil {
		slog.Error("invalid rate limit config", "error", err, "limit_type", cfg.Name)
		return nil
	}

	now := s.now()
	key := cfg.key(userID, hint)

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		slog.Error("failed to read rate limit status", "error", err, "key", key)
		return nil
	}
	if entry == nil {
		return nil
	}

	if entry.Blocked(now) {
		result := blockedResult(*entry.BlockedUntil, now)
		return &result
	}
	if entry.BlockedUntil != nil || now.Sub(entry.WindowStart) >= cfg.Window {
		return nil
	}

	remaining := cfg.MaxRequests - entry.Count
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetTime: entry.WindowStart.Add(cfg.Window),
	}
}

// CheckHealth reads a fixed key from the entry store. Checks fail open, so an
// unreachable store degrades the instance instead of failing it.
func (s *Service) CheckHealth(ctx context.Context) repository.ComponentHealth {
	start := time.Now()
	_, err := s.store.Get(ctx, healthCheckKey)
	c := repository.ComponentHealth{
		Name:      "rate_limit_store",
		Status:    repository.HealthStatusHealthy,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		slog.Warn("rate limit store unreachable", "error", err)
		c.Status = repository.HealthStatusDegraded
		c.Message = "entry store unreachable; requests are allowed uncounted"
	}
	return c
}

// Start launches the background sweep. Calling it more than once has no effect.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.sweepLoop()
		slog.Info("rate limit sweeper started", "interval", s.sweepInterval)
	})
}

// Close stops the background sweep and waits for it to exit.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

func (s *Service) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Service) sweep() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	removed, err := s.store.DeleteStale(ctx, s.now(), StaleAfter)
	if err != nil {
		slog.Error("failed to sweep stale rate limit entries", "error", err)
		return 0
	}
	if removed > 0 {
		metrics.RateLimitEntriesSweptTotal.Add(float64(removed))
		slog.Debug("swept stale rate limit entries", "count", removed)
	}
	return removed
}
