// Package session tracks login sessions of signed-in users.
//
// The current session of a client is mirrored in its local store under
// app_session; the sessions table is the source of truth for whether a
// session is still active. Validation fails closed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/metrics"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
	"github.com/naazbooks/storefront/internal/storage"
	"github.com/naazbooks/storefront/internal/utils"
)

var (
	// ErrNoSession is returned when the client has no current session.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidSession is returned when the current session failed validation.
	ErrInvalidSession = errors.New("invalid session")
)

const (
	heartbeatTimeout    = 30 * time.Second
	maxDeviceInfoLength = 255
)

// Config holds the session lifetimes.
type Config struct {
	MaxAge           time.Duration // Lifetime of a new or renewed session
	RenewalThreshold time.Duration // Remaining lifetime below which renewal is suggested
	MaxSessions      int           // Active sessions kept per user
	ActivityInterval time.Duration // Heartbeat period
	ActivityThrottle time.Duration // Minimum spacing of activity writes per session
}

// DefaultConfig returns a 24h session with renewal in the last hour.
func DefaultConfig() Config {
	return Config{
		MaxAge:           24 * time.Hour,
		RenewalThreshold: time.Hour,
		MaxSessions:      5,
		ActivityInterval: 5 * time.Minute,
		ActivityThrottle: time.Minute,
	}
}

// ConfigFrom reads the session settings of cfg.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxAge:           cfg.SessionMaxAge(),
		RenewalThreshold: cfg.SessionRenewalThreshold(),
		MaxSessions:      cfg.SessionMaxPerUser,
		ActivityInterval: cfg.SessionActivityInterval(),
		ActivityThrottle: cfg.SessionActivityThrottle(),
	}
}

// ValidationResult is the outcome of ValidateSession.
type ValidationResult struct {
	IsValid         bool
	Session         *models.SessionInfo
	RequiresRenewal bool
	Error           string
}

// Response converts the result to its JSON form.
func (r ValidationResult) Response() models.SessionValidationResponse {
	return models.SessionValidationResponse{
		IsValid:         r.IsValid,
		Session:         r.Session,
		RequiresRenewal: r.RequiresRenewal,
		Error:           r.Error,
	}
}

type activity struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	pending  *time.Time // Newest throttled activity not yet written
}

// Tracker creates, validates and ends sessions.
type Tracker struct {
	repo  repository.SessionRepository
	cfg   Config
	now   func() time.Time
	newID func() string

	mu            sync.Mutex
	activity      map[string]*activity
	lastHeartbeat time.Time
	heartbeatErr  error

	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIDGenerator replaces uuid.NewString for session ids.
func WithIDGenerator(gen func() string) Option {
	return func(t *Tracker) {
		if gen != nil {
			t.newID = gen
		}
	}
}

// NewTracker returns a Tracker over repo. Call Start to run the activity
// heartbeat and Close to flush pending activity on shutdown.
func NewTracker(repo repository.SessionRepository, cfg Config, opts ...Option) *Tracker {
	t := &Tracker{
		repo:     repo,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
		activity: make(map[string]*activity),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateSession starts a session for userID, stores it as the client's
// current session and evicts the user's least recently active sessions
// beyond MaxSessions.
func (t *Tracker) CreateSession(ctx context.Context, local storage.Store, userID, deviceInfo, ipAddress string) (*models.SessionInfo, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", repository.ErrInvalidInput)
	}

	now := t.now()
	info := &models.SessionInfo{
		SessionID:    t.newID(),
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(t.cfg.MaxAge),
		IsActive:     true,
		DeviceInfo:   utils.SanitizeText(deviceInfo, maxDeviceInfoLength),
		IPAddress:    ipAddress,
	}

	if err := t.repo.Create(ctx, info); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	t.storeLocal(ctx, local, info)

	if t.cfg.MaxSessions > 0 {
		evicted, err := t.repo.DeactivateOldest(ctx, userID, t.cfg.MaxSessions, now)
		if err != nil {
			slog.Error("failed to enforce session cap", "error", err, "user_id", userID)
		} else if evicted > 0 {
			metrics.SessionEventsTotal.WithLabelValues("evicted").Add(float64(evicted))
			slog.Info("evicted old sessions", "user_id", userID, "count", evicted)
		}
	}

	metrics.SessionEventsTotal.WithLabelValues("created").Inc()
	slog.Info("session created",
		"user_id", userID,
		"session_id", utils.MaskToken(info.SessionID),
		"ip", ipAddress,
	)
	return info, nil
}

// CurrentSession returns the session stored in local without checking it.
func (t *Tracker) CurrentSession(ctx context.Context, local storage.Store) (*models.SessionInfo, error) {
	var info models.SessionInfo
	ok, err := storage.GetJSON(ctx, local, storage.KeyAppSession, &info)
	if err != nil {
		return nil, fmt.Errorf("failed to read current session: %w", err)
	}
	if !ok || info.SessionID == "" {
		return nil, ErrNoSession
	}
	return &info, nil
}

// ValidateSession checks the client's current session locally and against
// the sessions table. Expired or revoked sessions are removed from local.
func (t *Tracker) ValidateSession(ctx context.Context, local storage.Store) ValidationResult {
	result := t.validate(ctx, local)

	label := "validated"
	if !result.IsValid {
		label = "invalid"
	}
	metrics.SessionEventsTotal.WithLabelValues(label).Inc()
	return result
}

func (t *Tracker) validate(ctx context.Context, local storage.Store) ValidationResult {
	now := t.now()
	info, reason := t.verify(ctx, local, now)
	if reason != "" {
		return ValidationResult{Error: reason}
	}

	if err := t.repo.UpdateActivity(ctx, info.SessionID, now); err != nil {
		slog.Debug("failed to update session activity", "error", err, "session_id", utils.MaskToken(info.SessionID))
	}
	info.LastActivity = now
	t.storeLocal(ctx, local, info)

	return ValidationResult{
		IsValid:         true,
		Session:         info,
		RequiresRenewal: info.ExpiresAt.Sub(now) < t.cfg.RenewalThreshold,
	}
}

// Failure reasons of verify.
const (
	reasonNoSession  = "No active session"
	reasonUnreadable = "Session could not be read"
	reasonExpired    = "Session expired"
	reasonRevoked    = "Session is no longer active"
	reasonUnverified = "Session could not be verified"
)

// verify checks the stored session against its expiry and the sessions
// table. It returns the session, or the reason it is not usable. Expired
// and revoked sessions are cleared from local.
func (t *Tracker) verify(ctx context.Context, local storage.Store, now time.Time) (*models.SessionInfo, string) {
	info, err := t.CurrentSession(ctx, local)
	if errors.Is(err, ErrNoSession) {
		return nil, reasonNoSession
	}
	if err != nil {
		slog.Warn("session storage unavailable", "error", err)
		return nil, reasonUnreadable
	}

	if info.Expired(now) {
		if err := t.repo.Deactivate(ctx, info.SessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to deactivate expired session", "error", err, "session_id", utils.MaskToken(info.SessionID))
		}
		t.forget(info.SessionID)
		t.clearLocal(ctx, local)
		metrics.SessionEventsTotal.WithLabelValues("expired").Inc()
		return nil, reasonExpired
	}

	record, err := t.repo.GetByID(ctx, info.SessionID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && (!record.IsActive || record.Expired(now))) {
		t.forget(info.SessionID)
		t.clearLocal(ctx, local)
		return nil, reasonRevoked
	}
	if err != nil {
		slog.Error("failed to verify session", "error", err, "session_id", utils.MaskToken(info.SessionID))
		return nil, reasonUnverified
	}

	info.IsActive = true
	return info, ""
}

// ActiveSession returns the client's session after the same checks as
// ValidateSession, without recording activity. It is the lookup for
// requests that act on behalf of the signed-in user; any failure means
// the caller must be treated as a guest.
func (t *Tracker) ActiveSession(ctx context.Context, local storage.Store) (*models.SessionInfo, error) {
	info, reason := t.verify(ctx, local, t.now())
	switch reason {
	case "":
		return info, nil
	case reasonNoSession:
		return nil, ErrNoSession
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidSession, reason)
	}
}

// RenewSession extends the current session by MaxAge from now. The session
// must validate first.
func (t *Tracker) RenewSession(ctx context.Context, local storage.Store) (*models.SessionInfo, error) {
	result := t.ValidateSession(ctx, local)
	if !result.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSession, result.Error)
	}

	now := t.now()
	info := result.Session
	info.ExpiresAt = now.Add(t.cfg.MaxAge)
	info.LastActivity = now

	if err := t.repo.Extend(ctx, info.SessionID, info.ExpiresAt, now); err != nil {
		return nil, fmt.Errorf("failed to renew session: %w", err)
	}
	t.storeLocal(ctx, local, info)

	metrics.SessionEventsTotal.WithLabelValues("renewed").Inc()
	slog.Info("session renewed", "user_id", info.UserID, "session_id", utils.MaskToken(info.SessionID))
	return info, nil
}

// DestroySession deactivates sessionID and clears local when it is the
// client's current session.
func (t *Tracker) DestroySession(ctx context.Context, local storage.Store, sessionID string) error {
	if err := t.repo.Deactivate(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	t.forget(sessionID)

	if current, err := t.CurrentSession(ctx, local); err == nil && current.SessionID == sessionID {
		t.clearLocal(ctx, local)
	}

	metrics.SessionEventsTotal.WithLabelValues("destroyed").Inc()
	slog.Info("session destroyed", "session_id", utils.MaskToken(sessionID))
	return nil
}

// DestroyAllSessions deactivates every session of userID except
// exceptSessionID, which may be empty. Local state is cleared when the
// client's current session was among them.
func (t *Tracker) DestroyAllSessions(ctx context.Context, local storage.Store, userID, exceptSessionID string) (int64, error) {
	n, err := t.repo.DeactivateAllForUser(ctx, userID, exceptSessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to destroy sessions of %s: %w", userID, err)
	}

	if current, err := t.CurrentSession(ctx, local); err == nil &&
		current.UserID == userID && current.SessionID != exceptSessionID {
		t.forget(current.SessionID)
		t.clearLocal(ctx, local)
	}

	metrics.SessionEventsTotal.WithLabelValues("destroyed").Add(float64(n))
	slog.Info("user sessions destroyed", "user_id", userID, "count", n)
	return n, nil
}

// GetUserSessions lists the active sessions of userID, most recently active first.
func (t *Tracker) GetUserSessions(ctx context.Context, userID string) ([]models.SessionInfo, error) {
	sessions, err := t.repo.ListActiveByUser(ctx, userID, t.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions of %s: %w", userID, err)
	}
	return sessions, nil
}

// RecordActivity notes client activity on the current session. Writes are
// throttled to one per ActivityThrottle per session; throttled activity is
// written by the next heartbeat. Failures are logged only.
func (t *Tracker) RecordActivity(ctx context.Context, local storage.Store) {
	info, err := t.CurrentSession(ctx, local)
	if err != nil {
		return
	}

	now := t.now()
	if !t.allow(info.SessionID, now) {
		return
	}

	if err := t.repo.UpdateActivity(ctx, info.SessionID, now); err != nil {
		slog.Debug("failed to record session activity", "error", err, "session_id", utils.MaskToken(info.SessionID))
		return
	}
	if err := storage.SetJSON(ctx, local, storage.KeyLastActivity, now); err != nil {
		slog.Debug("failed to store last activity", "error", err)
	}
}

// allow reports whether an activity write for sessionID may happen now.
// A refused write is kept as pending.
func (t *Tracker) allow(sessionID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.activity[sessionID]
	if !ok {
		a = &activity{limiter: rate.NewLimiter(rate.Every(t.cfg.ActivityThrottle), 1)}
		t.activity[sessionID] = a
	}
	a.lastSeen = now

	if a.limiter.AllowN(now, 1) {
		a.pending = nil
		return true
	}
	a.pending = &now
	return false
}

func (t *Tracker) forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.activity, sessionID)
}

// StartActivityTracking runs the heartbeat until ctx is done or Close is
// called. Calling it more than once has no effect.
func (t *Tracker) StartActivityTracking(ctx context.Context) {
	t.startOnce.Do(func() {
		t.wg.Add(1)
		go t.heartbeatLoop(ctx)
		slog.Info("session activity tracking started", "interval", t.cfg.ActivityInterval)
	})
}

// Close stops the heartbeat and waits for it to exit.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.stop)
		t.wg.Wait()
	})
}

func (t *Tracker) heartbeatLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.ActivityInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.heartbeat(ctx)
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		}
	}
}

// heartbeat writes pending activity, drops idle throttle state and
// deactivates expired sessions.
func (t *Tracker) heartbeat(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, heartbeatTimeout)
	defer cancel()

	now := t.now()
	pending := make(map[string]time.Time)

	t.mu.Lock()
	for id, a := range t.activity {
		if a.pending != nil {
			pending[id] = *a.pending
			a.pending = nil
		}
		if now.Sub(a.lastSeen) > t.cfg.MaxAge {
			delete(t.activity, id)
		}
	}
	t.mu.Unlock()

	for id, at := range pending {
		if err := t.repo.UpdateActivity(ctx, id, at); err != nil {
			slog.Debug("failed to flush session activity", "error", err, "session_id", utils.MaskToken(id))
		}
	}

	expired, err := t.repo.DeactivateExpired(ctx, now)
	t.mu.Lock()
	t.lastHeartbeat, t.heartbeatErr = now, err
	t.mu.Unlock()
	if err != nil {
		slog.Error("failed to deactivate expired sessions", "error", err)
		return
	}
	if expired > 0 {
		metrics.SessionEventsTotal.WithLabelValues("expired").Add(float64(expired))
		slog.Debug("deactivated expired sessions", "count", expired)
	}
}

// CheckHealth reports whether the heartbeat keeps expiring sessions. A
// tracker whose heartbeat was never started reports healthy.
func (t *Tracker) CheckHealth(_ context.Context) repository.ComponentHealth {
	t.mu.Lock()
	last, err := t.lastHeartbeat, t.heartbeatErr
	t.mu.Unlock()

	c := repository.ComponentHealth{Name: "sessions", Status: repository.HealthStatusHealthy}
	switch {
	case err != nil:
		c.Status = repository.HealthStatusDegraded
		c.Message = "expiry sweep failing"
	case last.IsZero():
		c.Message = "no heartbeat yet"
	case t.now().Sub(last) > 3*t.cfg.ActivityInterval:
		c.Status = repository.HealthStatusDegraded
		c.Message = "heartbeat stalled"
	}
	return c
}

func (t *Tracker) storeLocal(ctx context.Context, local storage.Store, info *models.SessionInfo) {
	if err := storage.SetJSON(ctx, local, storage.KeyAppSession, info); err != nil {
		slog.Debug("failed to store session locally", "error", err)
	}
	if err := storage.SetJSON(ctx, local, storage.KeyLastActivity, info.LastActivity); err != nil {
		slog.Debug("failed to store last activity", "error", err)
	}
}

func (t *Tracker) clearLocal(ctx context.Context, local storage.Store) {
	for _, key := range []string{storage.KeyAppSession, storage.KeyLastActivity} {
		if err := local.Delete(ctx, key); err != nil {
			slog.Debug("failed to clear local session state", "error", err, "key", key)
		}
	}
}
