// Package csrf issues and checks the anti-forgery token of a client.
//
// The token lives in the client's local store and is bound to a per-tab
// session id kept in the session store. Validation fails closed: anything
// that cannot be confirmed is reported as invalid.
package csrf

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/naazbooks/storefront/internal/audit"
	"github.com/naazbooks/storefront/internal/metrics"
	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/storage"
	"github.com/naazbooks/storefront/internal/utils"
)

const (
	// HeaderName carries the token on state-changing requests.
	HeaderName = "X-CSRF-Token"

	// DefaultTTL is the lifetime of a freshly generated token.
	DefaultTTL = time.Hour

	tokenBytes = 32
)

// Validation failure reasons.
const (
	ReasonMissing         = "missing_token"
	ReasonNoStoredToken   = "no_stored_token"
	ReasonMismatch        = "token_mismatch"
	ReasonExpired         = "token_expired"
	ReasonSessionMismatch = "session_mismatch"
)

// ValidationResult is the outcome of ValidateToken. NewToken is set only
// when the stored token had expired.
type ValidationResult struct {
	IsValid  bool
	Error    string
	Reason   string
	NewToken *models.CSRFToken
}

// Manager generates and validates tokens. It keeps no per-client state of
// its own; every call names the client scope it works on.
type Manager struct {
	random io.Reader
	now    func() time.Time
	ttl    time.Duration
	events audit.Emitter
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithRandom replaces crypto/rand as the token source.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		m.random = r
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithEmitter sends validation log rows to e.
func WithEmitter(e audit.Emitter) Option {
	return func(m *Manager) {
		if e != nil {
			m.events = e
		}
	}
}

// NewManager returns a Manager with a one hour token lifetime, crypto/rand
// as the token source and no audit emitter unless opts say otherwise.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		now:    time.Now,
		ttl:    DefaultTTL,
		events: audit.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateToken creates a new token for the client and stores it. Storage
// failures leave the token unpersisted but still return it.
func (m *Manager) GenerateToken(ctx context.Context, scope storage.Scope) *models.CSRFToken {
	now := m.now()

	value, err := utils.RandomHex(m.random, tokenBytes)
	source := "secure"
	if err != nil {
		slog.Warn("secure random source unavailable, using fallback csrf token", "error", err)
		value = utils.FallbackToken(now)
		source = "fallback"
	}
	metrics.CSRFTokensGeneratedTotal.WithLabelValues(source).Inc()

	token := &models.CSRFToken{
		Token:     value,
		ExpiresAt: now.Add(m.ttl),
		SessionID: m.sessionID(ctx, scope),
	}

	if err := storage.SetJSON(ctx, scope.Local, storage.KeyCSRFToken, token); err != nil {
		slog.Debug("csrf token not persisted", "error", err, "client_id", scope.ClientID)
	}
	return token
}

// sessionID returns the tab session id, creating it on first use.
func (m *Manager) sessionID(ctx context.Context, scope storage.Scope) string {
	id, ok, err := scope.Session.Get(ctx, storage.KeyCSRFSessionID)
	if err == nil && ok && id != "" {
		return id
	}

	id = uuid.NewString()
	if err := scope.Session.Set(ctx, storage.KeyCSRFSessionID, id); err != nil {
		slog.Debug("csrf session id not persisted", "error", err, "client_id", scope.ClientID)
	}
	return id
}

// GetToken returns the stored token while it is unexpired, otherwise a new one.
func (m *Manager) GetToken(ctx context.Context, scope storage.Scope) *models.CSRFToken {
	if stored := m.stored(ctx, scope); stored != nil && !stored.Expired(m.now()) {
		return stored
	}
	return m.GenerateToken(ctx, scope)
}

func (m *Manager) stored(ctx context.Context, scope storage.Scope) *models.CSRFToken {
	var token models.CSRFToken
	ok, err := storage.GetJSON(ctx, scope.Local, storage.KeyCSRFToken, &token)
	if err != nil {
		slog.Debug("failed to read stored csrf token", "error", err, "client_id", scope.ClientID)
		return nil
	}
	if !ok || token.Token == "" {
		return nil
	}
	// An expired token is dropped from storage as soon as it is seen; the
	// caller still gets it so validation can report the expiry.
	if token.Expired(m.now()) {
		if err := scope.Local.Delete(ctx, storage.KeyCSRFToken); err != nil {
			slog.Debug("failed to delete expired csrf token", "error", err, "client_id", scope.ClientID)
		}
	}
	return &token
}

// ValidateToken checks provided against the stored token. A non-empty
// sessionID must match the session the token was issued to.
func (m *Manager) ValidateToken(ctx context.Context, scope storage.Scope, provided, sessionID string) ValidationResult {
	result := m.validate(ctx, scope, provided, sessionID)

	label := "valid"
	if !result.IsValid {
		label = result.Reason
		slog.Warn("csrf validation failed",
			"reason", result.Reason,
			"client_id", scope.ClientID,
			"token", utils.MaskToken(provided),
		)
	}
	metrics.CSRFValidationsTotal.WithLabelValues(label).Inc()

	m.events.Emit(audit.CSRFValidationEvent(models.CSRFValidationLog{
		SessionID: sessionID,
		TokenHint: utils.MaskToken(provided),
		IsValid:   result.IsValid,
		Reason:    result.Reason,
		CreatedAt: m.now(),
	}))
	return result
}

func (m *Manager) validate(ctx context.Context, scope storage.Scope, provided, sessionID string) ValidationResult {
	if provided == "" {
		return invalid(ReasonMissing, "CSRF token missing")
	}

	stored := m.stored(ctx, scope)
	if stored == nil {
		return invalid(ReasonNoStoredToken, "No CSRF token found")
	}

	if provided != stored.Token {
		return invalid(ReasonMismatch, "Invalid CSRF token")
	}

	if stored.Expired(m.now()) {
		result := invalid(ReasonExpired, "CSRF token expired")
		result.NewToken = m.GenerateToken(ctx, scope)
		return result
	}

	if sessionID != "" && stored.SessionID != "" && sessionID != stored.SessionID {
		return invalid(ReasonSessionMismatch, "CSRF token session mismatch")
	}

	return ValidationResult{IsValid: true}
}

func invalid(reason, message string) ValidationResult {
	return ValidationResult{Reason: reason, Error: message}
}

// RefreshToken discards the current token and issues a new one.
func (m *Manager) RefreshToken(ctx context.Context, scope storage.Scope) *models.CSRFToken {
	m.ClearToken(ctx, scope)
	return m.GenerateToken(ctx, scope)
}

// ClearToken removes the stored token and the tab session id.
func (m *Manager) ClearToken(ctx context.Context, scope storage.Scope) {
	if err := scope.Local.Delete(ctx, storage.KeyCSRFToken); err != nil {
		slog.Debug("failed to clear csrf token", "error", err, "client_id", scope.ClientID)
	}
	if err := scope.Session.Delete(ctx, storage.KeyCSRFSessionID); err != nil {
		slog.Debug("failed to clear csrf session id", "error", err, "client_id", scope.ClientID)
	}
}

// TokenHeader returns the header to attach to an outgoing request.
func (m *Manager) TokenHeader(ctx context.Context, scope storage.Scope) map[string]string {
	return map[string]string{HeaderName: m.GetToken(ctx, scope).Token}
}
