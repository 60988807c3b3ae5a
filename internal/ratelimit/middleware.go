package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/metrics"
)

// Action names of the default limit table.
const (
	ActionLogin         = "login"
	ActionSignup        = "signup"
	ActionPasswordReset = "password_reset"
	ActionSearch        = "search"
	ActionCart          = "cart"
	ActionCheckout      = "checkout"
	ActionContact       = "contact"
	ActionAPI           = "api"
)

// ErrLimitExceeded is matched by every *LimitError.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// LimitError is returned by a wrapped operation that was rejected before it ran.
type LimitError struct {
	Action     string
	Message    string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return e.Message
}

func (e *LimitError) Unwrap() error {
	return ErrLimitExceeded
}

// DefaultActions returns the built-in limit table.
func DefaultActions() map[string]Config {
	return map[string]Config{
		ActionLogin:         {Window: 15 * time.Minute, MaxRequests: 5, BlockDuration: 15 * time.Minute},
		ActionSignup:        {Window: time.Hour, MaxRequests: 3, BlockDuration: time.Hour},
		ActionPasswordReset: {Window: time.Hour, MaxRequests: 3, BlockDuration: time.Hour},
		ActionSearch:        {Window: time.Minute, MaxRequests: 30},
		ActionCart:          {Window: time.Minute, MaxRequests: 20},
		ActionCheckout:      {Window: 5 * time.Minute, MaxRequests: 5, BlockDuration: 15 * time.Minute},
		ActionContact:       {Window: time.Hour, MaxRequests: 3, BlockDuration: time.Hour},
		ActionAPI:           {Window: time.Minute, MaxRequests: 100},
	}
}

// ActionsFromConfig returns DefaultActions with the configurable limits applied.
func ActionsFromConfig(cfg *config.Config) map[string]Config {
	actions := DefaultActions()

	login := actions[ActionLogin]
	login.MaxRequests = cfg.RateLimitLoginMaxRequests
	actions[ActionLogin] = login

	api := actions[ActionAPI]
	api.MaxRequests = cfg.RateLimitAPIMaxRequests
	api.Window = cfg.RateLimitAPIWindow()
	actions[ActionAPI] = api

	return actions
}

// Options carry the per-call inputs of the middleware.
type Options struct {
	UserID          string
	Hint            ClientHint
	KeyGenerator    KeyGenerator   // Replaces DefaultKey; the action prefix is still applied
	SkipCondition   func() bool    // Returning true bypasses the limit entirely
	OnLimitExceeded func(Response) // Called after a rejection
}

// Response is a Result with a human-readable message attached on rejection.
type Response struct {
	Result
	Action  string
	Limit   int
	Message string
}

// Middleware applies per-action limits from a table. Keys are namespaced as
// "<action>:<key>" so actions sharing one Service never share a counter.
type Middleware struct {
	service *Service
	actions map[string]Config
}

// NewMiddleware creates a middleware over service. A nil table means DefaultActions.
func NewMiddleware(service *Service, actions map[string]Config) *Middleware {
	if actions == nil {
		actions = DefaultActions()
	}
	table := make(map[string]Config, len(actions))
	for name, cfg := range actions {
		table[name] = cfg
	}
	if _, ok := table[ActionAPI]; !ok {
		table[ActionAPI] = DefaultActions()[ActionAPI]
	}
	return &Middleware{service: service, actions: table}
}

// Config returns the limit of action with its key generator bound to opts.
// Unknown actions use the limits of ActionAPI under their own namespace.
func (m *Middleware) Config(action string, opts Options) Config {
	cfg, ok := m.actions[action]
	if !ok {
		cfg = m.actions[ActionAPI]
	}
	cfg.Name = action
	cfg.KeyGenerator = Namespaced(action, opts.KeyGenerator)
	return cfg
}

// Check consults the service for action. When opts.SkipCondition reports
// true the store is not touched and the call is allowed.
func (m *Middleware) Check(ctx context.Context, action string, opts Options) Response {
	cfg := m.Config(action, opts)

	if opts.SkipCondition != nil && opts.SkipCondition() {
		metrics.RateLimitDecisionsTotal.WithLabelValues(action, "skipped").Inc()
		return Response{
			Result: Result{
				Allowed:   true,
				Remaining: cfg.MaxRequests,
				ResetTime: m.service.now().Add(cfg.Window),
			},
			Action: action,
			Limit:  cfg.MaxRequests,
		}
	}

	resp := Response{
		Result: m.service.Check(ctx, cfg, opts.UserID, opts.Hint),
		Action: action,
		Limit:  cfg.MaxRequests,
	}
	if !resp.Allowed {
		resp.Message = FormatRetryMessage(resp.RetryAfter)
		if opts.OnLimitExceeded != nil {
			opts.OnLimitExceeded(resp)
		}
	}
	return resp
}

// Record passes the outcome of action to the service.
func (m *Middleware) Record(ctx context.Context, action string, success bool, opts Options) {
	m.service.Record(ctx, m.Config(action, opts), success, opts.UserID, opts.Hint)
}

// Status returns the state of action for the caller, or nil when no window is active.
func (m *Middleware) Status(ctx context.Context, action string, opts Options) *Response {
	cfg := m.Config(action, opts)
	result := m.service.Status(ctx, cfg, opts.UserID, opts.Hint)
	if result == nil {
		return nil
	}
	resp := &Response{Result: *result, Action: action, Limit: cfg.MaxRequests}
	if !result.Allowed && result.RetryAfter > 0 {
		resp.Message = FormatRetryMessage(result.RetryAfter)
	}
	return resp
}

// Reset clears the counter of action for the caller.
func (m *Middleware) Reset(ctx context.Context, action string, opts Options) error {
	return m.service.Reset(ctx, opts.UserID, opts.Hint, Namespaced(action, opts.KeyGenerator))
}

// Wrap returns fn gated by the limit of action. A rejected call returns a
// *LimitError without invoking fn; otherwise the outcome of fn is recorded
// and its results are returned unchanged.
func Wrap[T any](m *Middleware, action string, opts Options, fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var zero T

		resp := m.Check(ctx, action, opts)
		if !resp.Allowed {
			return zero, &LimitError{
				Action:     action,
				Message:    resp.Message,
				RetryAfter: resp.RetryAfter,
			}
		}

		result, err := fn(ctx)
		m.Record(ctx, action, err == nil, opts)
		if err != nil {
			slog.Debug("rate limited operation failed", "action", action, "error", err)
			return result, err
		}
		return result, nil
	}
}

// FormatRetryMessage tells the user how long to wait, in seconds below a
// minute and in whole minutes (rounded up) otherwise.
func FormatRetryMessage(retryAfter time.Duration) string {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	if seconds < 60 {
		return fmt.Sprintf("Too many requests. Please try again in %d %s.", seconds, plural(seconds, "second"))
	}
	minutes := int(math.Ceil(float64(seconds) / 60))
	return fmt.Sprintf("Too many requests. Please try again in %d %s.", minutes, plural(minutes, "minute"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
