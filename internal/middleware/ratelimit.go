package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/naazbooks/storefront/internal/config"
	"github.com/naazbooks/storefront/internal/ratelimit"
)

// Headers a storefront page sets so anonymous callers without a usable
// address can still be told apart.
const (
	ScreenHeader   = "X-Client-Screen"
	TimezoneHeader = "X-Client-Timezone"
)

// RequestHint returns the anonymous rate limit hint of r: its client
// address, or when none is usable (unix sockets, mangled proxy headers) a
// fingerprint of the browser attributes it reports.
func RequestHint(r *http.Request, cfg *config.Config) ratelimit.ClientHint {
	if hint := ratelimit.NetworkHint(ClientIP(r, cfg)); !hint.IsZero() {
		return hint
	}
	return ratelimit.FingerprintHint(
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		r.Header.Get(ScreenHeader),
		r.Header.Get(TimezoneHeader),
	)
}

// ActionFunc names the rate limit action of a request. An empty name
// leaves the request unlimited.
type ActionFunc func(r *http.Request) string

// UserFunc returns the signed-in user of a request, or "".
type UserFunc func(r *http.Request) string

// DefaultAction maps storefront routes to limit actions.
func DefaultAction(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/api/sessions" && r.Method == http.MethodPost:
		return ratelimit.ActionLogin
	case path == "/api/products" && r.URL.Query().Get("q") != "":
		return ratelimit.ActionSearch
	case path == "/api/cart" || strings.HasPrefix(path, "/api/cart/"):
		return ratelimit.ActionCart
	case strings.HasPrefix(path, "/api/rate-limit/"):
		return ""
	case strings.HasPrefix(path, "/api/"):
		return ratelimit.ActionAPI
	}
	return ""
}

// RateLimit enforces the per-action limits of m. Every limited response
// carries X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset;
// rejected requests get 429 with Retry-After. Requests that pass are
// recorded as successful when the handler answers below 400.
func RateLimit(m *ratelimit.Middleware, cfg *config.Config, action ActionFunc, user UserFunc) func(http.Handler) http.Handler {
	if action == nil {
		action = DefaultAction
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := action(r)
			if name == "" {
				next.ServeHTTP(w, r)
				return
			}

			opts := ratelimit.Options{Hint: RequestHint(r, cfg)}
			if user != nil {
				opts.UserID = user(r)
			}

			resp := m.Check(r.Context(), name, opts)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(resp.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(resp.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resp.ResetTime.Unix(), 10))

			if !resp.Allowed {
				slog.Warn("rate limit exceeded",
					"action", name,
					"path", r.URL.Path,
					"ip", ClientIP(r, cfg),
					"hint_kind", opts.Hint.Kind.String(),
					"user_id", opts.UserID,
				)
				h.Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds()))
				writeError(w, http.StatusTooManyRequests, resp.Message, "RATE_LIMIT_EXCEEDED")
				return
			}

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)
			m.Record(r.Context(), name, wrapped.statusCode < http.StatusBadRequest, opts)
		})
	}
}
