package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers with request metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 if WriteHeader not called
		}

		// Call next handler
		next.ServeHTTP(wrapped, r)

		// Record metrics
		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)
		method := r.Method
		status := strconv.Itoa(wrapped.statusCode)

		HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
		HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// normalizePath normalizes URL paths for metric labels to avoid cardinality explosion
// Replaces dynamic segments (product ids, user ids, actions) with placeholders
func normalizePath(path string) string {
	switch path {
	case "/", "/health", "/metrics", "/api/csrf-token",
		"/api/sessions", "/api/sessions/current", "/api/sessions/current/renew",
		"/api/products", "/api/cart", "/api/cart/items":
		return path
	}

	switch {
	case strings.HasPrefix(path, "/api/users/") && strings.HasSuffix(path, "/sessions"):
		return "/api/users/:id/sessions"

	case strings.HasPrefix(path, "/api/products/") && !strings.Contains(path[len("/api/products/"):], "/"):
		return "/api/products/:id"

	case strings.HasPrefix(path, "/api/cart/items/") && !strings.Contains(path[len("/api/cart/items/"):], "/"):
		return "/api/cart/items/:id"

	case strings.HasPrefix(path, "/api/rate-limit/") && !strings.Contains(path[len("/api/rate-limit/"):], "/"):
		return "/api/rate-limit/:action"

	default:
		return "/other"
	}
}
