package models

// ErrorResponse is the JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the JSON response for the health check endpoint
type HealthResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	DatabaseType  string            `json:"database_type"`
	DatabaseError string            `json:"database_error,omitempty"`
	AuditQueued   int               `json:"audit_queued"`
	Components    []HealthComponent `json:"components"`
}

// HealthComponent is the state of one subsystem in a HealthResponse
type HealthComponent struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Message   string `json:"message,omitempty"`
}

// RateLimitStatusResponse is returned by the rate limit status endpoint.
// Status is nil when the caller has no active window for the action.
type RateLimitStatusResponse struct {
	Action            string `json:"action"`
	Limited           bool   `json:"limited"`
	Remaining         int    `json:"remaining"`
	ResetAt           string `json:"reset_at,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	Message           string `json:"message,omitempty"`
}
