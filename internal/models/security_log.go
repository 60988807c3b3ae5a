package models

import "time"

// RateLimitLog is one row of rate_limit_logs, written for each recorded request outcome.
type RateLimitLog struct {
	ID        int64
	Key       string
	Action    string
	Success   bool
	CreatedAt time.Time
}

// RateLimitViolation is one row of rate_limit_violations, written when a key trips.
type RateLimitViolation struct {
	ID           int64
	Key          string
	Action       string
	RequestCount int
	MaxRequests  int
	WindowMs     int64
	BlockedUntil time.Time
	CreatedAt    time.Time
}

// CSRFValidationLog is one row of csrf_validation_logs.
// TokenHint holds a masked form of the token, never the token itself.
type CSRFValidationLog struct {
	ID        int64
	SessionID string
	TokenHint string
	IsValid   bool
	Reason    string
	CreatedAt time.Time
}
