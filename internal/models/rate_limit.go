package models

import "time"

// RateLimitEntry is the counter state of one rate limit key.
// BlockedUntil is nil unless the key has tripped.
type RateLimitEntry struct {
	Key          string     `json:"key"`
	Count        int        `json:"count"`
	WindowStart  time.Time  `json:"window_start"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// Blocked reports whether the entry rejects requests at now.
func (e *RateLimitEntry) Blocked(now time.Time) bool {
	return e.BlockedUntil != nil && now.Before(*e.BlockedUntil)
}

// Stale reports whether the entry can be swept: its window started more than
// maxAge before now and it is not blocked.
func (e *RateLimitEntry) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.WindowStart) > maxAge && !e.Blocked(now)
}
