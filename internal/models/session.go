package models

import "time"

// SessionInfo is a client-observed login session. One record exists per login;
// it is mirrored into the user_sessions table and deactivated rather than deleted.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
	DeviceInfo   string    `json:"device_info,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// Expired reports whether the session lifetime has elapsed at now.
func (s *SessionInfo) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// CreateSessionRequest is the request body for creating a session.
//
// Assertion is a short-lived token from the account backend naming the
// signed-in user. UserID is optional and must match it when present.
type CreateSessionRequest struct {
	UserID     string `json:"user_id,omitempty"`
	Assertion  string `json:"assertion"`
	DeviceInfo string `json:"device_info,omitempty"`
}

// SessionValidationResponse is the JSON form of a session validation result
type SessionValidationResponse struct {
	IsValid         bool         `json:"is_valid"`
	Session         *SessionInfo `json:"session,omitempty"`
	RequiresRenewal bool         `json:"requires_renewal"`
	Error           string       `json:"error,omitempty"`
}

// UserSessionsResponse lists the active sessions of a user
type UserSessionsResponse struct {
	UserID   string        `json:"user_id"`
	Sessions []SessionInfo `json:"sessions"`
}

// CreateSessionResponse is returned when a session is created. The CSRF
// token is rotated with the session and returned alongside it.
type CreateSessionResponse struct {
	Session   *SessionInfo `json:"session"`
	CSRFToken string       `json:"csrf_token"`
}

// DestroySessionsResponse reports how many sessions were ended
type DestroySessionsResponse struct {
	Destroyed int64 `json:"destroyed"`
}
