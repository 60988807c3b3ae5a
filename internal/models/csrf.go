package models

import "time"

// CSRFToken is the anti-forgery token of one client session.
type CSRFToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID string    `json:"session_id,omitempty"`
}

// Expired reports whether the token is no longer usable at now.
func (t *CSRFToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// CSRFTokenResponse is returned by the token endpoint
type CSRFTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Header    string    `json:"header"`
}

// CSRFErrorResponse is returned when a state-changing request fails CSRF validation.
// NewToken is set when the stored token had expired so the caller can retry.
type CSRFErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	NewToken string `json:"new_token,omitempty"`
}
