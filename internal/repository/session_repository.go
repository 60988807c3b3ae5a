package repository

import (
	"context"
	"time"

	"github.com/naazbooks/storefront/internal/models"
)

// SessionRepository mirrors client sessions into user_sessions.
// Rows are deactivated, never deleted, so the history of a user's logins stays available.
type SessionRepository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, s *models.SessionInfo) error

	// GetByID returns the session with the given id, active or not.
	// Returns ErrNotFound if no row exists.
	GetByID(ctx context.Context, sessionID string) (*models.SessionInfo, error)

	// UpdateActivity sets last_activity of an active session.
	// Returns ErrNotFound if the session does not exist or is inactive.
	UpdateActivity(ctx context.Context, sessionID string, at time.Time) error

	// Extend sets a new expiry and last_activity on an active session.
	// Returns ErrNotFound if the session does not exist or is inactive.
	Extend(ctx context.Context, sessionID string, expiresAt, lastActivity time.Time) error

	// Deactivate marks one session inactive. Deactivating an inactive
	// session is not an error; an unknown id returns ErrNotFound.
	Deactivate(ctx context.Context, sessionID string) error

	// DeactivateAllForUser marks every active session of userID inactive
	// except exceptSessionID (which may be empty).
	DeactivateAllForUser(ctx context.Context, userID, exceptSessionID string) (int64, error)

	// ListActiveByUser returns the sessions of a user that are active and
	// unexpired at now, most recently active first.
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.SessionInfo, error)

	// DeactivateOldest keeps the keep most recently active unexpired sessions
	// of userID and deactivates the other unexpired ones. Expired rows are
	// left to DeactivateExpired and do not take a slot.
	DeactivateOldest(ctx context.Context, userID string, keep int, now time.Time) (int64, error)

	// DeactivateExpired deactivates every active session whose expiry is not after now.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
