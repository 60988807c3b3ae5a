package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

const (
	maxSessionIDLength = 128
	maxUserIDLength    = 256
	maxDeviceInfoBytes = 512
)

const sessionColumns = `session_id, user_id, created_at, last_activity, expires_at, is_active, device_info, ip_address`

// SessionRepository implements repository.SessionRepository for PostgreSQL.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func validateSessionID(sessionID string) error {
	if sessionID == "" || len(sessionID) > maxSessionIDLength {
		return fmt.Errorf("%w: session id must be 1-%d characters", repository.ErrInvalidInput, maxSessionIDLength)
	}
	return nil
}

func validateUserID(userID string) error {
	if userID == "" || len(userID) > maxUserIDLength {
		return fmt.Errorf("%w: user id must be 1-%d characters", repository.ErrInvalidInput, maxUserIDLength)
	}
	return nil
}

// Create inserts a new session row.
func (r *SessionRepository) Create(ctx context.Context, s *models.SessionInfo) error {
	if s == nil {
		return fmt.Errorf("%w: session cannot be nil", repository.ErrInvalidInput)
	}
	if err := validateSessionID(s.SessionID); err != nil {
		return err
	}
	if err := validateUserID(s.UserID); err != nil {
		return err
	}
	if len(s.DeviceInfo) > maxDeviceInfoBytes {
		s.DeviceInfo = s.DeviceInfo[:maxDeviceInfoBytes]
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.SessionID, s.UserID, s.CreatedAt.UTC(), s.LastActivity.UTC(), s.ExpiresAt.UTC(),
		s.IsActive, s.DeviceInfo, s.IPAddress,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID returns the session with the given id, active or not.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*models.SessionInfo, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// UpdateActivity sets last_activity of an active session.
func (r *SessionRepository) UpdateActivity(ctx context.Context, sessionID string, at time.Time) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET last_activity = $1 WHERE session_id = $2 AND is_active`,
		at.UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}
	return requireOneRow(tag)
}

// Extend sets a new expiry and last_activity on an active session.
func (r *SessionRepository) Extend(ctx context.Context, sessionID string, expiresAt, lastActivity time.Time) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET expires_at = $1, last_activity = $2 WHERE session_id = $3 AND is_active`,
		expiresAt.UTC(), lastActivity.UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return requireOneRow(tag)
}

// Deactivate marks one session inactive.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `UPDATE user_sessions SET is_active = FALSE WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return requireOneRow(tag)
}

// DeactivateAllForUser marks every active session of userID inactive except exceptSessionID.
func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID, exceptSessionID string) (int64, error) {
	if err := validateUserID(userID); err != nil {
		return 0, err
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active AND session_id <> $2`,
		userID, exceptSessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListActiveByUser returns the active unexpired sessions of a user, most recently active first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.SessionInfo, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions
		WHERE user_id = $1 AND is_active AND expires_at > $2
		ORDER BY last_activity DESC, created_at DESC`, userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SessionInfo, error) {
		return scanSession(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return sessions, nil
}

// DeactivateOldest keeps the keep most recently active unexpired sessions of userID and deactivates the rest.
func (r *SessionRepository) DeactivateOldest(ctx context.Context, userID string, keep int, now time.Time) (int64, error) {
	if err := validateUserID(userID); err != nil {
		return 0, err
	}
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep cannot be negative", repository.ErrInvalidInput)
	}

	return withRetry(ctx, defaultMaxRetries, func() (int64, error) {
		tx, err := r.pool.BeginTx(ctx, TxOptions())
		if err != nil {
			return 0, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx,
			`UPDATE user_sessions SET is_active = FALSE
			WHERE user_id = $1 AND is_active AND expires_at > $3 AND session_id NOT IN (
				SELECT session_id FROM user_sessions
				WHERE user_id = $1 AND is_active AND expires_at > $3
				ORDER BY last_activity DESC, created_at DESC
				LIMIT $2
			)`, userID, keep, now.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate oldest sessions: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return tag.RowsAffected(), nil
	})
}

// DeactivateExpired deactivates every active session whose expiry is not after now.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE is_active AND expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (models.SessionInfo, error) {
	var s models.SessionInfo
	err := row.Scan(&s.SessionID, &s.UserID, &s.CreatedAt, &s.LastActivity, &s.ExpiresAt,
		&s.IsActive, &s.DeviceInfo, &s.IPAddress)
	return s, err
}

// requireOneRow maps an update that touched no rows to ErrNotFound.
func requireOneRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure SessionRepository implements repository.SessionRepository.
var _ repository.SessionRepository = (*SessionRepository)(nil)
