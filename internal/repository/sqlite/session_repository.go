package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

const (
	maxSessionIDLength = 128
	maxUserIDLength    = 256
	maxDeviceInfoBytes = 512
)

// SessionRepository implements repository.SessionRepository for SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
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

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions
			(session_id, user_id, created_at, last_activity, expires_at, is_active, device_info, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.UserID, formatTime(s.CreatedAt), formatTime(s.LastActivity),
		formatTime(s.ExpiresAt), boolToInt(s.IsActive), s.DeviceInfo, s.IPAddress,
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

	row := r.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, created_at, last_activity, expires_at, is_active, device_info, ip_address
		FROM user_sessions WHERE session_id = ?`, sessionID)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// UpdateActivity sets last_activity of an active session.
func (r *SessionRepository) UpdateActivity(ctx context.Context, sessionID string, at time.Time) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET last_activity = ? WHERE session_id = ? AND is_active = 1`,
		formatTime(at), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session activity: %w", err)
	}
	return requireOneRow(result)
}

// Extend sets a new expiry and last_activity on an active session.
func (r *SessionRepository) Extend(ctx context.Context, sessionID string, expiresAt, lastActivity time.Time) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET expires_at = ?, last_activity = ? WHERE session_id = ? AND is_active = 1`,
		formatTime(expiresAt), formatTime(lastActivity), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return requireOneRow(result)
}

// Deactivate marks one session inactive.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = 0 WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return requireOneRow(result)
}

// DeactivateAllForUser marks every active session of userID inactive except exceptSessionID.
func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID, exceptSessionID string) (int64, error) {
	if err := validateUserID(userID); err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1 AND session_id != ?`,
		userID, exceptSessionID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate user sessions: %w", err)
	}
	return result.RowsAffected()
}

// ListActiveByUser returns the active unexpired sessions of a user, most recently active first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.SessionInfo, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, user_id, created_at, last_activity, expires_at, is_active, device_info, ip_address
		FROM user_sessions WHERE user_id = ? AND is_active = 1 AND expires_at > ?
		ORDER BY last_activity DESC, created_at DESC`, userID, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.SessionInfo{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
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

	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoff := formatTime(now)
	result, err := tx.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = 0
		WHERE user_id = ? AND is_active = 1 AND expires_at > ? AND session_id NOT IN (
			SELECT session_id FROM user_sessions
			WHERE user_id = ? AND is_active = 1 AND expires_at > ?
			ORDER BY last_activity DESC, created_at DESC
			LIMIT ?
		)`, userID, cutoff, userID, cutoff, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate oldest sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return n, nil
}

// DeactivateExpired deactivates every active session whose expiry is not after now.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = 0 WHERE is_active = 1 AND expires_at <= ?`,
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.SessionInfo, error) {
	var s models.SessionInfo
	var createdAt, lastActivity, expiresAt string
	var isActive int
	if err := row.Scan(&s.SessionID, &s.UserID, &createdAt, &lastActivity, &expiresAt,
		&isActive, &s.DeviceInfo, &s.IPAddress); err != nil {
		return nil, err
	}

	var err error
	if s.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if s.LastActivity, err = parseTimestamp(lastActivity); err != nil {
		return nil, fmt.Errorf("failed to parse last_activity: %w", err)
	}
	if s.ExpiresAt, err = parseTimestamp(expiresAt); err != nil {
		return nil, fmt.Errorf("failed to parse expires_at: %w", err)
	}
	s.IsActive = isActive == 1
	return &s, nil
}

// requireOneRow maps an update that touched no rows to ErrNotFound.
func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure SessionRepository implements repository.SessionRepository.
var _ repository.SessionRepository = (*SessionRepository)(nil)
