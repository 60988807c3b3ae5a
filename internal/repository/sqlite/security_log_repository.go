package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// maxViolationListLimit caps ListRateLimitViolations.
const maxViolationListLimit = 500

// SecurityLogRepository implements repository.SecurityLogRepository for SQLite.
type SecurityLogRepository struct {
	db *sql.DB
}

// NewSecurityLogRepository creates a new SQLite security log repository.
func NewSecurityLogRepository(db *sql.DB) *SecurityLogRepository {
	return &SecurityLogRepository{db: db}
}

// createdAtOrNow returns t, or the current time when t is zero.
func createdAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// InsertRateLimitLog records the outcome of one rate limited request.
func (r *SecurityLogRepository) InsertRateLimitLog(ctx context.Context, entry *models.RateLimitLog) error {
	if entry == nil || entry.Key == "" || entry.Action == "" {
		return fmt.Errorf("%w: rate limit log needs key and action", repository.ErrInvalidInput)
	}

	entry.CreatedAt = createdAtOrNow(entry.CreatedAt)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO rate_limit_logs (rate_key, action, success, created_at) VALUES (?, ?, ?, ?)`,
		entry.Key, entry.Action, boolToInt(entry.Success), formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rate limit log: %w", err)
	}

	entry.ID, _ = result.LastInsertId()
	return nil
}

// InsertRateLimitViolation records a key tripping its limit.
func (r *SecurityLogRepository) InsertRateLimitViolation(ctx context.Context, v *models.RateLimitViolation) error {
	if v == nil || v.Key == "" || v.Action == "" {
		return fmt.Errorf("%w: violation needs key and action", repository.ErrInvalidInput)
	}

	v.CreatedAt = createdAtOrNow(v.CreatedAt)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO rate_limit_violations
			(rate_key, action, request_count, max_requests, window_ms, blocked_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.Key, v.Action, v.RequestCount, v.MaxRequests, v.WindowMs,
		formatTime(v.BlockedUntil), formatTime(v.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rate limit violation: %w", err)
	}

	v.ID, _ = result.LastInsertId()
	return nil
}

// InsertCSRFValidationLog records one CSRF validation.
func (r *SecurityLogRepository) InsertCSRFValidationLog(ctx context.Context, entry *models.CSRFValidationLog) error {
	if entry == nil {
		return fmt.Errorf("%w: csrf log cannot be nil", repository.ErrInvalidInput)
	}

	entry.CreatedAt = createdAtOrNow(entry.CreatedAt)
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO csrf_validation_logs (session_id, token_hint, is_valid, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.SessionID, entry.TokenHint, boolToInt(entry.IsValid), entry.Reason, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert csrf validation log: %w", err)
	}

	entry.ID, _ = result.LastInsertId()
	return nil
}

// ListRateLimitViolations returns the most recent violations, newest first.
func (r *SecurityLogRepository) ListRateLimitViolations(ctx context.Context, key string, limit int) ([]models.RateLimitViolation, error) {
	if limit <= 0 || limit > maxViolationListLimit {
		limit = maxViolationListLimit
	}

	query := `SELECT id, rate_key, action, request_count, max_requests, window_ms, blocked_until, created_at
		FROM rate_limit_violations`
	args := []any{}
	if key != "" {
		query += ` WHERE rate_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate limit violations: %w", err)
	}
	defer rows.Close()

	violations := []models.RateLimitViolation{}
	for rows.Next() {
		var v models.RateLimitViolation
		var blockedUntil, createdAt string
		if err := rows.Scan(&v.ID, &v.Key, &v.Action, &v.RequestCount, &v.MaxRequests, &v.WindowMs, &blockedUntil, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rate limit violation: %w", err)
		}
		if v.BlockedUntil, err = parseTimestamp(blockedUntil); err != nil {
			return nil, fmt.Errorf("failed to parse blocked_until: %w", err)
		}
		if v.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		violations = append(violations, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rate limit violations: %w", err)
	}

	return violations, nil
}

// CountCSRFFailures returns the number of failed validations since the given time.
func (r *SecurityLogRepository) CountCSRFFailures(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM csrf_validation_logs WHERE is_valid = 0 AND created_at >= ?`,
		formatTime(since),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count csrf failures: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes log rows created before cutoff from all three tables.
func (r *SecurityLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"rate_limit_logs", "rate_limit_violations", "csrf_validation_logs"} {
		// Table names come from the fixed list above
		result, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", formatTime(cutoff))
		if err != nil {
			return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return total, nil
}

// Ensure SecurityLogRepository implements repository.SecurityLogRepository.
var _ repository.SecurityLogRepository = (*SecurityLogRepository)(nil)
