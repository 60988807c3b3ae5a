package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// maxViolationListLimit caps ListRateLimitViolations.
const maxViolationListLimit = 500

// SecurityLogRepository implements repository.SecurityLogRepository for PostgreSQL.
type SecurityLogRepository struct {
	pool *Pool
}

// NewSecurityLogRepository creates a new PostgreSQL security log repository.
func NewSecurityLogRepository(pool *Pool) *SecurityLogRepository {
	return &SecurityLogRepository{pool: pool}
}

// InsertRateLimitLog records the outcome of one rate limited request.
func (r *SecurityLogRepository) InsertRateLimitLog(ctx context.Context, entry *models.RateLimitLog) error {
	if entry == nil || entry.Key == "" || entry.Action == "" {
		return fmt.Errorf("%w: rate limit log needs key and action", repository.ErrInvalidInput)
	}

	entry.CreatedAt = createdAtOrNow(entry.CreatedAt)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO rate_limit_logs (rate_key, action, success, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		entry.Key, entry.Action, entry.Success, entry.CreatedAt.UTC(),
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert rate limit log: %w", err)
	}
	return nil
}

// InsertRateLimitViolation records a key tripping its limit.
func (r *SecurityLogRepository) InsertRateLimitViolation(ctx context.Context, v *models.RateLimitViolation) error {
	if v == nil || v.Key == "" || v.Action == "" {
		return fmt.Errorf("%w: violation needs key and action", repository.ErrInvalidInput)
	}

	v.CreatedAt = createdAtOrNow(v.CreatedAt)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO rate_limit_violations
			(rate_key, action, request_count, max_requests, window_ms, blocked_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		v.Key, v.Action, v.RequestCount, v.MaxRequests, v.WindowMs, v.BlockedUntil.UTC(), v.CreatedAt.UTC(),
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to insert rate limit violation: %w", err)
	}
	return nil
}

// InsertCSRFValidationLog records one CSRF validation.
func (r *SecurityLogRepository) InsertCSRFValidationLog(ctx context.Context, entry *models.CSRFValidationLog) error {
	if entry == nil {
		return fmt.Errorf("%w: csrf log cannot be nil", repository.ErrInvalidInput)
	}

	entry.CreatedAt = createdAtOrNow(entry.CreatedAt)
	err := r.pool.QueryRow(ctx,
		`INSERT INTO csrf_validation_logs (session_id, token_hint, is_valid, reason, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		entry.SessionID, entry.TokenHint, entry.IsValid, entry.Reason, entry.CreatedAt.UTC(),
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert csrf validation log: %w", err)
	}
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
		query += ` WHERE rate_key = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
		args = append(args, key, limit)
	} else {
		query += ` ORDER BY created_at DESC, id DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate limit violations: %w", err)
	}

	violations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RateLimitViolation, error) {
		var v models.RateLimitViolation
		err := row.Scan(&v.ID, &v.Key, &v.Action, &v.RequestCount, &v.MaxRequests, &v.WindowMs, &v.BlockedUntil, &v.CreatedAt)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rate limit violations: %w", err)
	}

	return violations, nil
}

// CountCSRFFailures returns the number of failed validations since the given time.
func (r *SecurityLogRepository) CountCSRFFailures(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM csrf_validation_logs WHERE NOT is_valid AND created_at >= $1`,
		since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count csrf failures: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes log rows created before cutoff from all three tables.
func (r *SecurityLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return withRetry(ctx, defaultMaxRetries, func() (int64, error) {
		tx, err := r.pool.BeginTx(ctx, TxOptions())
		if err != nil {
			return 0, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		var total int64
		for _, table := range []string{"rate_limit_logs", "rate_limit_violations", "csrf_validation_logs"} {
			// Table names come from the fixed list above
			tag, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE created_at < $1", cutoff.UTC())
			if err != nil {
				return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
			}
			total += tag.RowsAffected()
		}

		if err := tx.Commit(ctx); err != nil {
			return 0, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return total, nil
	})
}

// Ensure SecurityLogRepository implements repository.SecurityLogRepository.
var _ repository.SecurityLogRepository = (*SecurityLogRepository)(nil)
