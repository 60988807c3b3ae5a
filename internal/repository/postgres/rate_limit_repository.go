package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// RateLimitRepository implements repository.RateLimitRepository for PostgreSQL.
type RateLimitRepository struct {
	pool *Pool
}

// NewRateLimitRepository creates a new PostgreSQL rate limit repository.
func NewRateLimitRepository(pool *Pool) *RateLimitRepository {
	return &RateLimitRepository{pool: pool}
}

// Maximum request count to prevent integer overflow.
const maxRequestCount = 1000000000 // 1 billion

// maxRateLimitKeyLength bounds stored keys.
const maxRateLimitKeyLength = 256

func validateRateLimitKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: rate limit key cannot be empty", repository.ErrInvalidInput)
	}
	if len(key) > maxRateLimitKeyLength {
		return fmt.Errorf("%w: rate limit key too long", repository.ErrInvalidInput)
	}
	return nil
}

// GetEntry retrieves the entry for key.
// Returns nil, nil if no entry exists.
func (r *RateLimitRepository) GetEntry(ctx context.Context, key string) (*models.RateLimitEntry, error) {
	if err := validateRateLimitKey(key); err != nil {
		return nil, err
	}

	query := `SELECT rate_key, request_count, window_start, blocked_until
		FROM rate_limit_entries WHERE rate_key = $1`

	var entry models.RateLimitEntry
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&entry.Key,
		&entry.Count,
		&entry.WindowStart,
		&entry.BlockedUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit entry: %w", err)
	}

	return &entry, nil
}

// SaveEntry inserts or replaces the entry for entry.Key.
// SECURITY: Validates the key and protects against integer overflow.
func (r *RateLimitRepository) SaveEntry(ctx context.Context, entry *models.RateLimitEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry cannot be nil", repository.ErrInvalidInput)
	}
	if err := validateRateLimitKey(entry.Key); err != nil {
		return err
	}
	if entry.Count < 0 || entry.Count > maxRequestCount {
		return fmt.Errorf("%w: request count out of range", repository.ErrInvalidInput)
	}

	query := `INSERT INTO rate_limit_entries (rate_key, request_count, window_start, blocked_until, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (rate_key) DO UPDATE SET
			request_count = EXCLUDED.request_count,
			window_start = EXCLUDED.window_start,
			blocked_until = EXCLUDED.blocked_until,
			updated_at = EXCLUDED.updated_at`

	return withRetryNoReturn(ctx, defaultMaxRetries, func() error {
		_, err := r.pool.Exec(ctx, query, entry.Key, entry.Count, entry.WindowStart.UTC(), nullableTime(entry.BlockedUntil))
		if err != nil {
			return fmt.Errorf("failed to save rate limit entry: %w", err)
		}
		return nil
	})
}

// DeleteEntry removes the entry for key.
func (r *RateLimitRepository) DeleteEntry(ctx context.Context, key string) error {
	if err := validateRateLimitKey(key); err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM rate_limit_entries WHERE rate_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete rate limit entry: %w", err)
	}
	return nil
}

// DeleteStale removes entries whose window is older than maxAge and which are not blocked.
// Returns the number of entries removed.
func (r *RateLimitRepository) DeleteStale(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	query := `DELETE FROM rate_limit_entries
		WHERE window_start < $1
		AND (blocked_until IS NULL OR blocked_until <= $2)`

	result, err := r.pool.Exec(ctx, query, now.Add(-maxAge).UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale rate limit entries: %w", err)
	}

	rowsAffected := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("cleaned up stale rate limit entries", "count", rowsAffected)
	}

	return rowsAffected, nil
}

// Ensure RateLimitRepository implements repository.RateLimitRepository.
var _ repository.RateLimitRepository = (*RateLimitRepository)(nil)
