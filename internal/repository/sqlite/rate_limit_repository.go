package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/naazbooks/storefront/internal/models"
	"github.com/naazbooks/storefront/internal/repository"
)

// maxRateLimitKeyLength bounds stored keys; real keys are "<action>:user:<id>" or similar.
const maxRateLimitKeyLength = 256

// Maximum request count to prevent integer overflow.
// Any legitimate rate limit should be far below this value.
const maxRequestCount = 1000000000 // 1 billion

// RateLimitRepository implements repository.RateLimitRepository for SQLite.
type RateLimitRepository struct {
	db *sql.DB
}

// NewRateLimitRepository creates a new SQLite rate limit repository.
func NewRateLimitRepository(db *sql.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

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
		FROM rate_limit_entries WHERE rate_key = ?`

	var entry models.RateLimitEntry
	var windowStart string
	var blockedUntil sql.NullString

	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&entry.Key,
		&entry.Count,
		&windowStart,
		&blockedUntil,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit entry: %w", err)
	}

	entry.WindowStart, err = parseTimestamp(windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to parse window_start: %w", err)
	}
	entry.BlockedUntil, err = parseNullableTimestamp(blockedUntil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse blocked_until: %w", err)
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

	var blockedUntil any
	if entry.BlockedUntil != nil {
		blockedUntil = formatTime(*entry.BlockedUntil)
	}

	query := `INSERT INTO rate_limit_entries (rate_key, request_count, window_start, blocked_until, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(rate_key) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			blocked_until = excluded.blocked_until,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		entry.Key,
		entry.Count,
		formatTime(entry.WindowStart),
		blockedUntil,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save rate limit entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the entry for key.
func (r *RateLimitRepository) DeleteEntry(ctx context.Context, key string) error {
	if err := validateRateLimitKey(key); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `DELETE FROM rate_limit_entries WHERE rate_key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete rate limit entry: %w", err)
	}
	return nil
}

// DeleteStale removes entries whose window is older than maxAge and which are not blocked.
// Returns the number of entries removed.
func (r *RateLimitRepository) DeleteStale(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error) {
	query := `DELETE FROM rate_limit_entries
		WHERE window_start < ?
		AND (blocked_until IS NULL OR blocked_until <= ?)`

	result, err := r.db.ExecContext(ctx, query, formatTime(now.Add(-maxAge)), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale rate limit entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		slog.Debug("cleaned up stale rate limit entries", "count", rowsAffected)
	}

	return rowsAffected, nil
}

// Ensure RateLimitRepository implements repository.RateLimitRepository.
var _ repository.RateLimitRepository = (*RateLimitRepository)(nil)
