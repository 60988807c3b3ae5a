package repository

import (
	"context"
	"time"

	"github.com/naazbooks/storefront/internal/models"
)

// RateLimitRepository stores rate limit entries in the database so several
// instances can share counters without Redis.
type RateLimitRepository interface {
	// GetEntry retrieves the entry for key.
	// Returns nil, nil if no entry exists.
	GetEntry(ctx context.Context, key string) (*models.RateLimitEntry, error)

	// SaveEntry inserts or replaces the entry for entry.Key.
	SaveEntry(ctx context.Context, entry *models.RateLimitEntry) error

	// DeleteEntry removes the entry for key. A missing key is not an error.
	DeleteEntry(ctx context.Context, key string) error

	// DeleteStale removes entries whose window started more than maxAge
	// before now and which are not blocked at now.
	// Returns the number of entries removed.
	DeleteStale(ctx context.Context, now time.Time, maxAge time.Duration) (int64, error)
}
