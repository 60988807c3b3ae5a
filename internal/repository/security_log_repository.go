package repository

import (
	"context"
	"time"

	"github.com/naazbooks/storefront/internal/models"
)

// SecurityLogRepository stores the best-effort security logs
// (rate_limit_logs, rate_limit_violations, csrf_validation_logs).
// Writers never depend on these rows; they exist for review and alerting.
type SecurityLogRepository interface {
	// InsertRateLimitLog records the outcome of one rate limited request.
	InsertRateLimitLog(ctx context.Context, entry *models.RateLimitLog) error

	// InsertRateLimitViolation records a key tripping its limit.
	InsertRateLimitViolation(ctx context.Context, v *models.RateLimitViolation) error

	// InsertCSRFValidationLog records one CSRF validation.
	InsertCSRFValidationLog(ctx context.Context, entry *models.CSRFValidationLog) error

	// ListRateLimitViolations returns the most recent violations, newest first.
	// An empty key lists violations of all keys.
	ListRateLimitViolations(ctx context.Context, key string, limit int) ([]models.RateLimitViolation, error)

	// CountCSRFFailures returns the number of failed validations since the given time.
	CountCSRFFailures(ctx context.Context, since time.Time) (int64, error)

	// DeleteOlderThan removes log rows of all three tables created before cutoff.
	// Returns the total number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
