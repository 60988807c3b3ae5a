package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryOptions controls WithRetry.
type RetryOptions struct {
	MaxAttempts int           // Total attempts including the first; values below 1 mean 1
	Delay       time.Duration // Pause before the second attempt
	Incremental bool          // When true the pause grows linearly: Delay, 2*Delay, 3*Delay...
}

// DefaultRetryOptions retries three times with a fixed 100ms pause.
var DefaultRetryOptions = RetryOptions{MaxAttempts: 3, Delay: 100 * time.Millisecond}

// WithRetry runs fn until it succeeds, the attempts are exhausted or ctx is
// done. The last error from fn is returned wrapped on exhaustion.
func WithRetry(ctx context.Context, opts RetryOptions, fn func(ctx context.Context) error) error {
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt-1, lastErr)
			}
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := opts.Delay
		if opts.Incremental {
			delay = opts.Delay * time.Duration(attempt)
		}
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
