// Package retry wraps datastore writes that are safe to repeat with
// bounded exponential backoff. Safety comes from the callers'
// idempotency checks, not from this package.
package retry

import (
	"context"
	"time"

	backoff "github.com/sethvargo/go-retry"
)

// Do runs op up to maxAttempts times, sleeping 2^attempt * baseDelay
// between attempts. The last error is returned once attempts are
// exhausted. Context cancellation stops further attempts.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	b := backoff.WithMaxRetries(uint64(maxAttempts-1), backoff.NewExponential(baseDelay))
	return backoff.Do(ctx, b, func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			return backoff.RetryableError(err)
		}
		return nil
	})
}
