package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}

// backoff is the wait before retry attempt+1.
var backoff = func(attempt int) time.Duration {
	return time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
}

// retryRateLimited calls fn until it succeeds, fails with something other
// than a rate limit, or maxRetries is reached.
func retryRateLimited[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := range maxRetries {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !isRateLimit(err) {
			return zero, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}
	}
	return zero, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}
