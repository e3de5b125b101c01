// Package retry provides generic retry logic with exponential backoff for
// transient failures, plus a transience predicate for ledger operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (including initial attempt)
	InitialDelay time.Duration // Initial delay between retries
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultConfig provides sensible defaults for retry operations.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   2.0,
}

// IsRetryable determines if an error should trigger a retry.
type IsRetryable func(error) bool

// LedgerTransient reports whether an error is a transient ledger failure.
// Node unavailability is retryable; insufficient funds, invalid input, and
// payment rejections are not.
func LedgerTransient(err error) bool {
	return errors.Is(err, x402.ErrLedgerUnavailable)
}

// WithRetry executes fn with exponential backoff until it succeeds, returns a
// non-retryable error, exhausts MaxAttempts, or the context is cancelled.
func WithRetry[T any](
	ctx context.Context,
	config Config,
	isRetryable IsRetryable,
	fn func() (T, error),
) (T, error) {
	var zero T
	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("context cancelled: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return zero, err
		}

		// Don't sleep after last attempt
		if attempt < config.MaxAttempts-1 {
			select {
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * config.Multiplier)
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// WithLedgerRetry retries fn with the default configuration whenever the
// ledger is unreachable.
func WithLedgerRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return WithRetry(ctx, DefaultConfig, LedgerTransient, fn)
}
