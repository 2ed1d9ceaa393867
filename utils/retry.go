package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger

	// Retryable decides whether a failed attempt should be retried.
	// A nil Retryable retries every error.
	Retryable func(error) bool

	// BeforeRetry runs between a failed attempt and the next one.
	// An error from BeforeRetry stops the retries.
	BeforeRetry func(ctx context.Context, attempt int, lastErr error) error
}

// Do executes fn with exponential back-off retry logic.
// It stops early when ctx is cancelled or the error is not retryable.
func (r *RetryConfig) Do(ctx context.Context, operationName string, fn func(attempt int) error) error {
	var lastErr error
	delay := r.BaseDelay
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if r.Retryable != nil && !r.Retryable(lastErr) {
			return lastErr
		}

		if attempt < attempts {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v — retrying in %v",
				operationName, attempt, attempts, lastErr, delay)
			if err := Sleep(ctx, delay); err != nil {
				return lastErr
			}
			if r.BeforeRetry != nil {
				if err := r.BeforeRetry(ctx, attempt, lastErr); err != nil {
					return fmt.Errorf("%s: prepare retry: %w", operationName, err)
				}
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}
