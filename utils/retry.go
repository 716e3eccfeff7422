package utils

import (
	"context"
	"fmt"
	"time"
)

// Retrier bounds a whole operation to MaxAttempts tries, waiting
// BaseDelay*attempt between consecutive tries.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger

	// Sleep replaces the context-aware wait between attempts; tests record delays with it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay returns the wait applied after the given failed attempt (1-based).
func (r *Retrier) Delay(attempt int) time.Duration {
	return r.BaseDelay * time.Duration(attempt)
}

// Do runs fn until it succeeds or the attempts are exhausted. The final
// failure is returned wrapped, so errors.Is/As still see the cause.
func (r *Retrier) Do(ctx context.Context, operationName string, fn func(attempt int) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			delay := r.Delay(attempt)
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, attempts, lastErr, delay)
			}
			if err := sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s interrupted after %d attempts: %w", operationName, attempt, lastErr)
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
