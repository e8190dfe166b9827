package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ashureev/devpulse/internal/shared"
)

// ErrRetriesExhausted is returned by Transact when every attempt lost to a
// concurrent writer or a transient driver error.
var ErrRetriesExhausted = errors.New("store: transaction retries exhausted")

// RetryPolicy bounds the compare-and-retry loop of Transact.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is used when callers do not configure one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   20 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
	}
}

// Transact runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. fn must perform a complete read-compute-write
// cycle so every attempt starts from a fresh read.
func Transact(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < attempts-1 {
			delay := p.backoff(attempt)
			slog.Debug("Transaction conflict, retrying",
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || shared.IsTransientStoreError(err)
}

// backoff returns BaseDelay * 2^attempt capped at MaxDelay, plus jitter in
// [0, BaseDelay).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && (delay > p.MaxDelay || delay <= 0) {
		delay = p.MaxDelay
	}
	return delay + time.Duration(rand.Int64N(int64(p.BaseDelay)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
