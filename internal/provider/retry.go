package provider

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the standard bounds: 3 attempts, 500ms base,
// 10s cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (0-based):
// min(base * 2^attempt, max).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := time.Duration(float64(c.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Retry runs fn up to cfg.MaxAttempts times with exponential backoff.
// Only errors classified retryable are retried; terminal kinds (quota,
// validation) propagate immediately. Context cancellation aborts the loop.
func Retry(ctx context.Context, cfg RetryConfig, op string, fn func(context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.Backoff(attempt - 1)
			slog.Debug("Retrying AI call", "op", op, "attempt", attempt, "backoff", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
	}
	return err
}
