package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig bounds how often a commit is re-attempted after a transient
// database failure.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

func (cfg RetryConfig) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		b.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		b.MaxInterval = cfg.MaxDelay
	}
	if cfg.BackoffFactor >= 1 {
		b.Multiplier = cfg.BackoffFactor
	}
	return b
}

// retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. The last error from fn is returned, not
// the context error.
func retry(ctx context.Context, cfg RetryConfig, retryable func(error) bool, fn func(attempt int) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	attempt := 0
	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		lastErr = fn(attempt)
		if lastErr != nil && (retryable == nil || !retryable(lastErr)) {
			return struct{}{}, backoff.Permanent(lastErr)
		}
		return struct{}{}, lastErr
	},
		backoff.WithBackOff(cfg.backOff()),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}
	if lastErr == nil {
		return err
	}
	if attempt == cfg.MaxAttempts && cfg.MaxAttempts > 1 && retryable != nil && retryable(lastErr) {
		return fmt.Errorf("after %d attempts: %w", attempt, lastErr)
	}
	return lastErr
}
