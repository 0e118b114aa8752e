package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

var (
	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultJitter      = time.Second
)

// RetryPolicy retries operations whose errors report themselves as retryable.
// The wait after the n-th failed attempt is BaseDelay*(2^n-1) plus up to Jitter,
// unless the error carries a server-provided delay.
type RetryPolicy struct {
	Logger      *slog.Logger
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

// DefaultRetryPolicy returns the policy used for provider calls.
func DefaultRetryPolicy(name string) RetryPolicy {
	return RetryPolicy{
		Name:        name,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Jitter:      DefaultJitter,
	}
}

// Named returns a copy of the policy labelled for one call site.
func (p RetryPolicy) Named(name string) RetryPolicy {
	p.Name = name
	return p
}

// Delay computes the wait after the given 1-based failed attempt.
func (p RetryPolicy) Delay(attempt int, err error) time.Duration {
	if after, ok := RetryDelayHint(err); ok {
		return after
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay * time.Duration((1<<attempt)-1)
	if p.Jitter > 0 {
		delay += rand.N(p.Jitter)
	}
	return delay
}

// Do executes operation until it succeeds, fails permanently, or attempts run out.
func (p RetryPolicy) Do(ctx context.Context, operation func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for attempt := 1; ; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			logger.Error("Retry budget exhausted",
				"operation", p.Name,
				"attempts", attempt,
				"error", err)
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempt, err)
		}

		delay := p.Delay(attempt, err)
		logger.Warn("Operation failed, retrying",
			"operation", p.Name,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
