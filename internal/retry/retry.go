// Package retry wraps fallible external calls with bounded, exponentially
// spaced retries.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = time.Second
	DefaultBackoff     = 2.0
)

// Policy describes how often and how far apart an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the wait before the first retry.
	Delay time.Duration
	// Backoff multiplies the delay after each failed retry.
	Backoff float64

	// OnRetry, when set, is called before every wait. Tests use it to observe
	// the computed delays.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy returns the standard 3 attempts, 1s, x2 policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		Backoff:     DefaultBackoff,
	}
}

// Permanent marks err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// NonRetryable is implemented by errors that must never be retried, such as
// parse failures on otherwise successful calls.
type NonRetryable interface {
	error
	NonRetryable() bool
}

// IsRetryable reports whether err should consume retry budget.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var nr NonRetryable
	if errors.As(err, &nr) && nr.NonRetryable() {
		return false
	}
	return true
}

// DelayFor returns the wait after the given failed attempt (1-based).
func (p Policy) DelayFor(attempt int) time.Duration {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 1
	}
	return time.Duration(float64(p.Delay) * math.Pow(backoff, float64(attempt-1)))
}

// Do runs op until it succeeds, fails with a non-retryable error, or
// MaxAttempts attempts have been made. The last error is returned.
// name identifies the operation in log output.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempt := 0
	var lastErr error

	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= maxAttempts {
			return 0, true
		}
		delay := p.DelayFor(attempt)
		slog.Warn("Retrying operation",
			"operation", name,
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"delay", delay,
			"error", lastErr)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, lastErr)
		}
		return delay, false
	})

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
		return goretry.RetryableError(err)
	})
	if err == nil {
		return nil
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	if attempt >= maxAttempts && IsRetryable(err) {
		slog.Error("Operation failed after all attempts", "operation", name, "attempts", attempt, "error", err)
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
	}
	return err
}
