package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy bounds a retry loop. MaxAttempts counts the first call.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Retryable reports whether err is worth another attempt. nil retries
	// every error.
	Retryable func(err error) bool

	// OnRetry runs before each sleep, with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// Retry calls fn until it succeeds, the attempts run out, the error is not
// retryable or ctx ends. It returns the number of attempts made. Breaker
// rejections and permanent errors are never retried.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) error) (int, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	delay := policy.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if IsCircuitOpen(err) || IsTooManyRequests(err) || IsPermanent(err) {
			return attempt, err
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return attempt, err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return attempt, fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(delay):
			delay *= 2 // Exponential backoff
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}
	}

	return policy.MaxAttempts, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// PermanentError marks a failure that another attempt cannot fix, such as
// a rejected request. Retry stops on it.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
