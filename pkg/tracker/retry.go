package tracker

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds a remote call with per-attempt timeouts. Attempt k
// (1-based) is given BaseTimeout*k, so later attempts get a larger budget;
// a fixed backoff separates attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseTimeout time.Duration
	Backoff     time.Duration
}

func (p RetryPolicy) AttemptTimeout(attempt int) time.Duration {
	return p.BaseTimeout * time.Duration(attempt)
}

// ExhaustedError is returned once every attempt has failed or timed out.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// DoWithRetry runs op under the policy. The per-attempt context is cancelled
// when its timeout budget runs out; cancellation of the parent context stops
// retrying immediately.
func DoWithRetry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout(attempt))
		result, err := op(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		last = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Last: last}
}
