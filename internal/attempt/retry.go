package attempt

import (
	"context"
	"errors"

	"github.com/b2english/tensequest/internal/content"
)

// RetryPolicy bounds how often a submission is re-sent after a failure.
type RetryPolicy struct {
	// MaxAttempts is the total number of submissions, first one included.
	MaxAttempts int

	// Retryable reports whether an error warrants another attempt.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries once, and only when the backend reports the
// attempt as gone (404).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Retryable: content.IsNotFound}
}

// Allows reports whether a submission that failed with err on the given
// 0-based attempt may be tried again.
func (p RetryPolicy) Allows(attempt int, err error) bool {
	if err == nil || p.Retryable == nil {
		return false
	}
	// Context errors are never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if attempt+1 >= p.MaxAttempts {
		return false
	}
	return p.Retryable(err)
}
