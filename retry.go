package docforge

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// Retry defaults: exponential backoff doubling from the base delay up to
// the maximum, with ±50% jitter to avoid thundering-herd retries.
const (
	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 8 * time.Second
)

// RetryPolicy bounds automatic retries of transient export failures.
// Non-retryable error categories fail immediately on first occurrence.
type RetryPolicy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy returns the standard policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultRetryAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
		MaxDelay:    DefaultRetryMaxDelay,
		Jitter:      true,
	}
}

// Do runs op, retrying transient failures with exponential backoff until
// the attempt cap is reached. It returns the number of attempts made and
// the final error, if any.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	attempts := 0

	delayType := retry.DelayType(retry.BackOffDelay)
	if p.Jitter {
		delayType = retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay))
	}

	err := retry.Do(
		func() error {
			attempts++
			return op(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(p.MaxAttempts),
		retry.Delay(p.BaseDelay),
		retry.MaxDelay(p.MaxDelay),
		delayType,
		retry.MaxJitter(p.BaseDelay/2),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
	return attempts, err
}

// IsRetryable reports whether an error belongs to a transient category.
// Context cancellation is never retried: the caller asked to stop.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.Retryable()
	}
	return Categorize(err).Retryable()
}
