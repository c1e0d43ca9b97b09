package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tieubaoca/knowledge-be/types"
)

// RetryPolicy shapes the exponential backoff applied to transient failures.
// Backoff intervals are jittered by the backoff library's default
// randomization factor.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
	}
}

// withRetry runs op, retrying transient errors (types.IsTransient) up to
// MaxRetries times with exponential backoff and jitter. Validation and
// permanent errors stop the retry loop immediately, as does ctx cancellation.
func withRetry(ctx context.Context, policy RetryPolicy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}
	if policy.Multiplier > 0 {
		b.Multiplier = policy.Multiplier
	}
	b.MaxElapsedTime = 0

	var bo backoff.BackOff = b
	if policy.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(b, uint64(policy.MaxRetries))
	}
	bo = backoff.WithContext(bo, ctx)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !types.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}
