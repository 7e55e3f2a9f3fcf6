package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sei-tracker/internal/observability"
)

// RetryPolicy bounds upstream fetch retries.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the delay between retries.
	MaxInterval time.Duration
	// Timeout bounds one fetch including retries.
	Timeout time.Duration
}

// DefaultRetryPolicy returns the default upstream retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Timeout:         15 * time.Second,
	}
}

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrEntityNotFound) || errors.Is(err, ErrInvalidKeyFormat)
}

// withRetry runs op with exponential backoff and maps failures into the tracker taxonomy.
func (t *Tracker[S, R, M]) withRetry(ctx context.Context, operation, key string, op func(ctx context.Context) error) error {
	kind := t.kind.String()
	if t.retry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.retry.Timeout)
		defer cancel()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.retry.InitialInterval
	b.MaxInterval = t.retry.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, t.retry.MaxRetries), ctx)

	start := time.Now()
	err := backoff.RetryNotify(func() error {
		err := op(ctx)
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		observability.RecordUpstreamRetry(kind)
		t.logger.Debug().Err(err).Str("key", key).Str("op", operation).
			Dur("next", next).Msg("retrying upstream fetch")
	})
	observability.RecordUpstreamFetch(kind, operation, time.Since(start).Seconds())

	if err == nil || isPermanent(err) || errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s %s %s: %w", ErrUpstreamUnavailable, operation, kind, key, err)
}
