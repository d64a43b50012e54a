// Package retry retries idempotent reads against stores. Writes are never
// retried automatically.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"

	dErrors "compliancedesk/pkg/domain-errors"
	"compliancedesk/pkg/platform/sentinel"
)

const (
	attempts = 3
	base     = 25 * time.Millisecond
)

// Read runs fn up to three times with exponential backoff. Sentinel answers
// (not found, conflict...) and coded domain errors are returned at once.
func Read[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	backoff := goretry.WithMaxRetries(attempts-1, goretry.NewExponential(base))
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			if permanent(err) {
				return err
			}
			return goretry.RetryableError(err)
		}
		out = v
		return nil
	})
	return out, err
}

func permanent(err error) bool {
	if _, ok := dErrors.As(err); ok {
		return true
	}
	return errors.Is(err, sentinel.ErrNotFound) ||
		errors.Is(err, sentinel.ErrConflict) ||
		errors.Is(err, sentinel.ErrAlreadyUsed) ||
		errors.Is(err, sentinel.ErrInvalidState) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
