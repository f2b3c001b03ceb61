package query

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/model"
)

// Retryable reports whether err is worth another attempt: transient remote
// failures and local persistence failures are, everything else is not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var rfe *model.RemoteFetchError
	if errors.As(err, &rfe) {
		return rfe.Transient()
	}
	var pe *model.PersistenceError
	return errors.As(err, &pe)
}

// retry runs fn, retrying up to retries times with exponential backoff while
// the error is Retryable.
func retry[T any](ctx context.Context, c *Client, kind string, retries int, fn func(context.Context) (T, error)) (T, error) {
	if retries <= 0 {
		return fn(ctx)
	}

	eb := backoff.NewExponentialBackOff()
	if c.backoffInitial > 0 {
		eb.InitialInterval = c.backoffInitial
	}
	if c.backoffMax > 0 {
		eb.MaxInterval = c.backoffMax
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	v, err := backoff.RetryNotifyWithData(func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b, func(err error, wait time.Duration) {
		c.metrics.RecordQueryRetry(kind)
		c.logger.Debug("retrying after transient failure",
			zap.String("kind", kind), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil && Retryable(err) {
		c.logger.Warn("retries exhausted", zap.String("kind", kind), zap.Int("retries", retries), zap.Error(err))
	}
	return v, err
}
