package coord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justloop/cloudstate/metrics"
	"github.com/justloop/cloudstate/utils"
	log "github.com/sirupsen/logrus"
)

var logTagExecutor = "coord.executor"

// Executor runs coordination operations, retrying the transient failures
// with a linear backoff: the n-th retry waits n times the retry delay.
type Executor struct {
	retryCount int
	retryDelay time.Duration
}

// NewExecutor creates an executor, zero values select the defaults
func NewExecutor(retryCount int, retryDelay time.Duration) *Executor {
	return &Executor{
		retryCount: utils.SelectInt(retryCount, DefaultRetryCount),
		retryDelay: utils.SelectDuration(retryDelay, DefaultRetryDelay),
	}
}

// RetryCount returns the maximum number of attempts per operation
func (e *Executor) RetryCount() int {
	return e.retryCount
}

// Retry runs fn until it succeeds, fails with a non transient error, or runs out of attempts.
// The error of the last attempt is returned unchanged. Cancelling ctx while waiting between
// attempts aborts with an error matching both ErrInterrupted and the context error.
func Retry[T any](ctx context.Context, e *Executor, op string, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, Interrupted(err)
		}
		v, err := fn()
		if err == nil || !IsTransient(err) || attempt >= e.retryCount {
			return v, err
		}
		metrics.Retries.WithLabelValues(op).Inc()
		log.WithField("tag", logTagExecutor).Warnf("%s failed with %s, attempt %d of %d", op, err, attempt, e.retryCount)
		if err := sleep(ctx, time.Duration(attempt)*e.retryDelay); err != nil {
			return zero, err
		}
	}
}

// Do is Retry for operations without a result
func (e *Executor) Do(ctx context.Context, op string, fn func() error) error {
	_, err := Retry(ctx, e, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// EnsurePath creates a persistent node at path unless it exists.
// Losing the creation race to another client is not an error.
func (e *Executor) EnsurePath(ctx context.Context, client Client, path string, data []byte) error {
	exists, err := Retry(ctx, e, "exists", func() (bool, error) {
		return client.Exists(path)
	})
	if err != nil || exists {
		return err
	}
	err = e.Do(ctx, "create", func() error {
		return client.Create(path, data, Persistent)
	})
	if errors.Is(err, ErrNodeExists) {
		log.WithField("tag", logTagExecutor).Debugf("%s created concurrently by another client", path)
		return nil
	}
	return err
}

// Interrupted wraps a context error so it matches ErrInterrupted
func Interrupted(cause error) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Interrupted(ctx.Err())
	case <-timer.C:
		return nil
	}
}
