package backoff

import (
	"context"
	"time"

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
)

type (
	// Operation to retry.
	Operation func(ctx context.Context) error

	// IsRetriableFunc reports whether err is worth another attempt.
	IsRetriableFunc func(err error) bool
)

// Retry runs op until it succeeds, returns a non-retriable error, the policy
// gives up, or ctx is done. The last operation error is returned. A nil
// isRetriable treats every error as retriable.
func Retry(ctx context.Context, op Operation, policy RetryPolicy, isRetriable IsRetriableFunc) error {
	if isRetriable == nil {
		isRetriable = func(error) bool { return true }
	}

	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if retry > 0 {
				logger.Debug(ctx, "Retryable operation succeeded", tag.Attempt(retry+1))
			}
			return nil
		}
		if !isRetriable(err) {
			return err
		}

		interval, policyErr := policy.ComputeNextInterval(retry, err)
		if policyErr != nil {
			logger.Warn(ctx, "Retry attempts exhausted", tag.Attempt(retry+1), tag.Error(err))
			return err
		}
		if interval <= 0 {
			interval = 100 * time.Millisecond
		}

		logger.Debug(ctx, "Retryable operation failed; scheduling retry",
			tag.Attempt(retry+1), tag.Interval(interval), tag.Error(err))

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
