package registry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Retry polls accessor up to maxAttempts times, waiting interval between
// attempts and never after the last one. It is meant for consumers that only
// hold an Accessor.
//
// Only ErrNotPublished is retried. Any other error from the accessor is
// returned as is. Exhaustion yields an error matching both
// ErrAcquisitionTimeout and ErrNotPublished.
func Retry[T any](ctx context.Context, accessor Accessor[T], maxAttempts int, interval time.Duration) (T, error) {
	return retry(ctx, accessor, maxAttempts, interval, nil)
}

// retry implements Retry. A receive on wake cuts the current wait short.
func retry[T any](ctx context.Context, accessor Accessor[T], maxAttempts int, interval time.Duration, wake <-chan struct{}) (T, error) {
	var zero T
	if accessor == nil {
		return zero, errors.New("registry: accessor is nil")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		v, err := accessor()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotPublished) {
			return zero, err
		}
		if attempt >= maxAttempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrAcquisitionTimeout, maxAttempts, err)
		}

		if err := wait(ctx, interval, wake); err != nil {
			return zero, fmt.Errorf("registry: acquisition cancelled after %d attempts: %w", attempt, err)
		}
	}
}

func wait(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
