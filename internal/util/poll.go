package util

import (
	"context"
	"errors"
	"time"
)

var ErrPollTimeout = errors.New("poll timed out")

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollUntil calls fn every interval until it reports done, returns an error,
// or timeout elapses. A timeout <= 0 polls until ctx is done.
func PollUntil(ctx context.Context, interval, timeout time.Duration, fn func(ctx context.Context) (bool, error)) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !deadline.IsZero() && !time.Now().Add(interval).Before(deadline) {
			return ErrPollTimeout
		}
		if err := Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
