package utils

import (
	"context"
	"errors"
	"time"
)

// ErrDeadline is returned by WaitUntil when the predicate never held before the timeout.
var ErrDeadline = errors.New("wait: deadline reached before condition held")

// Condition is polled by WaitUntil. An error aborts the wait.
type Condition func(ctx context.Context) (bool, error)

// WaitUntil polls cond every interval until it returns true, the timeout elapses,
// or ctx is cancelled. The condition is checked once immediately.
func WaitUntil(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrDeadline
		case <-ticker.C:
		}
	}
}

// PollFor calls tick every interval for the whole window and returns once it
// elapses. It returns early only when ctx is cancelled or tick fails.
func PollFor(ctx context.Context, interval, window time.Duration, tick func(ctx context.Context) error) error {
	err := WaitUntil(ctx, interval, window, func(ctx context.Context) (bool, error) {
		return false, tick(ctx)
	})
	if errors.Is(err, ErrDeadline) {
		// One last sample so exchanges finishing right at the deadline are seen.
		return tick(ctx)
	}
	return err
}

// Sleep pauses for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
