package shutter

import (
	"context"
	"time"
)

// Clock is the time source for the controller.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// RealClock uses the system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// After waits for the duration to elapse.
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// sleep waits d or until ctx is done. It never holds the controller lock.
func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}
