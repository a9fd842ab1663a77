package shutter

import (
	"sync"
	"time"
)

// FakeClock is a manually driven Clock. After advances the clock by the
// requested duration and fires immediately, so waits cost no real time.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time

	// Sleeps records every duration passed to After.
	Sleeps []time.Duration

	// OnAfter, if set, is called after each advance with the new time.
	// It runs without the clock's lock held and may call back into the
	// controller.
	OnAfter func(now time.Time)
}

// NewFakeClock creates a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After advances the clock by d and returns a channel that is already ready.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.Sleeps = append(c.Sleeps, d)
	now := c.now
	hook := c.OnAfter
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward without recording a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SleepLog returns a copy of the recorded sleeps.
func (c *FakeClock) SleepLog() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.Sleeps...)
}
