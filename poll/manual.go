package poll

import (
	"context"
	"sync"
	"time"
)

// ManualClock is a virtual Clock. Sleep advances the clock instantly, so a
// polling loop under test finishes without waiting in real time.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
	hook   func(now time.Time)
}

// NewManualClock returns a ManualClock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the virtual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the virtual time by d and runs the OnSleep hook, if any.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	now, hook := c.now, c.hook
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
	return nil
}

// Advance moves the virtual time forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleeps returns how many times Sleep was called.
func (c *ManualClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// OnSleep registers fn to run after every Sleep, e.g. to feed bytes into a
// fake port as virtual time passes.
func (c *ManualClock) OnSleep(fn func(now time.Time)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}
