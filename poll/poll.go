// Package poll provides the bounded polling loop used while waiting on a
// serial line: check a condition, sleep an interval, repeat.
//
// The clock is injectable so tests can run the loops in virtual time, and an
// optional timeout bounds loops that would otherwise spin forever.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a Poller's Timeout elapses before its condition holds.
var ErrTimeout = errors.New("poll: timed out")

// Clock abstracts time for polling loops.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is a Clock backed by the time package.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// Sleep waits for d on a timer, returning early with ctx.Err() on cancellation.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
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

// Poller repeatedly evaluates a condition with a fixed sleep between attempts.
type Poller struct {
	// Clock defaults to RealClock
	Clock Clock

	// Interval is the sleep between unsuccessful attempts
	Interval time.Duration

	// Timeout bounds the whole loop. Zero polls forever.
	Timeout time.Duration
}

// Until calls cond until it reports done, returns an error, the Timeout
// elapses, or ctx is cancelled. cond is always called at least once.
func (p Poller) Until(ctx context.Context, cond func() (bool, error)) error {
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}

	var deadline time.Time
	if p.Timeout > 0 {
		deadline = clock.Now().Add(p.Timeout)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled after %d attempts: %w", attempt-1, err)
		}

		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if !deadline.IsZero() && !clock.Now().Before(deadline) {
			return fmt.Errorf("%w after %d attempts (%s)", ErrTimeout, attempt, p.Timeout)
		}

		if err := clock.Sleep(ctx, p.Interval); err != nil {
			return fmt.Errorf("cancelled after %d attempts: %w", attempt, err)
		}
	}
}

// While polls until cond reports false.
func (p Poller) While(ctx context.Context, cond func() (bool, error)) error {
	return p.Until(ctx, func() (bool, error) {
		busy, err := cond()
		return !busy, err
	})
}
