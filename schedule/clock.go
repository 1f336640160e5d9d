// Package schedule decides when the engine wakes up: an injectable clock,
// the session window, and the pure next-tick computation.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall time so tests and dry runs drive virtual time
// instead of sleeping.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is canceled, returning ctx.Err() in
	// the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the production clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

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

// FixedClock starts at a fixed instant and advances only when slept on.
// It replaces the debug-time switches the hand-run deployments used.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(start time.Time) *FixedClock {
	return &FixedClock{t: start}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		c.mu.Lock()
		c.t = c.t.Add(d)
		c.mu.Unlock()
	}
	return nil
}

// Set jumps the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}
