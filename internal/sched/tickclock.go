// internal/sched/tickclock.go

package sched

import (
	"sync/atomic"
	"time"
)

// SimClock holds the virtual time of one strategy instance in milliseconds.
// It only moves when a tick reports elapsed time.
type SimClock struct {
	now atomic.Int64
}

// Now returns the current virtual time.
func (c *SimClock) Now() int64 { return c.now.Load() }

// Advance moves virtual time forward by d and returns the new time.
func (c *SimClock) Advance(d int64) int64 {
	if d < 0 {
		panic("sched: clock moved backwards")
	}
	return c.now.Add(d)
}

// TickClock paces virtual steps against wall time. Each wall tick is
// delivered on Ch and counted atomically.
type TickClock struct {
	Ch    chan struct{}
	count atomic.Int64
	stop  chan struct{}
}

// NewTickClock creates a stopped pacing clock.
func NewTickClock(buffer int) *TickClock {
	return &TickClock{
		Ch:   make(chan struct{}, buffer),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval. Ticks are dropped
// when the consumer falls behind by more than the buffer.
func (c *TickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				select {
				case c.Ch <- struct{}{}:
				default:
				}
			case <-c.stop:
				close(c.Ch)
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks.
func (c *TickClock) Stop() {
	close(c.stop)
}

// Count returns the number of wall ticks emitted so far.
func (c *TickClock) Count() int64 {
	return c.count.Load()
}
