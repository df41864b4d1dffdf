package repositories

import (
	"sync/atomic"
	"time"
)

// Clock issues server timestamps in epoch milliseconds. Timestamps from one
// Clock are strictly increasing even when the wall clock stalls or steps back,
// so a client polling with the last time it saw never skips a later insert.
type Clock struct {
	now  func() time.Time
	last atomic.Int64
}

// NewClock returns a Clock reading now, or time.Now when now is nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Millis returns the next timestamp.
func (c *Clock) Millis() int64 {
	for {
		prev := c.last.Load()
		next := c.now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if c.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
