package ledger

import (
	"sync/atomic"
	"time"
)

// Clock supplies record timestamps. Timestamps seed identifier derivation
// and are stored as the record's creation time, so they should never go
// backwards.
type Clock interface {
	Now() int64
}

// SystemClock reports wall-clock Unix seconds.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() int64 {
	return time.Now().Unix()
}

// LogicalClock is a strictly increasing counter. Scenario runs use it so
// that timestamps, and therefore identifiers, are reproducible.
//
// Thread-safety: LogicalClock is safe for concurrent use.
type LogicalClock struct {
	now atomic.Int64
}

// NewLogicalClock creates a clock whose first Now returns start+1.
func NewLogicalClock(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.now.Store(start)
	return c
}

// Now implements Clock. Each call returns a unique, increasing value.
func (c *LogicalClock) Now() int64 {
	return c.now.Add(1)
}

// Current returns the last value handed out without advancing.
func (c *LogicalClock) Current() int64 {
	return c.now.Load()
}
