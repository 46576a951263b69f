package engine

import "sync/atomic"

// Clock hands out seqs. The graph stamps each query, nested ones included,
// and the journal stamps each recorded event, so ordering never depends on
// wall-clock time.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt returns a clock that continues after last. A journal reopened
// on an existing file resumes from its highest stored seq this way.
func NewClockAt(last int64) *Clock {
	var c Clock
	c.last.Store(last)
	return &c
}

// Next advances the clock and returns the new seq. Safe for concurrent use.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current is the last seq handed out, or the starting point if none was.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
