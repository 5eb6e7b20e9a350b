package engine

import "sync/atomic"

// SeqSource is a monotonic logical clock. Clock implements it; tests may
// pass a resettable one.
type SeqSource interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock. It stamps settle cycles and, through
// gfx.WithSeqSource, every native call, so a journal orders both on one
// axis without wall-clock time.
//
// Clock is safe for concurrent use, although a Root only ever drives it
// from one goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Used to resume numbering
// after the last sequence stored in a journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
