package testutil

import (
	"sync"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
)

// DeterministicClock is a resettable logical clock for scenario runs.
//
// Pass the same clock to engine.WithClock and gfx.WithSeqSource and every
// native call and settle cycle is stamped on one axis starting at 1. Reset
// lets a harness replay a scenario with identical seq values, which golden
// traces depend on.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last issued sequence number.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next call to Next returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

var (
	_ engine.SeqSource = (*DeterministicClock)(nil)
	_ gfx.SeqSource    = (*DeterministicClock)(nil)
)
