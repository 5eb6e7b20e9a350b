package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/gfx"
)

func TestClock_StartsAtZero(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current(), "Current must not advance the clock")
}

func TestClock_ResumesFromJournal(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const goroutines, perGoroutine = 50, 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for s := range seqs {
		assert.False(t, seen[s], "seq %d generated twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestClock_StampsNativeCalls(t *testing.T) {
	c := NewClockAt(100)
	rec := gfx.NewRecorder(gfx.WithSeqSource(c))

	_, err := rec.Create(gfx.KindRenderer)
	require.NoError(t, err)
	_, err = rec.Create(gfx.KindRenderWindow)
	require.NoError(t, err)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, int64(101), calls[0].Seq)
	assert.Equal(t, int64(102), calls[1].Seq)
	assert.Equal(t, int64(102), c.Current())
}
