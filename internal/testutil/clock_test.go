package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Zero(t, clock.Current())

	got := []int64{clock.Next(), clock.Next(), clock.Next()}
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.Equal(t, int64(3), clock.Current(), "Current does not advance")

	clock.Reset()
	assert.Zero(t, clock.Current())
	assert.Equal(t, int64(1), clock.Next(), "a reset clock restarts at 1")
}

func TestDeterministicClock_ConcurrentNextIsDense(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, perWorker = 50, 200

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]int, workers*perWorker)
	)
	for range workers {
		wg.Go(func() {
			local := make([]int64, 0, perWorker)
			for range perWorker {
				local = append(local, clock.Next())
			}
			mu.Lock()
			for _, seq := range local {
				seen[seq]++
			}
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker, "no seq is issued twice")
	for seq := int64(1); seq <= workers*perWorker; seq++ {
		assert.Equal(t, 1, seen[seq], "seq %d", seq)
	}
}

func TestDeterministicClock_SharedByRootAndRecorder(t *testing.T) {
	clock := NewDeterministicClock()
	rec := gfx.NewRecorder(gfx.WithSeqSource(clock))
	root := engine.New(rec, engine.WithClock(clock), engine.WithIDGenerator(NewFixedRootIDGenerator("")))

	_, err := rec.Create(gfx.KindRenderer)
	require.NoError(t, err)
	report, err := root.Settle()
	require.NoError(t, err)

	assert.Equal(t, int64(1), rec.Calls()[0].Seq)
	assert.Equal(t, int64(2), report.Seq, "cycles continue the call numbering")

	clock.Reset()
	report, err = root.Settle()
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Seq)
}
