package engine

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Cache
// ============================================================================

func TestCache_FactoryRunsOnce(t *testing.T) {
	calls := 0
	c := NewCache("renderer", func() (int, error) {
		calls++
		return 42, nil
	})

	_, ok := c.Peek()
	assert.False(t, ok, "Peek must not construct")

	for i := 0; i < 5; i++ {
		v, err := c.Get()
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)
}

func TestCache_RetriesAfterFailure(t *testing.T) {
	fail := true
	calls := 0
	c := NewCache("actor", func() (string, error) {
		calls++
		if fail {
			return "", errors.New("out of memory")
		}
		return "ok", nil
	})

	_, err := c.Get()
	require.Error(t, err)
	assert.True(t, IsConstructionError(err))
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "actor", re.Node)
	assert.Equal(t, "1", re.Details["attempts"])

	_, err = c.Get()
	require.Error(t, err)
	assert.Equal(t, 2, c.ConsecutiveFailures())

	fail = false
	v, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, c.Failures())
	assert.Equal(t, 0, c.ConsecutiveFailures())
}

func TestCache_Reset(t *testing.T) {
	n := 0
	c := NewCache("lut", func() (int, error) { n++; return n, nil })

	v, _ := c.Get()
	assert.Equal(t, 1, v)
	c.Reset()
	v, _ = c.Get()
	assert.Equal(t, 2, v)
}

// ============================================================================
// DirtyAccumulator
// ============================================================================

func TestDirtyAccumulator_Aggregation(t *testing.T) {
	tests := []struct {
		name  string
		marks []bool
		want  bool
	}{
		{"no marks", nil, false},
		{"all false", []bool{false, false, false}, false},
		{"single true", []bool{true}, true},
		{"true first", []bool{true, false, false}, true},
		{"true last", []bool{false, false, true}, true},
		{"true in middle", []bool{false, true, false}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d DirtyAccumulator
			for _, m := range tt.marks {
				d.Mark(m)
			}
			assert.Equal(t, tt.want, d.Pending())
			assert.Equal(t, len(tt.marks), d.Marks())
			assert.Equal(t, tt.want, d.Consume())
			assert.False(t, d.Consume(), "Consume clears the flag")
		})
	}
}

func TestDirtyAccumulator_ManyMarksKeepTrue(t *testing.T) {
	var d DirtyAccumulator
	d.Mark(true)
	for i := 0; i < 10000; i++ {
		d.Mark(false)
	}
	assert.True(t, d.Consume())
}

// ============================================================================
// Effect
// ============================================================================

func TestEffect_FirstRunAlwaysExecutes(t *testing.T) {
	e := NewEffect(Shallow[int])
	ran, err := e.Run(0, func(int) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestEffect_Idempotence(t *testing.T) {
	e := NewEffect(SliceEqual[float64])
	calls := 0
	action := func([]float64) error { calls++; return nil }

	// Fresh slices with equal content must not re-run the action.
	_, err := e.Run([]float64{0.1, 0.2, 0.3}, action)
	require.NoError(t, err)
	ran, err := e.Run([]float64{0.1, 0.2, 0.3}, action)
	require.NoError(t, err)

	assert.False(t, ran)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, e.Runs())
}

func TestEffect_InPlaceEditIsAChange(t *testing.T) {
	e := NewEffect(SliceEqual[float64]).WithClone(slices.Clone[[]float64])
	var pushed [][]float64
	action := func(v []float64) error { pushed = append(pushed, slices.Clone(v)); return nil }

	points := []float64{0, 0, 1, 1}
	_, err := e.Run(points, action)
	require.NoError(t, err)

	points[3] = 0.25
	ran, err := e.Run(points, action)
	require.NoError(t, err)
	assert.True(t, ran, "edit through the caller's slice must be seen")
	assert.Equal(t, [][]float64{{0, 0, 1, 1}, {0, 0, 1, 0.25}}, pushed)

	ran, err = e.Run(points, action)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestEffect_RunsOnChange(t *testing.T) {
	e := NewEffect(Shallow[string])
	var seen []string
	action := func(s string) error { seen = append(seen, s); return nil }

	for _, in := range []string{"a", "a", "b", "b", "a"} {
		_, err := e.Run(in, action)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "a"}, seen)
}

func TestEffect_FailedActionRetries(t *testing.T) {
	e := NewEffect(Shallow[int])
	fail := true
	action := func(int) error {
		if fail {
			return errors.New("engine rejected value")
		}
		return nil
	}

	ran, err := e.Run(7, action)
	require.Error(t, err)
	assert.False(t, ran)

	fail = false
	ran, err = e.Run(7, action)
	require.NoError(t, err)
	assert.True(t, ran, "same input must run again after a failure")
}

func TestEffect_Reset(t *testing.T) {
	e := NewEffect(Shallow[int])
	calls := 0
	action := func(int) error { calls++; return nil }

	_, _ = e.Run(1, action)
	e.Reset()
	_, _ = e.Run(1, action)
	assert.Equal(t, 2, calls)
}

func TestEffect_DeepComparator(t *testing.T) {
	type camera struct {
		Position [3]float64
		Up       []float64
	}
	e := NewEffect(Deep[camera])
	calls := 0
	action := func(camera) error { calls++; return nil }

	_, _ = e.Run(camera{Position: [3]float64{0, 0, 1}, Up: []float64{0, 1, 0}}, action)
	_, _ = e.Run(camera{Position: [3]float64{0, 0, 1}, Up: []float64{0, 1, 0}}, action)
	_, _ = e.Run(camera{Position: [3]float64{0, 0, 2}, Up: []float64{0, 1, 0}}, action)
	assert.Equal(t, 2, calls)
}
