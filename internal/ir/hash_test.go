package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleScene() SceneSpec {
	return SceneSpec{
		Name: "ct",
		Sources: []SourceSpec{
			{Name: "head", Dataset: "head.vti", Bounds: [6]float64{0, 10, 0, 10, 0, 20}, Available: true},
		},
		Views: []ViewSpec{
			{
				Key:                  "main",
				Container:            "#view",
				Background:           [3]float64{0.1, 0.1, 0.1},
				Interactive:          true,
				AutoResetCamera:      true,
				AutoCenterOfRotation: true,
				Manipulators: []ManipulatorSpec{
					{Button: 1, Action: ActionRotate},
					{Button: 3, Shift: true, Action: ActionPan},
				},
				Representations: []RepresentationSpec{
					{Key: "axial", Type: RepresentationSlice, Source: "head", Visible: true, Slice: &SliceSpec{Axis: "K", Index: 5, ColorWindow: 400, ColorLevel: 40}},
				},
			},
		},
	}
}

func TestSpecHashDeterminism(t *testing.T) {
	h1, err := SpecHash(sampleScene())
	require.NoError(t, err)
	h2, err := SpecHash(sampleScene())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "SpecHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestSpecHashChangesWithInput(t *testing.T) {
	base := MustSpecHash(sampleScene())

	renamed := sampleScene()
	renamed.Name = "mri"

	moved := sampleScene()
	moved.Views[0].Representations[0].Slice.Index = 6

	hidden := sampleScene()
	hidden.Views[0].Representations[0].Visible = false

	assert.NotEqual(t, base, MustSpecHash(renamed))
	assert.NotEqual(t, base, MustSpecHash(moved))
	assert.NotEqual(t, base, MustSpecHash(hidden))
}

func TestSpecHashRejectsNonFinite(t *testing.T) {
	spec := sampleScene()
	spec.Views[0].Background[0] = math.Inf(1)

	_, err := SpecHash(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SpecHash")
	assert.Panics(t, func() { MustSpecHash(spec) })
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain(DomainScene, data), hashWithDomain(DomainTrace, data))
}

func TestTraceHash(t *testing.T) {
	trace := List{Map{"op": String("create"), "kind": String("renderer")}}
	h1, err := TraceHash(trace)
	require.NoError(t, err)
	h2, err := TraceHash(List{Map{"kind": String("renderer"), "op": String("create")}})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "key order must not matter")
}

func TestSceneValueShape(t *testing.T) {
	m := sampleScene().Value()
	views, ok := m["views"].(List)
	require.True(t, ok)
	require.Len(t, views, 1)

	view := views[0].(Map)
	assert.Equal(t, String("main"), view["key"])
	assert.NotContains(t, view, "camera")

	reps := view["representations"].(List)
	rep := reps[0].(Map)
	assert.Contains(t, rep, "slice")
	assert.NotContains(t, rep, "volume")
}
