package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// ============================================================================
// Pipelines
// ============================================================================

func TestRepresentation_PipelineWiring(t *testing.T) {
	tests := []struct {
		name  string
		add   func(v *View) (Representation, error)
		actor gfx.Kind
		slots map[string]gfx.Kind
	}{
		{
			name:  "slice",
			add:   func(v *View) (Representation, error) { return v.AddSlice("r", DefaultSliceProps()) },
			actor: gfx.KindImageSlice,
			slots: map[string]gfx.Kind{
				gfx.SlotMapper:        gfx.KindImageMapper,
				gfx.SlotColorTransfer: gfx.KindLookupTable,
			},
		},
		{
			name:  "volume",
			add:   func(v *View) (Representation, error) { return v.AddVolume("r", DefaultVolumeProps()) },
			actor: gfx.KindVolume,
			slots: map[string]gfx.Kind{
				gfx.SlotMapper:        gfx.KindVolumeMapper,
				gfx.SlotColorTransfer: gfx.KindLookupTable,
				gfx.SlotScalarOpacity: gfx.KindPiecewiseFunction,
			},
		},
		{
			name:  "geometry",
			add:   func(v *View) (Representation, error) { return v.AddGeometry("r", DefaultGeometryProps()) },
			actor: gfx.KindActor,
			slots: map[string]gfx.Kind{
				gfx.SlotMapper: gfx.KindGeometryMapper,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, rec := newTestRoot(t)
			v := newAttachedView(t, root)
			r, err := tt.add(v)
			require.NoError(t, err)
			settle(t, root)

			ah := actorOf(t, r)
			kind, _ := rec.KindOf(ah)
			assert.Equal(t, tt.actor, kind)
			for slot, want := range tt.slots {
				children := rec.Connected(ah, slot)
				require.Len(t, children, 1, slot)
				got, _ := rec.KindOf(children[0])
				assert.Equal(t, want, got, slot)
			}
			assert.True(t, r.Composed())
			assert.Equal(t, []gfx.Handle{ah}, rec.Connected(v.Handles()[gfx.KindRenderer], gfx.SlotProps))
		})
	}
}

func TestGeometry_LookupTableOnMapper(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	r, err := v.AddGeometry("mesh", DefaultGeometryProps())
	require.NoError(t, err)
	settle(t, root)

	mapper := rec.Connected(actorOf(t, r), gfx.SlotMapper)[0]
	luts := rec.Connected(mapper, gfx.SlotLookupTable)
	require.Len(t, luts, 1)
	assert.Equal(t, ir.String("Grayscale"), property(t, rec, luts[0], "preset"))
	assert.Equal(t, ir.Int(2), property(t, rec, actorOf(t, r), "property.representation"))
}

func TestRepresentation_ComposedOnlyAfterAttach(t *testing.T) {
	root, rec := newTestRoot(t)
	v, err := NewView(root, "main", DefaultViewProps(""))
	require.NoError(t, err)
	r, err := v.AddSlice("s", DefaultSliceProps())
	require.NoError(t, err)

	settle(t, root)
	_, built := r.Actor()
	assert.True(t, built, "the pipeline builds without a window")
	assert.False(t, r.Composed())
	assert.Empty(t, rec.Connected(v.Handles()[gfx.KindRenderer], gfx.SlotProps))

	require.NoError(t, v.Update(DefaultViewProps("viewport")))
	settle(t, root)
	assert.True(t, r.Composed())
}

// ============================================================================
// Visibility latch
// ============================================================================

func TestRepresentation_HiddenUntilDataAvailable(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	r, err := v.AddSlice("s", DefaultSliceProps())
	require.NoError(t, err)
	settle(t, root)

	ah := actorOf(t, r)
	assert.Equal(t, ir.Bool(false), property(t, rec, ah, "visibility"))
	assert.False(t, r.Visible())

	r.RegisterDataAvailability(true)
	report := settle(t, root)
	assert.Equal(t, ir.Bool(true), property(t, rec, ah, "visibility"))
	assert.Equal(t, 1, report.Renders)

	// The latest report wins.
	r.RegisterDataAvailability(false)
	settle(t, root)
	assert.Equal(t, ir.Bool(false), property(t, rec, ah, "visibility"))
}

func TestRepresentation_DeclaredHiddenStaysHidden(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	props := DefaultGeometryProps()
	props.Visible = false
	r, err := v.AddGeometry("g", props)
	require.NoError(t, err)

	r.RegisterDataAvailability(true)
	settle(t, root)
	assert.Equal(t, ir.Bool(false), property(t, rec, actorOf(t, r), "visibility"))

	props.Visible = true
	require.NoError(t, r.Update(props))
	settle(t, root)
	assert.Equal(t, ir.Bool(true), property(t, rec, actorOf(t, r), "visibility"))
}

func TestRepresentation_RepeatedAvailabilityDoesNotRender(t *testing.T) {
	root, _ := newTestRoot(t)
	v := newAttachedView(t, root)
	r, err := v.AddSlice("s", DefaultSliceProps())
	require.NoError(t, err)
	r.RegisterDataAvailability(true)
	settle(t, root)

	r.RegisterDataAvailability(true)
	r.RegisterDataAvailability(true)
	report := settle(t, root)
	assert.Equal(t, 0, report.Renders)
}

// ============================================================================
// Data sources
// ============================================================================

func TestRepresentation_FollowsDataSource(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	r, err := v.AddVolume("vol", DefaultVolumeProps())
	require.NoError(t, err)
	src := NewDataSource("ct")
	r.AttachSource(src)
	assert.Same(t, src, r.Source())
	settle(t, root)

	ah := actorOf(t, r)
	mapper := rec.Connected(ah, gfx.SlotMapper)[0]
	_, hasInput := rec.Property(mapper, "input")
	assert.False(t, hasInput)

	src.Publish(Dataset{ID: "ct-001", Bounds: gfx.Bounds{0, 10, 0, 20, 0, 30}})
	report := settle(t, root)
	assert.Equal(t, 1, report.Renders)
	assert.Equal(t, ir.String("ct-001"), property(t, rec, mapper, "input"))
	assert.Equal(t, ir.Floats(0, 10, 0, 20, 0, 30), property(t, rec, ah, "bounds"))
	assert.Equal(t, ir.Bool(true), property(t, rec, ah, "visibility"))

	// The camera reset before the render fitted the visible volume.
	fp, err := rec.FocalPoint(v.Handles()[gfx.KindRenderer])
	require.NoError(t, err)
	assert.Equal(t, [3]float64{5, 10, 15}, fp)

	src.Withdraw()
	settle(t, root)
	assert.Equal(t, ir.Bool(false), property(t, rec, ah, "visibility"))

	require.NoError(t, r.Unmount())
	assert.Equal(t, 0, src.Subscribers())
}

func TestRepresentation_AttachAvailableSource(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	src := NewDataSource("mesh")
	src.Publish(Dataset{ID: "m1"})

	r, err := v.AddGeometry("g", DefaultGeometryProps())
	require.NoError(t, err)
	r.AttachSource(src)
	settle(t, root)
	assert.Equal(t, ir.Bool(true), property(t, rec, actorOf(t, r), "visibility"))

	r.AttachSource(nil)
	settle(t, root)
	assert.Equal(t, ir.Bool(false), property(t, rec, actorOf(t, r), "visibility"))
	assert.Equal(t, 0, src.Subscribers())
}

// ============================================================================
// Props
// ============================================================================

func TestRepresentation_PropsPushedOnce(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	props := DefaultVolumeProps()
	props.OpacityPoints = []float64{0, 0, 0.5, 0.2, 1, 1}
	r, err := v.AddVolume("vol", props)
	require.NoError(t, err)
	settle(t, root)

	// Equal content in a fresh slice is not a change.
	same := props
	same.OpacityPoints = []float64{0, 0, 0.5, 0.2, 1, 1}
	require.NoError(t, r.Update(same))
	mark := len(rec.Calls())
	report := settle(t, root)
	assert.Empty(t, opsSince(rec, mark, gfx.OpSet))
	assert.Equal(t, 0, report.Renders)

	changed := same
	changed.OpacityPoints = []float64{0, 0, 1, 0.5}
	require.NoError(t, r.Update(changed))
	mark = len(rec.Calls())
	report = settle(t, root)
	sets := opsSince(rec, mark, gfx.OpSet)
	require.NotEmpty(t, sets)
	assert.Equal(t, "points", sets[0].Name)
	assert.Equal(t, ir.Floats(0, 0, 1, 0.5), sets[0].Value)
	assert.Equal(t, 1, report.Renders)
}

func TestRepresentation_InPlaceEditOfProps(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	r, err := v.AddVolume("vol", DefaultVolumeProps())
	require.NoError(t, err)
	settle(t, root)
	pwfs := rec.LiveOf(gfx.KindPiecewiseFunction)
	require.Len(t, pwfs, 1)

	p := r.Props()
	p.OpacityPoints[3] = 0.25
	assert.Equal(t, []float64{0, 0, 1, 1}, r.Props().OpacityPoints, "Props returns a copy")

	require.NoError(t, r.Update(p))
	report := settle(t, root)
	assert.Equal(t, ir.Floats(0, 0, 1, 0.25), property(t, rec, pwfs[0], "points"))
	assert.Equal(t, 1, report.Renders)

	// Editing the slice passed to Update does not leak into the view.
	p.OpacityPoints[3] = 0.5
	assert.Equal(t, []float64{0, 0, 1, 0.25}, r.Props().OpacityPoints)
	require.NoError(t, r.Update(p))
	settle(t, root)
	assert.Equal(t, ir.Floats(0, 0, 1, 0.5), property(t, rec, pwfs[0], "points"))
}

func TestRepresentation_InvalidProps(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)

	bad := DefaultSliceProps()
	bad.Axis = "X"
	_, err := v.AddSlice("s", bad)
	assert.ErrorIs(t, err, ErrInvalidProps)

	r, err := v.AddSlice("s", DefaultSliceProps())
	require.NoError(t, err)
	assert.ErrorIs(t, r.Update(bad), ErrInvalidProps)
	assert.Equal(t, "K", r.Props().Axis)

	_, err = v.AddSlice("s", DefaultSliceProps())
	assert.Error(t, err, "duplicate key")

	// Values outside the engine's domain are not checked here; they reach
	// Set and the engine refuses them.
	loose := DefaultSliceProps()
	loose.Index = -5
	loose.ColorMap = "Plasma"
	l, err := v.AddSlice("loose", loose)
	require.NoError(t, err)
	mark := len(rec.Calls())
	_, err = root.Settle()
	require.Error(t, err)
	assert.ErrorIs(t, err, gfx.ErrInvalidValue)

	refused := map[string]ir.Value{}
	for _, c := range opsSince(rec, mark, gfx.OpSet) {
		if c.Err != "" {
			refused[c.Name] = c.Value
		}
	}
	assert.Equal(t, map[string]ir.Value{"slice": ir.Int(-5), "preset": ir.String("Plasma")}, refused)

	require.NoError(t, l.Update(DefaultSliceProps()))
	mark = len(rec.Calls())
	settle(t, root)
	accepted := map[string]ir.Value{}
	for _, c := range opsSince(rec, mark, gfx.OpSet) {
		assert.Empty(t, c.Err)
		accepted[c.Name] = c.Value
	}
	assert.Equal(t, ir.Int(0), accepted["slice"])
	assert.Equal(t, ir.String("Grayscale"), accepted["preset"])
	assert.True(t, l.Composed())
}

// ============================================================================
// Construction failures
// ============================================================================

func TestRepresentation_ConstructionRetriedNextCycle(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)

	rec.FailNext(gfx.KindActor, 1)
	r, err := v.AddGeometry("g", DefaultGeometryProps())
	require.NoError(t, err)

	report, err := root.Settle()
	require.NoError(t, err, "first failure is absorbed")
	assert.False(t, r.Composed())
	assert.Equal(t, 0, report.Renders)

	settle(t, root)
	assert.True(t, r.Composed())
}

func TestRepresentation_RepeatedConstructionFailureSurfaces(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)

	rec.FailNext(gfx.KindActor, 2)
	r, err := v.AddGeometry("g", DefaultGeometryProps())
	require.NoError(t, err)

	_, err = root.Settle()
	require.NoError(t, err)
	_, err = root.Settle()
	require.Error(t, err)
	assert.True(t, engine.IsConstructionError(err))

	settle(t, root)
	assert.True(t, r.Composed())
}

// ============================================================================
// Teardown
// ============================================================================

func TestRepresentation_TeardownReleasesReferrersFirst(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	r, err := v.AddVolume("vol", DefaultVolumeProps())
	require.NoError(t, err)
	r.RegisterDataAvailability(true)
	settle(t, root)
	rh := v.Handles()[gfx.KindRenderer]

	require.NoError(t, r.Unmount())
	assert.Empty(t, rec.Connected(rh, gfx.SlotProps), "actor detached at once")
	_, ok := v.Representation("vol")
	assert.False(t, ok)

	report := settle(t, root)
	assert.Equal(t, 4, report.Deletions)
	assert.Equal(t, 1, report.Renders, "the view redraws without the volume")
	assert.Equal(t, []gfx.Kind{
		gfx.KindVolume,
		gfx.KindVolumeMapper,
		gfx.KindLookupTable,
		gfx.KindPiecewiseFunction,
	}, rec.Deleted())
}

func TestRepresentation_UnmountBeforeBuildDeletesNothing(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	r, err := v.AddSlice("s", DefaultSliceProps())
	require.NoError(t, err)

	require.NoError(t, r.Unmount())
	report := settle(t, root)
	assert.Equal(t, 0, report.Deletions)
	assert.Empty(t, rec.LiveOf(gfx.KindImageSlice))
}
