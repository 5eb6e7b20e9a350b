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
// Wiring order
// ============================================================================

func TestView_WiresInDependencyOrder(t *testing.T) {
	root, rec := newTestRoot(t)
	v, err := NewView(root, "main", DefaultViewProps("viewport"))
	require.NoError(t, err)
	assert.Empty(t, rec.Calls(), "nothing native before settle")

	report := settle(t, root)
	assert.Equal(t, 1, report.Renders)

	var got []string
	for _, c := range rec.Calls()[:10] {
		got = append(got, string(c.Op)+" "+string(c.Kind)+" "+c.Name)
	}
	assert.Equal(t, []string{
		"create renderer ",
		"create render_window ",
		"create_view view viewport",
		"connect render_window views",
		"connect render_window renderers",
		"create interactor ",
		"connect interactor view",
		"set interactor initialized",
		"create_style interactor_style manipulator",
		"connect interactor style",
	}, got)

	h := v.Handles()
	assert.Equal(t, []gfx.Handle{h[gfx.KindView]}, rec.Connected(h[gfx.KindRenderWindow], gfx.SlotView))
	assert.Equal(t, []gfx.Handle{h[gfx.KindRenderer]}, rec.Connected(h[gfx.KindRenderWindow], gfx.SlotRenderer))
	assert.Equal(t, []gfx.Handle{h[gfx.KindView]}, rec.Connected(h[gfx.KindInteractor], gfx.SlotInteractorView))
	assert.Equal(t, []gfx.Handle{h[gfx.KindInteractorStyle]}, rec.Connected(h[gfx.KindInteractor], gfx.SlotInteractorStyle))
	assert.True(t, v.Capabilities().CenterOfRotation)
}

func TestView_EmptyContainerWaits(t *testing.T) {
	root, rec := newTestRoot(t)
	v, err := NewView(root, "main", DefaultViewProps(""))
	require.NoError(t, err)

	report := settle(t, root)
	assert.False(t, v.Attached())
	assert.Equal(t, 0, report.Renders)
	assert.Empty(t, rec.CallsOf(gfx.OpCreateView))
	assert.Len(t, rec.CallsOf(gfx.OpCreate), 2, "renderer and window only")

	require.NoError(t, v.Update(DefaultViewProps("late-container")))
	report = settle(t, root)
	assert.True(t, v.Attached())
	assert.Equal(t, 1, report.Renders)
}

func TestView_ContainerLockedOnceBuilt(t *testing.T) {
	root, _ := newTestRoot(t)
	v := newAttachedView(t, root)

	err := v.Update(DefaultViewProps("elsewhere"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProps)
	assert.Equal(t, "viewport", v.Props().Container)
}

func TestView_InvalidManipulator(t *testing.T) {
	root, _ := newTestRoot(t)
	props := DefaultViewProps("viewport")

	props.Manipulators = []Manipulator{{Button: 4, Action: ir.ActionRotate}}
	_, err := NewView(root, "a", props)
	assert.ErrorIs(t, err, ErrInvalidProps)

	props.Manipulators = []Manipulator{{Button: 1, Action: "Spin"}}
	_, err = NewView(root, "b", props)
	assert.ErrorIs(t, err, ErrInvalidProps)
}

// ============================================================================
// Props and rendering
// ============================================================================

func TestView_EffectsRunOnlyOnChange(t *testing.T) {
	root, rec := newTestRoot(t)
	props := DefaultViewProps("viewport")
	props.Camera = &CameraProps{Position: [3]float64{0, 0, 10}, ViewUp: [3]float64{0, 1, 0}}
	props.Manipulators = []Manipulator{{Button: 1, Action: ir.ActionRotate}, {Button: 3, Action: ir.ActionZoom}}
	v, err := NewView(root, "main", props)
	require.NoError(t, err)
	settle(t, root)

	rh := v.Handles()[gfx.KindRenderer]
	assert.Equal(t, ir.Floats(0, 0, 10), property(t, rec, rh, "camera.position"))
	manips, ok := property(t, rec, v.Handles()[gfx.KindInteractorStyle], "manipulators").(ir.List)
	require.True(t, ok)
	assert.Len(t, manips, 2)

	// Same content in fresh values: nothing is pushed, nothing renders.
	same := props
	same.Camera = &CameraProps{Position: [3]float64{0, 0, 10}, ViewUp: [3]float64{0, 1, 0}}
	same.Manipulators = []Manipulator{{Button: 1, Action: ir.ActionRotate}, {Button: 3, Action: ir.ActionZoom}}
	require.NoError(t, v.Update(same))
	mark := len(rec.Calls())
	report := settle(t, root)
	assert.Empty(t, opsSince(rec, mark, gfx.OpSet))
	assert.Equal(t, 0, report.Renders)

	changed := same
	changed.Background = Color{0.1, 0.2, 0.3}
	require.NoError(t, v.Update(changed))
	mark = len(rec.Calls())
	report = settle(t, root)
	sets := opsSince(rec, mark, gfx.OpSet)
	require.NotEmpty(t, sets)
	assert.Equal(t, "background", sets[0].Name)
	assert.Equal(t, 1, report.Renders)
}

func TestView_InPlaceEditOfManipulators(t *testing.T) {
	root, rec := newTestRoot(t)
	props := DefaultViewProps("viewport")
	props.Manipulators = []Manipulator{{Button: 1, Action: ir.ActionRotate}}
	v, err := NewView(root, "main", props)
	require.NoError(t, err)
	settle(t, root)
	sh := v.Handles()[gfx.KindInteractorStyle]

	p := v.Props()
	p.Manipulators[0].Action = ir.ActionZoom
	assert.Equal(t, ir.ActionRotate, v.Props().Manipulators[0].Action, "Props returns a copy")

	require.NoError(t, v.Update(p))
	mark := len(rec.Calls())
	report := settle(t, root)
	sets := opsSince(rec, mark, gfx.OpSet)
	require.Len(t, sets, 1)
	assert.Equal(t, "manipulators", sets[0].Name)
	assert.Equal(t, ir.List{Manipulator{Button: 1, Action: ir.ActionZoom}.Value()}, property(t, rec, sh, "manipulators"))
	assert.Equal(t, 1, report.Renders)
}

func TestView_RenderStepsFollowToggles(t *testing.T) {
	tests := []struct {
		name       string
		caps       gfx.Capabilities
		autoReset  bool
		autoCenter bool
		wantReset  int
		wantFocal  int
	}{
		{"defaults", gfx.Capabilities{CenterOfRotation: true}, true, true, 1, 1},
		{"style without rotation center", gfx.Capabilities{}, true, true, 1, 0},
		{"no auto center", gfx.Capabilities{CenterOfRotation: true}, true, false, 1, 0},
		{"no auto reset", gfx.Capabilities{CenterOfRotation: true}, false, true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, rec := newTestRoot(t, gfx.WithCapabilities(tt.caps))
			props := DefaultViewProps("viewport")
			props.AutoResetCamera = tt.autoReset
			props.AutoCenterOfRotation = tt.autoCenter
			v, err := NewView(root, "main", props)
			require.NoError(t, err)
			settle(t, root)

			assert.Len(t, rec.CallsOf(gfx.OpResetCamera), tt.wantReset)
			assert.Len(t, rec.CallsOf(gfx.OpFocalPoint), tt.wantFocal)
			assert.Equal(t, 1, rec.Renders(v.Handles()[gfx.KindRenderWindow]))
		})
	}
}

func TestView_RequestRenderCoalesces(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	window := v.Handles()[gfx.KindRenderWindow]

	for i := 0; i < 100; i++ {
		v.RequestRender()
	}
	report := settle(t, root)
	assert.Equal(t, 1, report.Renders)
	assert.Equal(t, 2, rec.Renders(window))
}

func TestView_RenderHookRequestDefersToNextCycle(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)
	window := v.Handles()[gfx.KindRenderWindow]

	hooked := false
	rec.SetRenderHook(func(gfx.Handle) {
		if !hooked {
			hooked = true
			v.RequestRender()
		}
	})
	v.RequestRender()
	settle(t, root)
	assert.Equal(t, 2, rec.Renders(window))
	assert.True(t, v.Scheduler().Pending())

	settle(t, root)
	assert.Equal(t, 3, rec.Renders(window))
	assert.False(t, v.Scheduler().Pending())
}

func TestView_ResetCamera(t *testing.T) {
	root, rec := newTestRoot(t)
	v, err := NewView(root, "main", DefaultViewProps("viewport"))
	require.NoError(t, err)

	mark := len(rec.Calls())
	require.NoError(t, v.ResetCamera(nil), "not attached yet: nothing to do")
	assert.Empty(t, rec.Calls()[mark:])
	assert.False(t, v.Scheduler().Pending())

	settle(t, root)
	b := gfx.Bounds{0, 2, 0, 4, 0, 6}
	require.NoError(t, v.ResetCamera(&b))
	rh := v.Handles()[gfx.KindRenderer]
	fp, err := rec.FocalPoint(rh)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 2, 3}, fp)
	assert.Equal(t, ir.Floats(1, 2, 3), property(t, rec, v.Handles()[gfx.KindInteractorStyle], "centerOfRotation"))
	assert.True(t, v.Scheduler().Pending())
}

// ============================================================================
// Teardown
// ============================================================================

func TestView_TeardownOrder(t *testing.T) {
	root, rec := newTestRoot(t)
	v := newAttachedView(t, root)

	require.NoError(t, v.Unmount())
	assert.True(t, v.Removed(), "a view without representations tears down at once")
	assert.Greater(t, rec.LiveCount(), 0, "deletions wait for the flush")

	report := settle(t, root)
	assert.Equal(t, 5, report.Deletions)
	assert.Equal(t, []gfx.Kind{
		gfx.KindInteractor,
		gfx.KindInteractorStyle,
		gfx.KindRenderWindow,
		gfx.KindView,
		gfx.KindRenderer,
	}, rec.Deleted())
	assert.Equal(t, 0, rec.LiveCount())
	assert.Equal(t, 0, report.Renders)
}

func TestView_AddAfterRemovalFails(t *testing.T) {
	root, _ := newTestRoot(t)
	v := newAttachedView(t, root)
	_, err := v.AddSlice("s", DefaultSliceProps())
	require.NoError(t, err)

	require.NoError(t, v.Unmount())
	_, err = v.AddGeometry("g", DefaultGeometryProps())
	require.Error(t, err)
	var re *engine.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, engine.ErrCodeScopeInactive, re.Code)
}
