package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// StyleName is the interactor style every view installs.
const StyleName = "manipulator"

// View binds a renderer, render window, platform view, interactor and
// interactor style, and hosts representations.
//
// Native objects are wired in strict dependency order across syncs:
//
//	renderer, render window
//	platform view (needs the window and a container)
//	window <- platform view, window <- renderer (the view is now attached)
//	interactor <- platform view
//	interactor style, interactor <- style
//
// Each step is skipped until its dependency exists. Representations are
// composed into the renderer only after the view is attached.
type View struct {
	root   *engine.Root
	arena  *engine.Arena
	logger *slog.Logger
	key    string
	props  ViewProps
	scope  *engine.Scope

	renderer   engine.NodeID
	window     engine.NodeID
	platform   engine.NodeID
	interactor engine.NodeID
	style      engine.NodeID
	caps       gfx.Capabilities

	windowHasView   bool
	attached        bool
	interactorBound bool
	styleBound      bool

	background   *engine.Effect[Color]
	interactive  *engine.Effect[bool]
	camera       *engine.Effect[CameraProps]
	manipulators *engine.Effect[[]Manipulator]

	dirty   engine.DirtyAccumulator
	sched   *engine.RenderScheduler
	untrack func()

	reps      map[string]Representation
	order     []string
	removed   bool
	onDestroy func(*View)
}

// NewView creates a view under the root scope and schedules its first
// sync. Nothing native is built until the root settles.
func NewView(root *engine.Root, key string, props ViewProps) (*View, error) {
	if err := props.Validate(); err != nil {
		return nil, fmt.Errorf("view %s: %w", key, err)
	}
	scope, err := root.Scope().Child("view:" + key)
	if err != nil {
		return nil, err
	}

	v := &View{
		root:         root,
		arena:        root.Arena(),
		logger:       root.Logger().With("view", key),
		key:          key,
		props:        props.clone(),
		scope:        scope,
		background:   engine.NewEffect(engine.Shallow[Color]),
		interactive:  engine.NewEffect(engine.Shallow[bool]),
		camera:       engine.NewEffect(engine.Deep[CameraProps]),
		manipulators: engine.NewEffect(engine.Deep[[]Manipulator]).WithClone(slices.Clone[[]Manipulator]),
		reps:         make(map[string]Representation),
	}

	g := root.Engine()
	create := func(kind gfx.Kind) func() (gfx.Handle, error) {
		return func() (gfx.Handle, error) { return g.Create(kind) }
	}
	v.renderer = v.arena.Add(gfx.KindRenderer, key+"/renderer", engine.NoNode, create(gfx.KindRenderer))
	v.window = v.arena.Add(gfx.KindRenderWindow, key+"/window", engine.NoNode, create(gfx.KindRenderWindow))
	v.platform = v.arena.Add(gfx.KindView, key+"/view", v.window, func() (gfx.Handle, error) {
		wh, ok := v.arena.Peek(v.window)
		if !ok {
			return gfx.NoHandle, engine.NewNotReadyError(key+"/view", "render window")
		}
		return g.CreateView(wh, v.props.Container)
	})
	v.interactor = v.arena.Add(gfx.KindInteractor, key+"/interactor", v.window, create(gfx.KindInteractor))
	v.style = v.arena.Add(gfx.KindInteractorStyle, key+"/style", v.interactor, func() (gfx.Handle, error) {
		h, caps, err := g.CreateInteractorStyle(StyleName)
		if err != nil {
			return gfx.NoHandle, err
		}
		v.caps = caps
		return h, nil
	})

	v.sched = engine.NewRenderScheduler(viewTarget{v},
		engine.WithAutoResetCamera(props.AutoResetCamera),
		engine.WithAutoCenterOfRotation(props.AutoCenterOfRotation),
	)
	v.untrack = root.Track(key, v.sched, &v.dirty)
	scope.OnTeardown(v.teardown)
	root.Schedule(v)
	return v, nil
}

// Key returns the view key.
func (v *View) Key() string { return v.key }

// Props returns a copy of the current props.
func (v *View) Props() ViewProps { return v.props.clone() }

// Attached reports whether the renderer is attached to the render window.
func (v *View) Attached() bool { return v.attached }

// Removed reports whether the view was torn down.
func (v *View) Removed() bool { return v.removed }

// Capabilities returns the interactor style's capabilities, zero until the
// style is built.
func (v *View) Capabilities() gfx.Capabilities { return v.caps }

// Scheduler returns the view's render scheduler.
func (v *View) Scheduler() *engine.RenderScheduler { return v.sched }

// Depth implements engine.Component.
func (v *View) Depth() int { return 1 }

// Handles returns the constructed handles of the view's native objects,
// keyed by kind.
func (v *View) Handles() map[gfx.Kind]gfx.Handle {
	out := make(map[gfx.Kind]gfx.Handle)
	for _, id := range []engine.NodeID{v.renderer, v.window, v.platform, v.interactor, v.style} {
		if h, ok := v.arena.Peek(id); ok {
			out[v.arena.Kind(id)] = h
		}
	}
	return out
}

// Sync implements engine.Component.
func (v *View) Sync() error {
	if v.removed {
		return nil
	}
	a := v.arena
	g := v.root.Engine()

	rh, err := a.Handle(v.renderer)
	if err != nil {
		return err
	}
	wh, err := a.Handle(v.window)
	if err != nil {
		return err
	}
	if v.props.Container == "" {
		return nil
	}
	ph, err := a.Handle(v.platform)
	if err != nil {
		return err
	}
	if !v.windowHasView {
		if err := g.Connect(wh, gfx.SlotView, ph); err != nil {
			return err
		}
		a.Reference(v.window, v.platform)
		v.windowHasView = true
	}
	if !v.attached {
		if err := g.Connect(wh, gfx.SlotRenderer, rh); err != nil {
			return err
		}
		a.Reference(v.window, v.renderer)
		v.attached = true
		v.dirty.Mark(true)
		for _, key := range v.order {
			v.root.Schedule(v.reps[key])
		}
		v.logger.Debug("view attached", "container", v.props.Container)
	}

	ih, err := a.Handle(v.interactor)
	if err != nil {
		return err
	}
	if !v.interactorBound {
		if err := g.Connect(ih, gfx.SlotInteractorView, ph); err != nil {
			return err
		}
		if err := g.Set(ih, "initialized", ir.Bool(true)); err != nil {
			return err
		}
		a.Reference(v.interactor, v.platform)
		v.interactorBound = true
	}
	sh, err := a.Handle(v.style)
	if err != nil {
		return err
	}
	if !v.styleBound {
		if err := g.Connect(ih, gfx.SlotInteractorStyle, sh); err != nil {
			return err
		}
		a.Reference(v.interactor, v.style)
		v.styleBound = true
		v.logger.Debug("interactor style bound", "center_of_rotation", v.caps.CenterOfRotation)
	}

	return v.pushProps(rh, ih, sh)
}

func (v *View) pushProps(rh, ih, sh gfx.Handle) error {
	g := v.root.Engine()

	ran, err := v.background.Run(v.props.Background, func(c Color) error {
		return g.Set(rh, "background", ir.Vec3(c))
	})
	v.dirty.Mark(ran)
	if err != nil {
		return err
	}

	ran, err = v.interactive.Run(v.props.Interactive, func(on bool) error {
		return g.Set(ih, "enabled", ir.Bool(on))
	})
	v.dirty.Mark(ran)
	if err != nil {
		return err
	}

	if v.props.Camera != nil {
		ran, err = v.camera.Run(*v.props.Camera, func(c CameraProps) error {
			return errors.Join(
				g.Set(rh, "camera.position", ir.Vec3(c.Position)),
				g.Set(rh, "camera.focalPoint", ir.Vec3(c.FocalPoint)),
				g.Set(rh, "camera.viewUp", ir.Vec3(c.ViewUp)),
				g.Set(rh, "camera.parallelProjection", ir.Bool(c.ParallelProjection)),
			)
		})
		v.dirty.Mark(ran)
		if err != nil {
			return err
		}
	}

	ran, err = v.manipulators.Run(v.props.Manipulators, func(ms []Manipulator) error {
		list := make(ir.List, len(ms))
		for i, m := range ms {
			list[i] = m.Value()
		}
		return g.Set(sh, "manipulators", list)
	})
	v.dirty.Mark(ran)
	return err
}

// Update replaces the props and schedules a sync. The container cannot
// change once the platform view exists; remount the view instead.
func (v *View) Update(p ViewProps) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("view %s: %w", v.key, err)
	}
	if _, built := v.arena.Peek(v.platform); built && p.Container != v.props.Container {
		return fmt.Errorf("view %s: container cannot change from %q to %q: %w",
			v.key, v.props.Container, p.Container, ErrInvalidProps)
	}
	v.props = p.clone()
	v.sched.SetAutoResetCamera(p.AutoResetCamera)
	v.sched.SetAutoCenterOfRotation(p.AutoCenterOfRotation)
	v.root.Schedule(v)
	return nil
}

// RequestRender asks for one render in the next settle. Any number of
// requests within a cycle render once.
func (v *View) RequestRender() {
	v.sched.Request()
}

// ResetCamera fits the camera now, to bounds or, when bounds is nil, to
// the visible representations, and requests a render. Before the view is
// attached, and after it is removed, it does nothing.
func (v *View) ResetCamera(bounds *gfx.Bounds) error {
	if !v.attached || v.removed {
		v.logger.Debug("reset camera skipped, view not attached")
		return nil
	}
	t := viewTarget{v}
	rh, _ := v.arena.Peek(v.renderer)
	if err := v.root.Engine().ResetCamera(rh, bounds); err != nil {
		return err
	}
	if v.props.AutoCenterOfRotation && t.CanRecenter() {
		if err := t.RecenterRotation(); err != nil {
			return err
		}
	}
	v.RequestRender()
	return nil
}

// Representation returns the representation with key.
func (v *View) Representation(key string) (Representation, bool) {
	r, ok := v.reps[key]
	return r, ok
}

// Representations returns the live representations in mount order.
func (v *View) Representations() []Representation {
	out := make([]Representation, 0, len(v.order))
	for _, key := range v.order {
		out = append(out, v.reps[key])
	}
	return out
}

func (v *View) checkNewRepresentation(key string) error {
	if v.removed {
		return fmt.Errorf("view %s was removed", v.key)
	}
	if _, dup := v.reps[key]; dup {
		return fmt.Errorf("view %s: representation %q already exists", v.key, key)
	}
	return nil
}

// AddSlice mounts an image slice representation.
func (v *View) AddSlice(key string, p SliceProps) (*SliceRepresentation, error) {
	if err := v.checkNewRepresentation(key); err != nil {
		return nil, err
	}
	return newSlice(v, key, p)
}

// AddVolume mounts a volume representation.
func (v *View) AddVolume(key string, p VolumeProps) (*VolumeRepresentation, error) {
	if err := v.checkNewRepresentation(key); err != nil {
		return nil, err
	}
	return newVolume(v, key, p)
}

// AddGeometry mounts a geometry representation.
func (v *View) AddGeometry(key string, p GeometryProps) (*GeometryRepresentation, error) {
	if err := v.checkNewRepresentation(key); err != nil {
		return nil, err
	}
	return newGeometry(v, key, p)
}

func (v *View) removeRepresentation(key string, r Representation) {
	if v.reps[key] != r {
		return
	}
	delete(v.reps, key)
	for i, k := range v.order {
		if k == key {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

// Unmount signals the view's removal. The view tears down once every
// representation has been removed, or when the root settles.
func (v *View) Unmount() error {
	return v.scope.Remove()
}

// Revive cancels a pending removal when the view is mounted again before
// the root settles. Returns false once the view was torn down.
func (v *View) Revive() bool {
	return v.scope.Revive()
}

// Removing reports whether a removal is pending.
func (v *View) Removing() bool {
	return v.scope.State() == engine.ScopeTearingDownChildren
}

// teardown runs after every representation is gone: detach and release
// interactor, style, render window, platform view and renderer, in that
// order.
func (v *View) teardown() error {
	a := v.arena
	g := v.root.Engine()
	v.removed = true
	v.root.Unschedule(v)
	v.untrack()

	var errs []error
	disconnect := func(from engine.NodeID, slot string, to engine.NodeID) {
		fh, okF := a.Peek(from)
		th, okT := a.Peek(to)
		if okF && okT {
			if err := g.Disconnect(fh, slot, th); err != nil {
				errs = append(errs, err)
			}
		}
		a.Unreference(from, to)
	}
	disconnect(v.interactor, gfx.SlotInteractorStyle, v.style)
	disconnect(v.interactor, gfx.SlotInteractorView, v.platform)
	disconnect(v.window, gfx.SlotRenderer, v.renderer)
	disconnect(v.window, gfx.SlotView, v.platform)

	for _, id := range []engine.NodeID{v.interactor, v.style, v.window, v.platform, v.renderer} {
		a.Release(id)
	}
	v.attached = false
	v.logger.Debug("view torn down")
	if v.onDestroy != nil {
		v.onDestroy(v)
	}
	return errors.Join(errs...)
}

// viewTarget adapts a View to engine.RenderTarget.
type viewTarget struct {
	v *View
}

func (t viewTarget) Ready() bool {
	return t.v.attached && !t.v.removed
}

func (t viewTarget) CanRecenter() bool {
	return t.v.caps.CenterOfRotation
}

func (t viewTarget) ResetCamera() error {
	rh, _ := t.v.arena.Peek(t.v.renderer)
	return t.v.root.Engine().ResetCamera(rh, nil)
}

func (t viewTarget) RecenterRotation() error {
	sh, ok := t.v.arena.Peek(t.v.style)
	if !ok {
		return nil
	}
	rh, _ := t.v.arena.Peek(t.v.renderer)
	fp, err := t.v.root.Engine().FocalPoint(rh)
	if err != nil {
		return err
	}
	return t.v.root.Engine().Set(sh, "centerOfRotation", ir.Vec3(fp))
}

func (t viewTarget) Render() error {
	wh, _ := t.v.arena.Peek(t.v.window)
	return t.v.root.Engine().Render(wh)
}
