package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// Representation is one visual pipeline inside a View: a mapper feeding
// an actor, plus the colour and opacity objects wired onto it.
type Representation interface {
	engine.Component

	// Key returns the representation's key within its view.
	Key() string
	// Type returns the pipeline kind.
	Type() ir.RepresentationType
	// View returns the owning view.
	View() *View
	// RegisterDataAvailability feeds the visibility latch.
	RegisterDataAvailability(available bool)
	// Visible reports the effective visibility: data available and
	// declared visible.
	Visible() bool
	// Composed reports whether the actor is attached to the renderer.
	Composed() bool
	// Actor returns the actor handle once constructed.
	Actor() (gfx.Handle, bool)
	// AttachSource follows src for data and availability. nil detaches.
	AttachSource(src *DataSource)
	// Source returns the attached source, or nil.
	Source() *DataSource
	// Unmount signals the representation's removal.
	Unmount() error
}

type wire struct {
	from engine.NodeID
	slot string
	to   engine.NodeID
	done bool
}

// prop pushes one named engine property through a comparable effect.
type prop[T any] struct {
	node   engine.NodeID
	name   string
	effect *engine.Effect[T]
	encode func(T) ir.Value
}

func newProp[T comparable](node engine.NodeID, name string, encode func(T) ir.Value) *prop[T] {
	return &prop[T]{node: node, name: name, effect: engine.NewEffect(engine.Shallow[T]), encode: encode}
}

func newListProp(node engine.NodeID, name string) *prop[[]float64] {
	return &prop[[]float64]{
		node:   node,
		name:   name,
		effect: engine.NewEffect(engine.SliceEqual[float64]).WithClone(slices.Clone[[]float64]),
		encode: func(v []float64) ir.Value { return ir.Floats(v...) },
	}
}

func (p *prop[T]) push(v *View, value T) error {
	ran, err := p.effect.Run(value, func(value T) error {
		h, ok := v.arena.Peek(p.node)
		if !ok {
			return engine.NewNotReadyError(v.arena.Name(p.node), p.name)
		}
		return v.root.Engine().Set(h, p.name, p.encode(value))
	})
	v.dirty.Mark(ran)
	return err
}

func encodeFloat(f float64) ir.Value { return ir.Float(f) }
func encodeInt(i int) ir.Value { return ir.Int(i) }
func encodeBool(b bool) ir.Value { return ir.Bool(b) }
func encodeString(s string) ir.Value { return ir.String(s) }
func encodeColor(c Color) ir.Value { return ir.Vec3(c) }
func encodeRange(r [2]float64) ir.Value { return ir.Floats(r[0], r[1]) }

// base carries what every representation shares: node bookkeeping, wiring,
// data input, the visibility latch and teardown.
type base struct {
	view        *View
	self        Representation
	key         string
	typ         ir.RepresentationType
	scope       *engine.Scope
	mapper      engine.NodeID
	actor       engine.NodeID
	extras      []engine.NodeID
	wires       []wire
	composed    bool
	declared    bool
	latch       visibilityLatch
	visibility  *prop[bool]
	input       *engine.Effect[Dataset]
	dataset     Dataset
	hasData     bool
	source      *DataSource
	unsubscribe []func()
	removed     bool
}

func (b *base) init(v *View, self Representation, key string, typ ir.RepresentationType) error {
	scope, err := v.scope.Child(string(typ) + ":" + key)
	if err != nil {
		return err
	}
	b.view = v
	b.self = self
	b.key = key
	b.typ = typ
	b.scope = scope
	b.input = engine.NewEffect(engine.Shallow[Dataset])
	scope.OnTeardown(b.teardown)
	return nil
}

func (b *base) addNode(kind gfx.Kind, role string) engine.NodeID {
	g := b.view.root.Engine()
	return b.view.arena.Add(kind, b.view.key+"/"+b.key+"/"+role, b.view.renderer, func() (gfx.Handle, error) {
		return g.Create(kind)
	})
}

// setPipeline records the nodes and wiring and schedules the first sync.
// Teardown releases actor, mapper, then extras in order.
func (b *base) setPipeline(mapper, actor engine.NodeID, extras []engine.NodeID, wires []wire) {
	b.mapper = mapper
	b.actor = actor
	b.extras = extras
	b.wires = wires
	b.visibility = newProp(actor, "visibility", encodeBool)
	b.view.reps[b.key] = b.self
	b.view.order = append(b.view.order, b.key)
	b.schedule()
}

func (b *base) schedule() {
	if !b.removed {
		b.view.root.Schedule(b.self)
	}
}

// Depth implements engine.Component.
func (b *base) Depth() int { return 2 }

// Key implements Representation.
func (b *base) Key() string { return b.key }

// Type implements Representation.
func (b *base) Type() ir.RepresentationType { return b.typ }

// View implements Representation.
func (b *base) View() *View { return b.view }

// Composed implements Representation.
func (b *base) Composed() bool { return b.composed }

// Source implements Representation.
func (b *base) Source() *DataSource { return b.source }

// Actor implements Representation.
func (b *base) Actor() (gfx.Handle, bool) {
	return b.view.arena.Peek(b.actor)
}

// Visible implements Representation.
func (b *base) Visible() bool {
	return b.latch.Effective(b.declared)
}

// RegisterDataAvailability implements Representation.
func (b *base) RegisterDataAvailability(available bool) {
	b.latch.Register(available)
	b.schedule()
}

// AttachSource implements Representation.
func (b *base) AttachSource(src *DataSource) {
	if src == b.source {
		return
	}
	b.detachSource()
	b.source = src
	if src == nil {
		b.latch.Register(false)
		b.schedule()
		return
	}
	b.unsubscribe = append(b.unsubscribe,
		src.OnDataAvailable(b.RegisterDataAvailability),
		src.OnDataChanged(func(ds Dataset) {
			b.dataset = ds
			b.hasData = true
			b.schedule()
		}),
	)
	if ds, ok := src.Current(); ok {
		b.dataset = ds
		b.hasData = true
	}
	b.latch.Register(src.Available())
	b.schedule()
}

func (b *base) detachSource() {
	for _, u := range b.unsubscribe {
		u()
	}
	b.unsubscribe = nil
	b.source = nil
}

// Unmount implements Representation.
func (b *base) Unmount() error {
	return b.scope.Remove()
}

// sync builds the pipeline, wires it, pushes the data input, the
// type-specific props and the visibility, then composes the actor into
// the renderer once the view is attached.
func (b *base) sync(push func() error) error {
	if b.removed {
		return nil
	}
	v := b.view
	a := v.arena
	g := v.root.Engine()

	for _, id := range append([]engine.NodeID{b.mapper, b.actor}, b.extras...) {
		if _, err := a.Handle(id); err != nil {
			return err
		}
	}
	for i := range b.wires {
		w := &b.wires[i]
		if w.done {
			continue
		}
		from, _ := a.Peek(w.from)
		to, _ := a.Peek(w.to)
		if err := g.Connect(from, w.slot, to); err != nil {
			return fmt.Errorf("%s: wire %s: %w", a.Name(w.from), w.slot, err)
		}
		a.Reference(w.from, w.to)
		w.done = true
	}

	if b.hasData {
		ran, err := b.input.Run(b.dataset, b.pushDataset)
		v.dirty.Mark(ran)
		if err != nil {
			return err
		}
	}
	if err := push(); err != nil {
		return err
	}
	if err := b.visibility.push(v, b.Visible()); err != nil {
		return err
	}

	if b.composed || !v.attached {
		return nil
	}
	rh, _ := a.Peek(v.renderer)
	ah, _ := a.Peek(b.actor)
	if err := g.Connect(rh, gfx.SlotProps, ah); err != nil {
		return fmt.Errorf("%s: compose: %w", a.Name(b.actor), err)
	}
	a.Reference(v.renderer, b.actor)
	b.composed = true
	v.dirty.Mark(true)
	v.logger.Debug("representation composed", "representation", b.key, "type", string(b.typ))
	return nil
}

func (b *base) pushDataset(ds Dataset) error {
	a := b.view.arena
	g := b.view.root.Engine()
	mh, _ := a.Peek(b.mapper)
	ah, _ := a.Peek(b.actor)
	if err := g.Set(mh, "input", ir.String(ds.ID)); err != nil {
		return err
	}
	return g.Set(ah, "bounds", ds.Bounds.Value())
}

// teardown runs once the representation's scope is destroyed: stop
// following the source, detach the actor from the renderer and queue the
// native deletions, referrers first.
func (b *base) teardown() error {
	v := b.view
	a := v.arena
	b.removed = true
	v.root.Unschedule(b.self)
	b.detachSource()

	var errs []error
	if b.composed {
		rh, okR := a.Peek(v.renderer)
		ah, okA := a.Peek(b.actor)
		if okR && okA {
			if err := v.root.Engine().Disconnect(rh, gfx.SlotProps, ah); err != nil {
				errs = append(errs, err)
			}
		}
		a.Unreference(v.renderer, b.actor)
		b.composed = false
		v.dirty.Mark(true)
	}
	for _, id := range append([]engine.NodeID{b.actor, b.mapper}, b.extras...) {
		a.Release(id)
	}
	v.removeRepresentation(b.key, b.self)
	return errors.Join(errs...)
}
