package gfx

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/scenesync/internal/ir"
)

// Op names a recorded engine call.
type Op string

const (
	OpCreate      Op = "create"
	OpCreateView  Op = "create_view"
	OpCreateStyle Op = "create_style"
	OpSet         Op = "set"
	OpConnect     Op = "connect"
	OpDisconnect  Op = "disconnect"
	OpRender      Op = "render"
	OpResetCamera Op = "reset_camera"
	OpFocalPoint  Op = "focal_point"
	OpDelete      Op = "delete"
)

// Call is one recorded engine call. Failed calls are recorded too, with
// Err set.
type Call struct {
	Seq    int64    `json:"seq"`
	Op     Op       `json:"op"`
	Handle Handle   `json:"handle,omitempty"`
	Kind   Kind     `json:"kind,omitempty"`
	Target Handle   `json:"target,omitempty"`
	Name   string   `json:"name,omitempty"`
	Value  ir.Value `json:"value,omitempty"`
	Err    string   `json:"error,omitempty"`
}

// IR converts the call to an ir.Map for canonical traces. Zero fields are
// omitted.
func (c Call) IR() ir.Map {
	m := ir.Map{
		"seq": ir.Int(c.Seq),
		"op":  ir.String(c.Op),
	}
	if c.Handle.Valid() {
		m["handle"] = ir.Int(c.Handle)
	}
	if c.Kind != "" {
		m["kind"] = ir.String(c.Kind)
	}
	if c.Target.Valid() {
		m["target"] = ir.Int(c.Target)
	}
	if c.Name != "" {
		m["name"] = ir.String(c.Name)
	}
	if c.Value != nil {
		if _, isNull := c.Value.(ir.Null); !isNull {
			m["value"] = c.Value
		}
	}
	if c.Err != "" {
		m["error"] = ir.String(c.Err)
	}
	return m
}

// SeqSource stamps recorded calls. engine.Clock satisfies it.
type SeqSource interface {
	Next() int64
}

// Sink receives every recorded call, in order.
type Sink interface {
	Record(c Call) error
}

type object struct {
	kind      Kind
	props     map[string]ir.Value
	slots     map[string][]Handle
	deleted   bool
	container string
	caps      Capabilities
	focal     [3]float64
}

// Recorder is an in-memory Engine. It enforces the engine's lifetime
// rules strictly: calls on deleted handles fail, and an object cannot be
// deleted while a live object still references it.
//
// Recorder is safe for concurrent use, but hooks run without the lock held
// so they may call back into the Recorder.
type Recorder struct {
	mu       sync.Mutex
	next     Handle
	objects  map[Handle]*object
	calls    []Call
	seq      SeqSource
	localSeq int64
	sink     Sink
	sinkErr  error
	failures map[Kind]int
	caps     Capabilities
	onRender func(window Handle)
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSeqSource stamps calls from s instead of a private counter.
func WithSeqSource(s SeqSource) RecorderOption {
	return func(r *Recorder) { r.seq = s }
}

// WithSink forwards every call to s. The first sink error is kept and
// reported by Err; later calls are still recorded.
func WithSink(s Sink) RecorderOption {
	return func(r *Recorder) { r.sink = s }
}

// WithCapabilities sets the capabilities reported for interactor styles.
// The default reports CenterOfRotation.
func WithCapabilities(c Capabilities) RecorderOption {
	return func(r *Recorder) { r.caps = c }
}

// WithRenderHook runs fn after every successful Render.
func WithRenderHook(fn func(window Handle)) RecorderOption {
	return func(r *Recorder) { r.onRender = fn }
}

// NewRecorder creates an empty Recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		objects:  make(map[Handle]*object),
		failures: make(map[Kind]int),
		caps:     Capabilities{CenterOfRotation: true},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetRenderHook replaces the render hook.
func (r *Recorder) SetRenderHook(fn func(window Handle)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRender = fn
}

// FailNext makes the next n constructions of kind fail with ErrInjected.
func (r *Recorder) FailNext(kind Kind, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind] += n
}

// Err returns the first error reported by the sink.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sinkErr
}

func (r *Recorder) record(c Call, err error) {
	if r.seq != nil {
		c.Seq = r.seq.Next()
	} else {
		r.localSeq++
		c.Seq = r.localSeq
	}
	if err != nil {
		c.Err = err.Error()
	}
	r.calls = append(r.calls, c)
	if r.sink != nil {
		if serr := r.sink.Record(c); serr != nil && r.sinkErr == nil {
			r.sinkErr = serr
		}
	}
}

func (r *Recorder) injected(kind Kind) bool {
	if r.failures[kind] > 0 {
		r.failures[kind]--
		return true
	}
	return false
}

func (r *Recorder) alloc(kind Kind) Handle {
	r.next++
	h := r.next
	r.objects[h] = &object{
		kind:  kind,
		props: make(map[string]ir.Value),
		slots: make(map[string][]Handle),
	}
	return h
}

func (r *Recorder) live(h Handle) (*object, error) {
	o, ok := r.objects[h]
	if !ok || o.deleted {
		return nil, fmt.Errorf("%s: %w", h, ErrUnknownHandle)
	}
	return o, nil
}

// Create implements Engine.
func (r *Recorder) Create(kind Kind) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	switch {
	case !Creatable[kind]:
		err = fmt.Errorf("create %s: %w", kind, ErrUnsupportedKind)
	case r.injected(kind):
		err = fmt.Errorf("create %s: %w", kind, ErrInjected)
	}
	if err != nil {
		r.record(Call{Op: OpCreate, Kind: kind}, err)
		return NoHandle, err
	}
	h := r.alloc(kind)
	r.record(Call{Op: OpCreate, Handle: h, Kind: kind}, nil)
	return h, nil
}

// CreateView implements Engine.
func (r *Recorder) CreateView(window Handle, container string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := func() error {
		w, err := r.live(window)
		if err != nil {
			return fmt.Errorf("create view: %w", err)
		}
		if w.kind != KindRenderWindow {
			return fmt.Errorf("create view: %s is a %s, not a render window", window, w.kind)
		}
		if container == "" {
			return fmt.Errorf("create view: empty container")
		}
		if r.injected(KindView) {
			return fmt.Errorf("create view: %w", ErrInjected)
		}
		return nil
	}()
	if err != nil {
		r.record(Call{Op: OpCreateView, Kind: KindView, Target: window, Name: container}, err)
		return NoHandle, err
	}
	h := r.alloc(KindView)
	r.objects[h].container = container
	r.record(Call{Op: OpCreateView, Handle: h, Kind: KindView, Target: window, Name: container}, nil)
	return h, nil
}

// CreateInteractorStyle implements Engine.
func (r *Recorder) CreateInteractorStyle(name string) (Handle, Capabilities, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.injected(KindInteractorStyle) {
		err := fmt.Errorf("create style %q: %w", name, ErrInjected)
		r.record(Call{Op: OpCreateStyle, Kind: KindInteractorStyle, Name: name}, err)
		return NoHandle, Capabilities{}, err
	}
	h := r.alloc(KindInteractorStyle)
	r.objects[h].caps = r.caps
	r.record(Call{Op: OpCreateStyle, Handle: h, Kind: KindInteractorStyle, Name: name}, nil)
	return h, r.caps, nil
}

// Set implements Engine.
func (r *Recorder) Set(h Handle, name string, value ir.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, err := r.live(h)
	if err != nil {
		err = fmt.Errorf("set %s: %w", name, err)
		r.record(Call{Op: OpSet, Handle: h, Name: name, Value: value}, err)
		return err
	}
	if err := checkValue(name, value); err != nil {
		err = fmt.Errorf("set %s on %s: %w", name, o.kind, err)
		r.record(Call{Op: OpSet, Handle: h, Kind: o.kind, Name: name, Value: value}, err)
		return err
	}
	o.props[name] = value
	r.record(Call{Op: OpSet, Handle: h, Kind: o.kind, Name: name, Value: value}, nil)
	return nil
}

// Presets lists the colour map presets a lookup table accepts.
var Presets = []string{"Grayscale", "Cool to Warm", "Viridis", "Inferno", "Rainbow", "Jet"}

// checkValue rejects the property values a real pipeline refuses: unknown
// presets and negative slice indices.
func checkValue(name string, value ir.Value) error {
	switch name {
	case "preset":
		if s, ok := value.(ir.String); !ok || !slices.Contains(Presets, string(s)) {
			return fmt.Errorf("unknown preset %v: %w", value, ErrInvalidValue)
		}
	case "slice":
		if i, ok := value.(ir.Int); !ok || i < 0 {
			return fmt.Errorf("slice %v out of range: %w", value, ErrInvalidValue)
		}
	}
	return nil
}

// Connect implements Engine. Connecting the same child twice is a no-op.
func (r *Recorder) Connect(parent Handle, slot string, child Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.live(parent)
	if err == nil {
		_, err = r.live(child)
	}
	if err != nil {
		err = fmt.Errorf("connect %s: %w", slot, err)
		r.record(Call{Op: OpConnect, Handle: parent, Target: child, Name: slot}, err)
		return err
	}
	if !slices.Contains(p.slots[slot], child) {
		p.slots[slot] = append(p.slots[slot], child)
	}
	r.record(Call{Op: OpConnect, Handle: parent, Kind: p.kind, Target: child, Name: slot}, nil)
	return nil
}

// Disconnect implements Engine. Disconnecting an absent child is a no-op.
func (r *Recorder) Disconnect(parent Handle, slot string, child Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.live(parent)
	if err != nil {
		err = fmt.Errorf("disconnect %s: %w", slot, err)
		r.record(Call{Op: OpDisconnect, Handle: parent, Target: child, Name: slot}, err)
		return err
	}
	p.slots[slot] = slices.DeleteFunc(p.slots[slot], func(c Handle) bool { return c == child })
	if len(p.slots[slot]) == 0 {
		delete(p.slots, slot)
	}
	r.record(Call{Op: OpDisconnect, Handle: parent, Kind: p.kind, Target: child, Name: slot}, nil)
	return nil
}

// Render implements Engine.
func (r *Recorder) Render(window Handle) error {
	r.mu.Lock()
	w, err := r.live(window)
	if err == nil && w.kind != KindRenderWindow {
		err = fmt.Errorf("%s is a %s, not a render window", window, w.kind)
	}
	if err != nil {
		err = fmt.Errorf("render: %w", err)
		r.record(Call{Op: OpRender, Handle: window}, err)
		r.mu.Unlock()
		return err
	}
	r.record(Call{Op: OpRender, Handle: window, Kind: w.kind}, nil)
	hook := r.onRender
	r.mu.Unlock()

	if hook != nil {
		hook(window)
	}
	return nil
}

// ResetCamera implements Engine. With nil bounds the camera fits the union
// of the "bounds" properties of the visible props attached to the
// renderer; with nothing to fit the focal point is left unchanged.
func (r *Recorder) ResetCamera(renderer Handle, bounds *Bounds) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, err := r.live(renderer)
	if err == nil && o.kind != KindRenderer {
		err = fmt.Errorf("%s is a %s, not a renderer", renderer, o.kind)
	}
	var value ir.Value = ir.Null{}
	if bounds != nil {
		value = bounds.Value()
	}
	if err != nil {
		err = fmt.Errorf("reset camera: %w", err)
		r.record(Call{Op: OpResetCamera, Handle: renderer, Value: value}, err)
		return err
	}

	fit, ok := Bounds{}, false
	if bounds != nil {
		fit, ok = *bounds, true
	} else {
		fit, ok = r.visibleBounds(o)
	}
	if ok {
		o.focal = fit.Center()
	}
	r.record(Call{Op: OpResetCamera, Handle: renderer, Kind: o.kind, Value: value}, nil)
	return nil
}

func (r *Recorder) visibleBounds(renderer *object) (Bounds, bool) {
	var out Bounds
	found := false
	for _, h := range renderer.slots[SlotProps] {
		p, ok := r.objects[h]
		if !ok || p.deleted {
			continue
		}
		if vis, ok := p.props["visibility"].(ir.Bool); ok && !bool(vis) {
			continue
		}
		b, ok := BoundsFromValue(p.props["bounds"])
		if !ok {
			continue
		}
		if !found {
			out, found = b, true
		} else {
			out = out.Union(b)
		}
	}
	return out, found
}

// FocalPoint implements Engine.
func (r *Recorder) FocalPoint(renderer Handle) ([3]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, err := r.live(renderer)
	if err != nil {
		err = fmt.Errorf("focal point: %w", err)
		r.record(Call{Op: OpFocalPoint, Handle: renderer}, err)
		return [3]float64{}, err
	}
	r.record(Call{Op: OpFocalPoint, Handle: renderer, Kind: o.kind, Value: ir.Vec3(o.focal)}, nil)
	return o.focal, nil
}

// Delete implements Engine. A deleted object drops its own references.
func (r *Recorder) Delete(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, err := r.live(h)
	if err == nil {
		if refs := r.referrers(h); len(refs) > 0 {
			err = fmt.Errorf("%s referenced by %v: %w", h, refs, ErrStillReferenced)
		}
	}
	if err != nil {
		err = fmt.Errorf("delete: %w", err)
		r.record(Call{Op: OpDelete, Handle: h}, err)
		return err
	}
	o.deleted = true
	o.slots = make(map[string][]Handle)
	r.record(Call{Op: OpDelete, Handle: h, Kind: o.kind}, nil)
	return nil
}

func (r *Recorder) referrers(h Handle) []Handle {
	var out []Handle
	for ph, p := range r.objects {
		if p.deleted {
			continue
		}
		for _, children := range p.slots {
			if slices.Contains(children, h) {
				out = append(out, ph)
				break
			}
		}
	}
	slices.Sort(out)
	return out
}

// Calls returns a copy of every recorded call.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsOf returns the recorded calls with the given op.
func (r *Recorder) CallsOf(op Op) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Trace returns every recorded call as a canonical-ready list.
func (r *Recorder) Trace() ir.List {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(ir.List, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.IR()
	}
	return out
}

// Renders counts successful renders of window.
func (r *Recorder) Renders(window Handle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == OpRender && c.Handle == window && c.Err == "" {
			n++
		}
	}
	return n
}

// Alive reports whether h was issued and not yet deleted.
func (r *Recorder) Alive(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.live(h)
	return err == nil
}

// KindOf returns the kind h was created with.
func (r *Recorder) KindOf(h Handle) (Kind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objects[h]
	if !ok {
		return "", false
	}
	return o.kind, true
}

// Property returns the last value set for name on h.
func (r *Recorder) Property(h Handle, name string) (ir.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objects[h]
	if !ok {
		return nil, false
	}
	v, ok := o.props[name]
	return v, ok
}

// Connected returns the children of parent in slot, in connection order.
func (r *Recorder) Connected(parent Handle, slot string) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.objects[parent]
	if !ok {
		return nil
	}
	return slices.Clone(o.slots[slot])
}

// LiveCount returns the number of objects not yet deleted.
func (r *Recorder) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.objects {
		if !o.deleted {
			n++
		}
	}
	return n
}

// LiveOf returns the live handles of kind in creation order.
func (r *Recorder) LiveOf(kind Kind) []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Handle
	for h, o := range r.objects {
		if !o.deleted && o.kind == kind {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}

// Deleted returns the kinds of successfully deleted objects in deletion
// order.
func (r *Recorder) Deleted() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Kind
	for _, c := range r.calls {
		if c.Op == OpDelete && c.Err == "" {
			out = append(out, c.Kind)
		}
	}
	return out
}

var _ Engine = (*Recorder)(nil)
