package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// Scene reconciles a declarative ir.SceneSpec against live views,
// representations and data sources, keyed by name.
//
// Apply diffs the new spec against the mounted one: new keys mount,
// missing keys unmount, existing keys update their props, and a
// representation whose type changed is remounted. Removed representations
// are signalled before their view; removed views are signalled alone and
// finish tearing down their representations when the root settles.
type Scene struct {
	root    *engine.Root
	logger  *slog.Logger
	spec    ir.SceneSpec
	sources map[string]*DataSource
	views   map[string]*View
	order   []string
}

// Mount creates the scene described by spec under root. Nothing native is
// built until the root settles.
func Mount(root *engine.Root, spec ir.SceneSpec) (*Scene, error) {
	s := &Scene{
		root:    root,
		logger:  root.Logger().With("scene", spec.Name),
		sources: make(map[string]*DataSource),
		views:   make(map[string]*View),
	}
	if err := s.Apply(spec); err != nil {
		return nil, err
	}
	return s, nil
}

// Spec returns the last applied spec.
func (s *Scene) Spec() ir.SceneSpec { return s.spec }

// Root returns the scene root.
func (s *Scene) Root() *engine.Root { return s.root }

// Source returns the named data source.
func (s *Scene) Source(name string) (*DataSource, bool) {
	src, ok := s.sources[name]
	return src, ok
}

// View returns the view with key, including one whose removal is pending.
func (s *Scene) View(key string) (*View, bool) {
	v, ok := s.views[key]
	return v, ok
}

// Views returns the mounted views in mount order.
func (s *Scene) Views() []*View {
	out := make([]*View, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.views[key])
	}
	return out
}

// Settle runs one update cycle on the root.
func (s *Scene) Settle() (engine.CycleReport, error) {
	return s.root.Settle()
}

// Close tears the scene down and closes the root.
func (s *Scene) Close() error {
	for _, name := range slices.Sorted(maps.Keys(s.sources)) {
		s.sources[name].Withdraw()
	}
	return s.root.Close()
}

// Apply reconciles the scene with spec.
func (s *Scene) Apply(spec ir.SceneSpec) error {
	var errs []error
	s.applySources(spec.Sources)

	keep := make(map[string]bool, len(spec.Views))
	for _, vs := range spec.Views {
		keep[vs.Key] = true
	}
	for _, key := range slices.Clone(s.order) {
		if v := s.views[key]; !keep[key] && !v.Removing() {
			s.logger.Debug("unmounting view", "view", key)
			errs = append(errs, v.Unmount())
		}
	}
	for _, vs := range spec.Views {
		if err := s.applyView(vs); err != nil {
			errs = append(errs, err)
		}
	}
	s.spec = spec
	return errors.Join(errs...)
}

func (s *Scene) applySources(specs []ir.SourceSpec) {
	want := make(map[string]bool, len(specs))
	for _, ss := range specs {
		want[ss.Name] = true
	}
	for _, name := range slices.Sorted(maps.Keys(s.sources)) {
		if !want[name] {
			s.sources[name].Withdraw()
			delete(s.sources, name)
		}
	}
	for _, ss := range specs {
		src, ok := s.sources[ss.Name]
		if !ok {
			src = NewDataSource(ss.Name)
			s.sources[ss.Name] = src
		}
		if !ss.Available {
			src.Withdraw()
			continue
		}
		ds := Dataset{ID: ss.Dataset, Bounds: gfx.Bounds(ss.Bounds)}
		if cur, avail := src.Current(); !avail || cur != ds {
			src.Publish(ds)
		}
	}
}

func (s *Scene) applyView(vs ir.ViewSpec) error {
	props := ViewPropsFromSpec(vs)
	v, ok := s.views[vs.Key]

	if ok && v.Removing() {
		v.Revive()
		s.logger.Debug("view revived", "view", vs.Key)
	}
	if ok && v.Props().Container != "" && v.Props().Container != props.Container {
		s.logger.Debug("remounting view for new container", "view", vs.Key, "container", props.Container)
		s.forget(v)
		for _, r := range v.Representations() {
			if err := r.Unmount(); err != nil {
				return err
			}
		}
		if err := v.Unmount(); err != nil {
			return err
		}
		ok = false
	}

	if ok {
		if err := v.Update(props); err != nil {
			return err
		}
	} else {
		nv, err := NewView(s.root, vs.Key, props)
		if err != nil {
			return err
		}
		nv.onDestroy = s.forget
		s.views[vs.Key] = nv
		s.order = append(s.order, vs.Key)
		v = nv
	}
	return s.applyRepresentations(v, vs.Representations)
}

// forget drops v from the scene if it is still the view mounted under its
// key.
func (s *Scene) forget(v *View) {
	if s.views[v.key] != v {
		return
	}
	delete(s.views, v.key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == v.key })
}

func (s *Scene) applyRepresentations(v *View, specs []ir.RepresentationSpec) error {
	var errs []error
	want := make(map[string]ir.RepresentationSpec, len(specs))
	for _, rs := range specs {
		want[rs.Key] = rs
	}
	for _, r := range v.Representations() {
		rs, keep := want[r.Key()]
		if !keep || rs.Type != r.Type() {
			errs = append(errs, r.Unmount())
		}
	}

	for _, rs := range specs {
		var err error
		r, ok := v.Representation(rs.Key)
		if !ok {
			r, err = s.mountRepresentation(v, rs)
		} else {
			err = updateRepresentation(r, rs)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.AttachSource(s.sources[rs.Source])
	}
	return errors.Join(errs...)
}

func (s *Scene) mountRepresentation(v *View, rs ir.RepresentationSpec) (Representation, error) {
	switch rs.Type {
	case ir.RepresentationSlice:
		return v.AddSlice(rs.Key, SlicePropsFromSpec(rs))
	case ir.RepresentationVolume:
		return v.AddVolume(rs.Key, VolumePropsFromSpec(rs))
	case ir.RepresentationGeometry:
		return v.AddGeometry(rs.Key, GeometryPropsFromSpec(rs))
	default:
		return nil, fmt.Errorf("representation %s: unknown type %q: %w", rs.Key, rs.Type, ErrInvalidProps)
	}
}

func updateRepresentation(r Representation, rs ir.RepresentationSpec) error {
	switch r := r.(type) {
	case *SliceRepresentation:
		return r.Update(SlicePropsFromSpec(rs))
	case *VolumeRepresentation:
		return r.Update(VolumePropsFromSpec(rs))
	case *GeometryRepresentation:
		return r.Update(GeometryPropsFromSpec(rs))
	default:
		return fmt.Errorf("representation %s: unsupported %T", rs.Key, r)
	}
}
