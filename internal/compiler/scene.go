package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scenesync/internal/ir"
)

//go:embed schema.cue
var schemaSource []byte

// Schema compiles the embedded scene schema in ctx and returns its #Scene
// definition.
func Schema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v.LookupPath(cue.ParsePath("#Scene")), nil
}

// CompileScene parses a CUE value into a SceneSpec.
//
// The value is unified with the #Scene schema first, so unknown fields are
// errors and omitted fields take their defaults. The value should be the
// scene struct itself:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`scene: ct: { views: axial: { ... } }`)
//	spec, err := CompileScene(v.LookupPath(cue.ParsePath("scene.ct")))
//
// Sources, views and representations keep their declaration order.
func CompileScene(v cue.Value) (*ir.SceneSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	label := ""
	if sels := v.Path().Selectors(); len(sels) > 0 {
		label = selectorName(sels[len(sels)-1])
	}

	schema, err := Schema(v.Context())
	if err != nil {
		return nil, err
	}
	u := schema.Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.SceneSpec{}
	if spec.Name, err = str(u, "name"); err != nil {
		return nil, err
	}
	if spec.Name == "" {
		spec.Name = label
	}

	sources, err := fieldsOf(u.LookupPath(cue.ParsePath("sources")))
	if err != nil {
		return nil, err
	}
	for _, f := range sources {
		src, err := parseSource(f.label, f.value)
		if err != nil {
			return nil, err
		}
		spec.Sources = append(spec.Sources, src)
	}

	views, err := fieldsOf(u.LookupPath(cue.ParsePath("views")))
	if err != nil {
		return nil, err
	}
	for _, f := range views {
		view, err := parseView(f.label, f.value)
		if err != nil {
			return nil, err
		}
		spec.Views = append(spec.Views, view)
	}

	return spec, nil
}

func parseSource(name string, v cue.Value) (ir.SourceSpec, error) {
	src := ir.SourceSpec{Name: name}
	var err error
	if src.Dataset, err = str(v, "dataset"); err != nil {
		return src, err
	}
	bounds, err := fixed(v, "bounds", 6)
	if err != nil {
		return src, err
	}
	copy(src.Bounds[:], bounds)
	src.Available, err = boolean(v, "available")
	return src, err
}

func parseView(key string, v cue.Value) (ir.ViewSpec, error) {
	view := ir.ViewSpec{Key: key}
	var err error
	if view.Container, err = str(v, "container"); err != nil {
		return view, err
	}
	if view.Background, err = vec3(v, "background"); err != nil {
		return view, err
	}
	if view.Interactive, err = boolean(v, "interactive"); err != nil {
		return view, err
	}
	if view.AutoResetCamera, err = boolean(v, "auto_reset_camera"); err != nil {
		return view, err
	}
	if view.AutoCenterOfRotation, err = boolean(v, "auto_center_of_rotation"); err != nil {
		return view, err
	}

	present, err := presentFields(v)
	if err != nil {
		return view, err
	}
	if cam, ok := present["camera"]; ok {
		view.Camera, err = parseCamera(cam)
		if err != nil {
			return view, err
		}
	}

	view.Manipulators, err = parseManipulators(field(v, "manipulators"))
	if err != nil {
		return view, err
	}

	reps, err := fieldsOf(field(v, "representations"))
	if err != nil {
		return view, err
	}
	for _, f := range reps {
		rep, err := parseRepresentation(f.label, f.value)
		if err != nil {
			return view, err
		}
		view.Representations = append(view.Representations, rep)
	}
	return view, nil
}

func parseCamera(v cue.Value) (*ir.CameraSpec, error) {
	cam := &ir.CameraSpec{}
	var err error
	if cam.Position, err = vec3(v, "position"); err != nil {
		return nil, err
	}
	if cam.FocalPoint, err = vec3(v, "focal_point"); err != nil {
		return nil, err
	}
	if cam.ViewUp, err = vec3(v, "view_up"); err != nil {
		return nil, err
	}
	if cam.ParallelProjection, err = boolean(v, "parallel_projection"); err != nil {
		return nil, err
	}
	return cam, nil
}

func parseManipulators(v cue.Value) ([]ir.ManipulatorSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.ManipulatorSpec
	for iter.Next() {
		mv := iter.Value()
		m := ir.ManipulatorSpec{}
		if m.Button, err = integer(mv, "button"); err != nil {
			return nil, err
		}
		if m.Alt, err = boolean(mv, "alt"); err != nil {
			return nil, err
		}
		if m.Control, err = boolean(mv, "control"); err != nil {
			return nil, err
		}
		if m.Shift, err = boolean(mv, "shift"); err != nil {
			return nil, err
		}
		if m.Scroll, err = boolean(mv, "scroll"); err != nil {
			return nil, err
		}
		action, err := str(mv, "action")
		if err != nil {
			return nil, err
		}
		m.Action = ir.Action(action)
		out = append(out, m)
	}
	return out, nil
}

func parseRepresentation(key string, v cue.Value) (ir.RepresentationSpec, error) {
	rep := ir.RepresentationSpec{Key: key}
	typ, err := str(v, "type")
	if err != nil {
		return rep, err
	}
	rep.Type = ir.RepresentationType(typ)
	if rep.Source, err = str(v, "source"); err != nil {
		return rep, err
	}
	if rep.Visible, err = boolean(v, "visible"); err != nil {
		return rep, err
	}

	present, err := presentFields(v)
	if err != nil {
		return rep, err
	}
	if sv, ok := present["slice"]; ok {
		if rep.Slice, err = parseSlice(sv); err != nil {
			return rep, err
		}
	}
	if vv, ok := present["volume"]; ok {
		if rep.Volume, err = parseVolume(vv); err != nil {
			return rep, err
		}
	}
	if gv, ok := present["geometry"]; ok {
		if rep.Geometry, err = parseGeometry(gv); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func parseSlice(v cue.Value) (*ir.SliceSpec, error) {
	s := &ir.SliceSpec{}
	var err error
	if s.Axis, err = str(v, "axis"); err != nil {
		return nil, err
	}
	if s.Index, err = integer(v, "index"); err != nil {
		return nil, err
	}
	if s.ColorWindow, err = number(v, "color_window"); err != nil {
		return nil, err
	}
	if s.ColorLevel, err = number(v, "color_level"); err != nil {
		return nil, err
	}
	if s.ColorMap, err = str(v, "color_map"); err != nil {
		return nil, err
	}
	return s, nil
}

func parseVolume(v cue.Value) (*ir.VolumeSpec, error) {
	s := &ir.VolumeSpec{}
	var err error
	if s.ColorMap, err = str(v, "color_map"); err != nil {
		return nil, err
	}
	rng, err := fixed(v, "scalar_range", 2)
	if err != nil {
		return nil, err
	}
	copy(s.ScalarRange[:], rng)
	if s.OpacityPoints, err = numbers(v, "opacity_points"); err != nil {
		return nil, err
	}
	if s.SampleDistance, err = number(v, "sample_distance"); err != nil {
		return nil, err
	}
	if s.Shade, err = boolean(v, "shade"); err != nil {
		return nil, err
	}
	return s, nil
}

func parseGeometry(v cue.Value) (*ir.GeometrySpec, error) {
	s := &ir.GeometrySpec{}
	var err error
	if s.Color, err = vec3(v, "color"); err != nil {
		return nil, err
	}
	if s.Opacity, err = number(v, "opacity"); err != nil {
		return nil, err
	}
	if s.PointSize, err = number(v, "point_size"); err != nil {
		return nil, err
	}
	if s.Style, err = str(v, "style"); err != nil {
		return nil, err
	}
	if s.ColorMap, err = str(v, "color_map"); err != nil {
		return nil, err
	}
	rng, err := fixed(v, "scalar_range", 2)
	if err != nil {
		return nil, err
	}
	copy(s.ScalarRange[:], rng)
	return s, nil
}

// ============================================================================
// Field access
// ============================================================================

type labeled struct {
	label string
	value cue.Value
}

// fieldsOf returns the regular fields of a struct in declaration order.
func fieldsOf(v cue.Value) ([]labeled, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []labeled
	for iter.Next() {
		out = append(out, labeled{label: selectorName(iter.Selector()), value: iter.Value()})
	}
	return out, nil
}

// presentFields indexes the regular fields of v. Optional schema fields
// the scene did not set are absent.
func presentFields(v cue.Value) (map[string]cue.Value, error) {
	fs, err := fieldsOf(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]cue.Value, len(fs))
	for _, f := range fs {
		out[f.label] = f.value
	}
	return out, nil
}

func field(v cue.Value, name string) cue.Value {
	f := v.LookupPath(cue.MakePath(cue.Str(name)))
	if d, ok := f.Default(); ok {
		return d
	}
	return f
}

func str(v cue.Value, name string) (string, error) {
	f := field(v, name)
	s, err := f.String()
	if err != nil {
		return "", fieldError(f, name, err)
	}
	return s, nil
}

func boolean(v cue.Value, name string) (bool, error) {
	f := field(v, name)
	b, err := f.Bool()
	if err != nil {
		return false, fieldError(f, name, err)
	}
	return b, nil
}

func number(v cue.Value, name string) (float64, error) {
	f := field(v, name)
	x, err := f.Float64()
	if err != nil {
		return 0, fieldError(f, name, err)
	}
	return x, nil
}

func integer(v cue.Value, name string) (int, error) {
	f := field(v, name)
	x, err := f.Int64()
	if err != nil {
		return 0, fieldError(f, name, err)
	}
	return int(x), nil
}

func numbers(v cue.Value, name string) ([]float64, error) {
	f := field(v, name)
	iter, err := f.List()
	if err != nil {
		return nil, fieldError(f, name, err)
	}
	out := []float64{}
	for iter.Next() {
		x, err := iter.Value().Float64()
		if err != nil {
			return nil, fieldError(iter.Value(), name, err)
		}
		out = append(out, x)
	}
	return out, nil
}

func fixed(v cue.Value, name string, n int) ([]float64, error) {
	xs, err := numbers(v, name)
	if err != nil {
		return nil, err
	}
	if len(xs) != n {
		return nil, &CompileError{
			Field:   name,
			Message: fmt.Sprintf("expected %d numbers, got %d", n, len(xs)),
			Pos:     field(v, name).Pos(),
		}
	}
	return xs, nil
}

func vec3(v cue.Value, name string) ([3]float64, error) {
	var out [3]float64
	xs, err := fixed(v, name, 3)
	if err != nil {
		return out, err
	}
	copy(out[:], xs)
	return out, nil
}

func selectorName(s cue.Selector) string {
	if s.LabelType() == cue.StringLabel {
		return s.Unquoted()
	}
	return s.String()
}

// ============================================================================
// Errors
// ============================================================================

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldError(v cue.Value, name string, err error) error {
	return &CompileError{Field: name, Message: err.Error(), Pos: v.Pos()}
}

// formatCUEError converts a CUE error into a CompileError carrying the
// position of the first error.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
