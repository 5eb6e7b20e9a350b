package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/ir"
)

func validScene() *ir.SceneSpec {
	return &ir.SceneSpec{
		Name: "ct",
		Sources: []ir.SourceSpec{
			{Name: "head", Dataset: "head.vti", Bounds: [6]float64{0, 10, 0, 10, 0, 20}, Available: true},
			{Name: "skin", Dataset: "skin.vtp"},
		},
		Views: []ir.ViewSpec{
			{
				Key:       "axial",
				Container: "left",
				Manipulators: []ir.ManipulatorSpec{
					{Button: 1, Action: ir.ActionRotate},
					{Button: 2, Scroll: true, Action: ir.ActionZoom},
				},
				Representations: []ir.RepresentationSpec{
					{Key: "s1", Type: ir.RepresentationSlice, Source: "head", Visible: true,
						Slice: &ir.SliceSpec{Axis: "K", ColorWindow: 255, ColorLevel: 127.5, ColorMap: "Grayscale"}},
					{Key: "v1", Type: ir.RepresentationVolume, Source: "head", Visible: true,
						Volume: &ir.VolumeSpec{ColorMap: "Cool to Warm", ScalarRange: [2]float64{0, 1},
							OpacityPoints: []float64{0, 0, 1, 1}, SampleDistance: 1}},
				},
			},
			{
				Key:       "3d",
				Container: "right",
				Camera:    &ir.CameraSpec{Position: [3]float64{0, 0, 50}, ViewUp: [3]float64{0, 1, 0}},
				Representations: []ir.RepresentationSpec{
					{Key: "g1", Type: ir.RepresentationGeometry, Source: "skin", Visible: true,
						Geometry: &ir.GeometrySpec{Color: [3]float64{1, 1, 1}, Opacity: 1, PointSize: 1, Style: "surface"}},
					{Key: "g2", Type: ir.RepresentationGeometry},
				},
			},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

// =============================================================================
// SceneSpec Validation Tests
// =============================================================================

func TestValidateSceneValid(t *testing.T) {
	assert.Empty(t, Validate(validScene()), "valid scene should have no errors")
	assert.Empty(t, Validate(*validScene()), "value form is accepted too")
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a scene")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
	assert.Contains(t, errs[0].Message, "string")
}

func TestValidateSceneErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.SceneSpec)
		code   string
		field  string
	}{
		{
			name:   "empty name",
			mutate: func(s *ir.SceneSpec) { s.Name = "  " },
			code:   ErrSceneNameEmpty,
			field:  "name",
		},
		{
			name:   "duplicate source",
			mutate: func(s *ir.SceneSpec) { s.Sources[1].Name = "head" },
			code:   ErrDuplicateName,
			field:  "sources[1]",
		},
		{
			name:   "empty view key",
			mutate: func(s *ir.SceneSpec) { s.Views[1].Key = "" },
			code:   ErrEmptyKey,
			field:  "views[1]",
		},
		{
			name:   "inverted bounds",
			mutate: func(s *ir.SceneSpec) { s.Sources[0].Bounds = [6]float64{0, 10, 5, 1, 0, 20} },
			code:   ErrInvalidBounds,
			field:  "sources[0].bounds",
		},
		{
			name:   "shared container",
			mutate: func(s *ir.SceneSpec) { s.Views[1].Container = "left" },
			code:   ErrDuplicateContainer,
			field:  "views[1].container",
		},
		{
			name:   "button out of range",
			mutate: func(s *ir.SceneSpec) { s.Views[0].Manipulators[0].Button = 0 },
			code:   ErrInvalidManipulator,
			field:  "views[0].manipulators[0].button",
		},
		{
			name:   "unknown action",
			mutate: func(s *ir.SceneSpec) { s.Views[0].Manipulators[1].Action = "Spin" },
			code:   ErrInvalidManipulator,
			field:  "views[0].manipulators[1].action",
		},
		{
			name:   "zero view up",
			mutate: func(s *ir.SceneSpec) { s.Views[1].Camera.ViewUp = [3]float64{} },
			code:   ErrInvalidCamera,
			field:  "views[1].camera.view_up",
		},
		{
			name:   "duplicate representation",
			mutate: func(s *ir.SceneSpec) { s.Views[1].Representations[1].Key = "g1" },
			code:   ErrDuplicateName,
			field:  "views[1].representations[1]",
		},
		{
			name:   "unknown source",
			mutate: func(s *ir.SceneSpec) { s.Views[0].Representations[0].Source = "liver" },
			code:   ErrUnknownSource,
			field:  "views[0].representations[0].source",
		},
		{
			name:   "invalid type",
			mutate: func(s *ir.SceneSpec) { s.Views[1].Representations[1].Type = "mesh" },
			code:   ErrInvalidRepType,
			field:  "views[1].representations[1].type",
		},
		{
			name: "block type mismatch",
			mutate: func(s *ir.SceneSpec) {
				s.Views[1].Representations[1].Slice = &ir.SliceSpec{Axis: "K"}
			},
			code:  ErrBlockTypeMismatch,
			field: "views[1].representations[1].slice",
		},
		{
			name:   "bad axis",
			mutate: func(s *ir.SceneSpec) { s.Views[0].Representations[0].Slice.Axis = "X" },
			code:   ErrInvalidEnum,
			field:  "views[0].representations[0].slice.axis",
		},
		{
			name:   "odd opacity points",
			mutate: func(s *ir.SceneSpec) { s.Views[0].Representations[1].Volume.OpacityPoints = []float64{0, 0, 1} },
			code:   ErrInvalidOpacity,
			field:  "views[0].representations[1].volume.opacity_points",
		},
		{
			name:   "bad style",
			mutate: func(s *ir.SceneSpec) { s.Views[1].Representations[0].Geometry.Style = "dots" },
			code:   ErrInvalidEnum,
			field:  "views[1].representations[0].geometry.style",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validScene()
			tt.mutate(spec)
			errs := Validate(spec)
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	spec := validScene()
	spec.Name = ""
	spec.Views[0].Manipulators[0].Button = 9
	spec.Views[1].Representations[0].Source = "nowhere"

	errs := Validate(spec)
	assert.Equal(t, []string{ErrSceneNameEmpty, ErrInvalidManipulator, ErrUnknownSource}, codes(errs))
}

func TestValidateLeavesEngineValuesAlone(t *testing.T) {
	spec := validScene()
	spec.Views[0].Representations[0].Slice.Index = -5
	spec.Views[0].Representations[0].Slice.ColorMap = "Plasma"
	spec.Views[0].Representations[1].Volume.ScalarRange = [2]float64{5, 1}
	spec.Views[0].Representations[1].Volume.SampleDistance = 0
	spec.Views[1].Representations[0].Geometry.Opacity = 1.5
	assert.Empty(t, Validate(spec))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "views[0]", Message: "bad", Code: ErrEmptyKey}
	assert.Equal(t, "[E103] views[0]: bad", e.Error())

	e.Line = 4
	assert.Equal(t, "[E103] line 4: views[0]: bad", e.Error())
}
