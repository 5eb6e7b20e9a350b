package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/scenesync/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// SceneSpec errors (E101-E109)
	ErrSceneNameEmpty     = "E101" // scene name is required
	ErrDuplicateName      = "E102" // duplicate source/view/representation key
	ErrEmptyKey           = "E103" // source/view/representation key is empty
	ErrUnknownSource      = "E104" // representation references an undeclared source
	ErrDuplicateContainer = "E105" // two views share a host container
	ErrInvalidBounds      = "E106" // source bounds min greater than max

	// ViewSpec errors (E110-E119)
	ErrInvalidManipulator = "E110" // button out of range or unknown action
	ErrInvalidCamera      = "E111" // zero view-up vector

	// RepresentationSpec errors (E120-E129)
	ErrInvalidRepType    = "E120" // type is not slice, volume or geometry
	ErrBlockTypeMismatch = "E121" // property block does not match type
	ErrInvalidEnum       = "E122" // unknown axis or style
	ErrInvalidOpacity    = "E124" // opacity points not in (scalar, opacity) pairs
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled scene against the rules the CUE schema cannot
// express. Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.SceneSpec:
		return validateScene(spec)
	case ir.SceneSpec:
		return validateScene(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateScene(spec *ir.SceneSpec) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "scene name is required and must be non-empty",
			Code:    ErrSceneNameEmpty,
		})
	}

	sources := make(map[string]bool)
	for i, src := range spec.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		errs = append(errs, checkKey(field, "source", src.Name, sources)...)

		// E106: bounds must be ordered
		b := src.Bounds
		if b[0] > b[1] || b[2] > b[3] || b[4] > b[5] {
			errs = append(errs, ValidationError{
				Field:   field + ".bounds",
				Message: fmt.Sprintf("bounds of source %q have min greater than max: %v", src.Name, b),
				Code:    ErrInvalidBounds,
			})
		}
	}

	views := make(map[string]bool)
	containers := make(map[string]string)
	for i, view := range spec.Views {
		field := fmt.Sprintf("views[%d]", i)
		errs = append(errs, checkKey(field, "view", view.Key, views)...)

		// E105: one view per container
		if view.Container != "" {
			if other, ok := containers[view.Container]; ok {
				errs = append(errs, ValidationError{
					Field:   field + ".container",
					Message: fmt.Sprintf("views %q and %q share container %q", other, view.Key, view.Container),
					Code:    ErrDuplicateContainer,
				})
			} else {
				containers[view.Container] = view.Key
			}
		}

		errs = append(errs, validateView(field, &view, sources)...)
	}

	return errs
}

// checkKey reports empty and duplicate keys (E102, E103).
func checkKey(field, kind, key string, seen map[string]bool) []ValidationError {
	if strings.TrimSpace(key) == "" {
		return []ValidationError{{
			Field:   field,
			Message: kind + " key must be non-empty",
			Code:    ErrEmptyKey,
		}}
	}
	if seen[key] {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("duplicate %s key: %q", kind, key),
			Code:    ErrDuplicateName,
		}}
	}
	seen[key] = true
	return nil
}

func validateView(field string, view *ir.ViewSpec, sources map[string]bool) []ValidationError {
	var errs []ValidationError

	for i, m := range view.Manipulators {
		// E110: button 1-3 and a known action
		if m.Button < 1 || m.Button > 3 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.manipulators[%d].button", field, i),
				Message: fmt.Sprintf("button must be 1, 2 or 3, got %d", m.Button),
				Code:    ErrInvalidManipulator,
			})
		}
		if !ir.ValidActions[m.Action] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.manipulators[%d].action", field, i),
				Message: fmt.Sprintf("unknown action %q", m.Action),
				Code:    ErrInvalidManipulator,
			})
		}
	}

	// E111: the view-up vector defines the camera roll
	if c := view.Camera; c != nil && c.ViewUp == ([3]float64{}) {
		errs = append(errs, ValidationError{
			Field:   field + ".camera.view_up",
			Message: "view_up must be a non-zero vector",
			Code:    ErrInvalidCamera,
		})
	}

	keys := make(map[string]bool)
	for i, rep := range view.Representations {
		rf := fmt.Sprintf("%s.representations[%d]", field, i)
		errs = append(errs, checkKey(rf, "representation", rep.Key, keys)...)

		// E104: source must be declared
		if rep.Source != "" && !sources[rep.Source] {
			errs = append(errs, ValidationError{
				Field:   rf + ".source",
				Message: fmt.Sprintf("representation %q references unknown source %q", rep.Key, rep.Source),
				Code:    ErrUnknownSource,
			})
		}

		errs = append(errs, validateRepresentation(rf, &rep)...)
	}
	return errs
}

func validateRepresentation(field string, rep *ir.RepresentationSpec) []ValidationError {
	var errs []ValidationError

	// E120: known type
	if !ir.ValidRepresentationTypes[rep.Type] {
		return append(errs, ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("invalid representation type %q, must be \"slice\", \"volume\", or \"geometry\"", rep.Type),
			Code:    ErrInvalidRepType,
		})
	}

	// E121: only the block matching the type may be set
	blocks := map[ir.RepresentationType]bool{
		ir.RepresentationSlice:    rep.Slice != nil,
		ir.RepresentationVolume:   rep.Volume != nil,
		ir.RepresentationGeometry: rep.Geometry != nil,
	}
	for _, typ := range []ir.RepresentationType{ir.RepresentationSlice, ir.RepresentationVolume, ir.RepresentationGeometry} {
		if blocks[typ] && typ != rep.Type {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.%s", field, typ),
				Message: fmt.Sprintf("%s block set on a %s representation", typ, rep.Type),
				Code:    ErrBlockTypeMismatch,
			})
		}
	}

	if s := rep.Slice; s != nil {
		if _, ok := ir.ValidSliceAxes[s.Axis]; !ok {
			errs = append(errs, enumError(field+".slice.axis", "axis", s.Axis))
		}
	}

	// Index, ranges, opacity and colour maps are left to the engine.
	if vol := rep.Volume; vol != nil {
		// E124: flat (scalar, opacity) pairs
		if len(vol.OpacityPoints)%2 != 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".volume.opacity_points",
				Message: fmt.Sprintf("opacity points come in (scalar, opacity) pairs, got %d numbers", len(vol.OpacityPoints)),
				Code:    ErrInvalidOpacity,
			})
		}
	}

	if g := rep.Geometry; g != nil {
		if _, ok := ir.ValidGeometryStyles[g.Style]; !ok {
			errs = append(errs, enumError(field+".geometry.style", "style", g.Style))
		}
	}

	return errs
}

// E122
func enumError(field, what, got string) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("unknown %s %q", what, got),
		Code:    ErrInvalidEnum,
	}
}
