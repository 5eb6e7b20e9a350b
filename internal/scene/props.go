package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/scenesync/internal/ir"
)

// ErrInvalidProps is wrapped by every props validation failure.
var ErrInvalidProps = errors.New("invalid props")

// Color is an RGB triple in [0, 1].
type Color [3]float64

// CameraProps holds a camera's initial values.
type CameraProps = ir.CameraSpec

// Manipulator binds a mouse button plus modifiers to a camera action.
type Manipulator = ir.ManipulatorSpec

// ViewProps configures a View.
type ViewProps struct {
	// Container names the host element the platform view attaches to. The
	// view stays unattached while it is empty.
	Container            string
	Background           Color
	Interactive          bool
	AutoResetCamera      bool
	AutoCenterOfRotation bool
	Camera               *CameraProps
	Manipulators         []Manipulator
}

// DefaultViewProps returns interactive props with both camera toggles on.
func DefaultViewProps(container string) ViewProps {
	return ViewProps{
		Container:            container,
		Interactive:          true,
		AutoResetCamera:      true,
		AutoCenterOfRotation: true,
	}
}

// Validate checks the manipulator bindings.
func (p ViewProps) Validate() error {
	for i, m := range p.Manipulators {
		if m.Button < 1 || m.Button > 3 {
			return fmt.Errorf("manipulator %d: button %d out of range 1-3: %w", i, m.Button, ErrInvalidProps)
		}
		if !ir.ValidActions[m.Action] {
			return fmt.Errorf("manipulator %d: unknown action %q: %w", i, m.Action, ErrInvalidProps)
		}
	}
	return nil
}

// clone copies the camera and manipulators so the view never shares
// memory with the caller.
func (p ViewProps) clone() ViewProps {
	if p.Camera != nil {
		c := *p.Camera
		p.Camera = &c
	}
	p.Manipulators = slices.Clone(p.Manipulators)
	return p
}

// ViewPropsFromSpec converts a compiled view description.
func ViewPropsFromSpec(v ir.ViewSpec) ViewProps {
	return ViewProps{
		Container:            v.Container,
		Background:           Color(v.Background),
		Interactive:          v.Interactive,
		AutoResetCamera:      v.AutoResetCamera,
		AutoCenterOfRotation: v.AutoCenterOfRotation,
		Camera:               v.Camera,
		Manipulators:         v.Manipulators,
	}
}

// SliceProps configures a SliceRepresentation.
type SliceProps struct {
	Visible     bool
	Axis        string
	Index       int
	ColorWindow float64
	ColorLevel  float64
	ColorMap    string
}

// DefaultSliceProps returns a visible grayscale K slice.
func DefaultSliceProps() SliceProps {
	return SliceProps{
		Visible:     true,
		Axis:        "K",
		ColorWindow: 255,
		ColorLevel:  127.5,
		ColorMap:    "Grayscale",
	}
}

// Validate checks the axis, which maps to a native slicing mode. Index
// and colour map go to the engine as they are.
func (p SliceProps) Validate() error {
	if _, ok := ir.ValidSliceAxes[p.Axis]; !ok {
		return fmt.Errorf("slice axis %q: %w", p.Axis, ErrInvalidProps)
	}
	return nil
}

// VolumeProps configures a VolumeRepresentation. OpacityPoints is a flat
// list of (scalar, opacity) pairs.
type VolumeProps struct {
	Visible        bool
	ColorMap       string
	ScalarRange    [2]float64
	OpacityPoints  []float64
	SampleDistance float64
	Shade          bool
}

// DefaultVolumeProps returns a visible volume with a linear opacity ramp.
func DefaultVolumeProps() VolumeProps {
	return VolumeProps{
		Visible:        true,
		ColorMap:       "Cool to Warm",
		ScalarRange:    [2]float64{0, 1},
		OpacityPoints:  []float64{0, 0, 1, 1},
		SampleDistance: 1,
	}
}

// Validate checks that the opacity points form pairs.
func (p VolumeProps) Validate() error {
	if len(p.OpacityPoints)%2 != 0 {
		return fmt.Errorf("opacity points must be (scalar, opacity) pairs, got %d values: %w",
			len(p.OpacityPoints), ErrInvalidProps)
	}
	return nil
}

func (p VolumeProps) clone() VolumeProps {
	p.OpacityPoints = slices.Clone(p.OpacityPoints)
	return p
}

// GeometryProps configures a GeometryRepresentation.
type GeometryProps struct {
	Visible     bool
	Color       Color
	Opacity     float64
	PointSize   float64
	Style       string
	ColorMap    string
	ScalarRange [2]float64
}

// DefaultGeometryProps returns an opaque white surface.
func DefaultGeometryProps() GeometryProps {
	return GeometryProps{
		Visible:     true,
		Color:       Color{1, 1, 1},
		Opacity:     1,
		PointSize:   1,
		Style:       "surface",
		ColorMap:    "Grayscale",
		ScalarRange: [2]float64{0, 1},
	}
}

// Validate checks the style, which maps to a native representation mode.
func (p GeometryProps) Validate() error {
	if _, ok := ir.ValidGeometryStyles[p.Style]; !ok {
		return fmt.Errorf("geometry style %q: %w", p.Style, ErrInvalidProps)
	}
	return nil
}

// SlicePropsFromSpec converts a compiled representation. A nil slice
// block yields the defaults.
func SlicePropsFromSpec(r ir.RepresentationSpec) SliceProps {
	p := DefaultSliceProps()
	p.Visible = r.Visible
	if s := r.Slice; s != nil {
		p.Axis = s.Axis
		p.Index = s.Index
		p.ColorWindow = s.ColorWindow
		p.ColorLevel = s.ColorLevel
		if s.ColorMap != "" {
			p.ColorMap = s.ColorMap
		}
	}
	return p
}

// VolumePropsFromSpec converts a compiled representation.
func VolumePropsFromSpec(r ir.RepresentationSpec) VolumeProps {
	p := DefaultVolumeProps()
	p.Visible = r.Visible
	if v := r.Volume; v != nil {
		if v.ColorMap != "" {
			p.ColorMap = v.ColorMap
		}
		p.ScalarRange = v.ScalarRange
		if v.OpacityPoints != nil {
			p.OpacityPoints = v.OpacityPoints
		}
		if v.SampleDistance > 0 {
			p.SampleDistance = v.SampleDistance
		}
		p.Shade = v.Shade
	}
	return p
}

// GeometryPropsFromSpec converts a compiled representation.
func GeometryPropsFromSpec(r ir.RepresentationSpec) GeometryProps {
	p := DefaultGeometryProps()
	p.Visible = r.Visible
	if g := r.Geometry; g != nil {
		p.Color = Color(g.Color)
		p.Opacity = g.Opacity
		p.PointSize = g.PointSize
		p.Style = g.Style
		if g.ColorMap != "" {
			p.ColorMap = g.ColorMap
		}
		p.ScalarRange = g.ScalarRange
	}
	return p
}
