package ir

// SceneSpec is a compiled scene description: named data sources and the
// views that display them.
type SceneSpec struct {
	Name    string       `json:"name"`
	Sources []SourceSpec `json:"sources"`
	Views   []ViewSpec   `json:"views"`
}

// SourceSpec declares a data source. Available marks a source whose dataset
// is published as soon as the scene mounts.
type SourceSpec struct {
	Name      string     `json:"name"`
	Dataset   string     `json:"dataset"`
	Bounds    [6]float64 `json:"bounds"`
	Available bool       `json:"available"`
}

// ViewSpec describes one render view and its representations.
type ViewSpec struct {
	Key                  string               `json:"key"`
	Container            string               `json:"container"`
	Background           [3]float64           `json:"background"`
	Interactive          bool                 `json:"interactive"`
	AutoResetCamera      bool                 `json:"auto_reset_camera"`
	AutoCenterOfRotation bool                 `json:"auto_center_of_rotation"`
	Camera               *CameraSpec          `json:"camera,omitempty"`
	Manipulators         []ManipulatorSpec    `json:"manipulators,omitempty"`
	Representations      []RepresentationSpec `json:"representations"`
}

// CameraSpec holds the camera's initial values. They are pushed once per
// change, never read back from the engine.
type CameraSpec struct {
	Position           [3]float64 `json:"position"`
	FocalPoint         [3]float64 `json:"focal_point"`
	ViewUp             [3]float64 `json:"view_up"`
	ParallelProjection bool       `json:"parallel_projection"`
}

// ManipulatorSpec binds a mouse button plus modifiers to an action.
type ManipulatorSpec struct {
	Button  int    `json:"button"`
	Alt     bool   `json:"alt,omitempty"`
	Control bool   `json:"control,omitempty"`
	Shift   bool   `json:"shift,omitempty"`
	Scroll  bool   `json:"scroll,omitempty"`
	Action  Action `json:"action"`
}

// Action names a camera manipulation.
type Action string

const (
	ActionRotate      Action = "Rotate"
	ActionPan         Action = "Pan"
	ActionZoom        Action = "Zoom"
	ActionRoll        Action = "Roll"
	ActionZoomToMouse Action = "ZoomToMouse"
	ActionSelect      Action = "Select"
	ActionSlice       Action = "Slice"
	ActionDolly       Action = "Dolly"
)

// ValidActions is the fixed manipulator vocabulary.
var ValidActions = map[Action]bool{
	ActionRotate:      true,
	ActionPan:         true,
	ActionZoom:        true,
	ActionRoll:        true,
	ActionZoomToMouse: true,
	ActionSelect:      true,
	ActionSlice:       true,
	ActionDolly:       true,
}

// RepresentationType selects which native pipeline a representation builds.
type RepresentationType string

const (
	RepresentationSlice    RepresentationType = "slice"
	RepresentationVolume   RepresentationType = "volume"
	RepresentationGeometry RepresentationType = "geometry"
)

// ValidRepresentationTypes lists the representation kinds.
var ValidRepresentationTypes = map[RepresentationType]bool{
	RepresentationSlice:    true,
	RepresentationVolume:   true,
	RepresentationGeometry: true,
}

// RepresentationSpec is one visual representation of a data source inside
// a view. Exactly one of Slice, Volume or Geometry matches Type; a nil
// block means defaults.
type RepresentationSpec struct {
	Key      string             `json:"key"`
	Type     RepresentationType `json:"type"`
	Source   string             `json:"source"`
	Visible  bool               `json:"visible"`
	Slice    *SliceSpec         `json:"slice,omitempty"`
	Volume   *VolumeSpec        `json:"volume,omitempty"`
	Geometry *GeometrySpec      `json:"geometry,omitempty"`
}

// SliceSpec configures an image slice.
type SliceSpec struct {
	Axis        string  `json:"axis"` // "I", "J" or "K"
	Index       int     `json:"index"`
	ColorWindow float64 `json:"color_window"`
	ColorLevel  float64 `json:"color_level"`
	ColorMap    string  `json:"color_map,omitempty"`
}

// VolumeSpec configures a volume rendering. OpacityPoints is a flat list of
// (scalar, opacity) pairs.
type VolumeSpec struct {
	ColorMap       string     `json:"color_map"`
	ScalarRange    [2]float64 `json:"scalar_range"`
	OpacityPoints  []float64  `json:"opacity_points"`
	SampleDistance float64    `json:"sample_distance"`
	Shade          bool       `json:"shade"`
}

// GeometrySpec configures a surface/mesh representation.
type GeometrySpec struct {
	Color       [3]float64 `json:"color"`
	Opacity     float64    `json:"opacity"`
	PointSize   float64    `json:"point_size"`
	Style       string     `json:"style"` // "points", "wireframe" or "surface"
	ColorMap    string     `json:"color_map,omitempty"`
	ScalarRange [2]float64 `json:"scalar_range"`
}

// ValidSliceAxes maps slice axis names to the engine's slicing mode.
var ValidSliceAxes = map[string]int{"I": 0, "J": 1, "K": 2}

// ValidGeometryStyles maps geometry styles to the engine's representation
// enumeration.
var ValidGeometryStyles = map[string]int{"points": 0, "wireframe": 1, "surface": 2}

// Value converts the scene spec to a Map for canonical hashing.
func (s SceneSpec) Value() Map {
	sources := make(List, len(s.Sources))
	for i, src := range s.Sources {
		sources[i] = src.Value()
	}
	views := make(List, len(s.Views))
	for i, v := range s.Views {
		views[i] = v.Value()
	}
	return Map{
		"name":    String(s.Name),
		"sources": sources,
		"views":   views,
	}
}

// Value converts the source to a Map.
func (s SourceSpec) Value() Map {
	return Map{
		"name":      String(s.Name),
		"dataset":   String(s.Dataset),
		"bounds":    Floats(s.Bounds[:]...),
		"available": Bool(s.Available),
	}
}

// Value converts the view to a Map.
func (v ViewSpec) Value() Map {
	m := Map{
		"key":                     String(v.Key),
		"container":               String(v.Container),
		"background":              Vec3(v.Background),
		"interactive":             Bool(v.Interactive),
		"auto_reset_camera":       Bool(v.AutoResetCamera),
		"auto_center_of_rotation": Bool(v.AutoCenterOfRotation),
	}
	if v.Camera != nil {
		m["camera"] = v.Camera.Value()
	}
	manips := make(List, len(v.Manipulators))
	for i, mp := range v.Manipulators {
		manips[i] = mp.Value()
	}
	m["manipulators"] = manips
	reps := make(List, len(v.Representations))
	for i, r := range v.Representations {
		reps[i] = r.Value()
	}
	m["representations"] = reps
	return m
}

// Value converts the camera to a Map.
func (c CameraSpec) Value() Map {
	return Map{
		"position":            Vec3(c.Position),
		"focal_point":         Vec3(c.FocalPoint),
		"view_up":             Vec3(c.ViewUp),
		"parallel_projection": Bool(c.ParallelProjection),
	}
}

// Value converts the manipulator to a Map.
func (m ManipulatorSpec) Value() Map {
	return Map{
		"button":  Int(m.Button),
		"alt":     Bool(m.Alt),
		"control": Bool(m.Control),
		"shift":   Bool(m.Shift),
		"scroll":  Bool(m.Scroll),
		"action":  String(m.Action),
	}
}

// Value converts the representation to a Map.
func (r RepresentationSpec) Value() Map {
	m := Map{
		"key":     String(r.Key),
		"type":    String(r.Type),
		"source":  String(r.Source),
		"visible": Bool(r.Visible),
	}
	if r.Slice != nil {
		m["slice"] = Map{
			"axis":         String(r.Slice.Axis),
			"index":        Int(r.Slice.Index),
			"color_window": Float(r.Slice.ColorWindow),
			"color_level":  Float(r.Slice.ColorLevel),
			"color_map":    String(r.Slice.ColorMap),
		}
	}
	if r.Volume != nil {
		m["volume"] = Map{
			"color_map":       String(r.Volume.ColorMap),
			"scalar_range":    Floats(r.Volume.ScalarRange[:]...),
			"opacity_points":  Floats(r.Volume.OpacityPoints...),
			"sample_distance": Float(r.Volume.SampleDistance),
			"shade":           Bool(r.Volume.Shade),
		}
	}
	if r.Geometry != nil {
		m["geometry"] = Map{
			"color":        Vec3(r.Geometry.Color),
			"opacity":      Float(r.Geometry.Opacity),
			"point_size":   Float(r.Geometry.PointSize),
			"style":        String(r.Geometry.Style),
			"color_map":    String(r.Geometry.ColorMap),
			"scalar_range": Floats(r.Geometry.ScalarRange[:]...),
		}
	}
	return m
}
