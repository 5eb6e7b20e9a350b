// Package gfx defines the boundary to the retained-mode graphics engine.
//
// The engine is a black box reached only through Engine: handle-returning
// constructors, named property setters, referrer/referent wiring, render,
// camera reset and delete. Recorder is a complete in-memory Engine that
// records every call and enforces deletion order, used by tests, the
// conformance harness and the CLI.
package gfx

import (
	"errors"
	"fmt"

	"github.com/roach88/scenesync/internal/ir"
)

// Handle is an opaque reference to a native engine object. The zero
// Handle is never valid.
type Handle uint64

// NoHandle is the invalid handle.
const NoHandle Handle = 0

// Valid reports whether h refers to an object.
func (h Handle) Valid() bool { return h != NoHandle }

func (h Handle) String() string { return fmt.Sprintf("h%d", uint64(h)) }

// Kind names the class of a native object.
type Kind string

const (
	KindRenderer          Kind = "renderer"
	KindRenderWindow      Kind = "render_window"
	KindView              Kind = "view"
	KindInteractor        Kind = "interactor"
	KindInteractorStyle   Kind = "interactor_style"
	KindImageMapper       Kind = "image_mapper"
	KindVolumeMapper      Kind = "volume_mapper"
	KindGeometryMapper    Kind = "geometry_mapper"
	KindImageSlice        Kind = "image_slice"
	KindVolume            Kind = "volume"
	KindActor             Kind = "actor"
	KindLookupTable       Kind = "lookup_table"
	KindPiecewiseFunction Kind = "piecewise_function"
)

// Creatable lists the kinds accepted by Engine.Create. Views and
// interactor styles have their own constructors.
var Creatable = map[Kind]bool{
	KindRenderer:          true,
	KindRenderWindow:      true,
	KindInteractor:        true,
	KindImageMapper:       true,
	KindVolumeMapper:      true,
	KindGeometryMapper:    true,
	KindImageSlice:        true,
	KindVolume:            true,
	KindActor:             true,
	KindLookupTable:       true,
	KindPiecewiseFunction: true,
}

// Bounds is an axis-aligned box: xmin, xmax, ymin, ymax, zmin, zmax.
type Bounds [6]float64

// Valid reports whether every min is no greater than its max.
func (b Bounds) Valid() bool {
	return b[0] <= b[1] && b[2] <= b[3] && b[4] <= b[5]
}

// Center returns the centre point of the box.
func (b Bounds) Center() [3]float64 {
	return [3]float64{(b[0] + b[1]) / 2, (b[2] + b[3]) / 2, (b[4] + b[5]) / 2}
}

// Union returns the smallest box containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		min(b[0], o[0]), max(b[1], o[1]),
		min(b[2], o[2]), max(b[3], o[3]),
		min(b[4], o[4]), max(b[5], o[5]),
	}
}

// Value converts the box to an ir.List.
func (b Bounds) Value() ir.List {
	return ir.Floats(b[:]...)
}

// BoundsFromValue reads a six element list of floats.
func BoundsFromValue(v ir.Value) (Bounds, bool) {
	l, ok := v.(ir.List)
	if !ok || len(l) != 6 {
		return Bounds{}, false
	}
	var b Bounds
	for i, e := range l {
		f, ok := e.(ir.Float)
		if !ok {
			return Bounds{}, false
		}
		b[i] = float64(f)
	}
	return b, true
}

// Capabilities are feature flags an interactor style reports once at
// construction.
type Capabilities struct {
	CenterOfRotation bool `json:"center_of_rotation"`
}

// Well-known slot names used by Connect and Disconnect.
const (
	SlotRenderer        = "renderers"
	SlotView            = "views"
	SlotProps           = "viewProps"
	SlotMapper          = "mapper"
	SlotLookupTable     = "lookupTable"
	SlotColorTransfer   = "rgbTransferFunction"
	SlotScalarOpacity   = "scalarOpacity"
	SlotInteractorView  = "view"
	SlotInteractorStyle = "style"
)

// Engine is the retained-mode graphics engine.
type Engine interface {
	// Create constructs an object of a Creatable kind.
	Create(kind Kind) (Handle, error)
	// CreateView binds a platform view to a render window inside the
	// named host container.
	CreateView(window Handle, container string) (Handle, error)
	// CreateInteractorStyle constructs a named interactor style and
	// reports its capabilities.
	CreateInteractorStyle(name string) (Handle, Capabilities, error)
	// Set assigns a named property.
	Set(h Handle, name string, value ir.Value) error
	// Connect records that parent references child through slot.
	Connect(parent Handle, slot string, child Handle) error
	// Disconnect removes a reference added by Connect.
	Disconnect(parent Handle, slot string, child Handle) error
	// Render draws one frame of the window.
	Render(window Handle) error
	// ResetCamera fits the renderer's camera to bounds, or to the bounds of
	// its visible props when bounds is nil.
	ResetCamera(renderer Handle, bounds *Bounds) error
	// FocalPoint reads the renderer camera's focal point.
	FocalPoint(renderer Handle) ([3]float64, error)
	// Delete destroys an object. Deleting an object that a live object
	// still references is an error.
	Delete(h Handle) error
}

var (
	// ErrUnknownHandle is returned for handles the engine never issued or
	// has already deleted.
	ErrUnknownHandle = errors.New("unknown or deleted handle")

	// ErrStillReferenced is returned when deleting an object that a live
	// object still references.
	ErrStillReferenced = errors.New("handle still referenced")

	// ErrUnsupportedKind is returned by Create for kinds it cannot build.
	ErrUnsupportedKind = errors.New("unsupported kind")

	// ErrInjected marks failures produced by Recorder.FailNext.
	ErrInjected = errors.New("injected failure")

	// ErrInvalidValue is returned by Set for a value the property does
	// not accept.
	ErrInvalidValue = errors.New("invalid property value")
)
