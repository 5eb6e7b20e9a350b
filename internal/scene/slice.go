package scene

import (
	"errors"
	"fmt"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// SliceRepresentation shows one axis-aligned slice of an image through an
// image mapper, an image slice actor and a lookup table.
type SliceRepresentation struct {
	base
	props SliceProps

	mode     *prop[int]
	index    *prop[int]
	window   *prop[float64]
	level    *prop[float64]
	colorMap *prop[string]
}

func newSlice(v *View, key string, p SliceProps) (*SliceRepresentation, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("slice %s: %w", key, err)
	}
	r := &SliceRepresentation{props: p}
	if err := r.init(v, r, key, ir.RepresentationSlice); err != nil {
		return nil, err
	}
	r.declared = p.Visible

	mapper := r.addNode(gfx.KindImageMapper, "mapper")
	actor := r.addNode(gfx.KindImageSlice, "actor")
	lut := r.addNode(gfx.KindLookupTable, "lut")

	r.mode = newProp(mapper, "slicingMode", encodeInt)
	r.index = newProp(mapper, "slice", encodeInt)
	r.window = newProp(actor, "property.colorWindow", encodeFloat)
	r.level = newProp(actor, "property.colorLevel", encodeFloat)
	r.colorMap = newProp(lut, "preset", encodeString)

	r.setPipeline(mapper, actor, []engine.NodeID{lut}, []wire{
		{from: actor, slot: gfx.SlotMapper, to: mapper},
		{from: actor, slot: gfx.SlotColorTransfer, to: lut},
	})
	return r, nil
}

// Props returns the current props.
func (r *SliceRepresentation) Props() SliceProps { return r.props }

// Update replaces the props and schedules a sync.
func (r *SliceRepresentation) Update(p SliceProps) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("slice %s: %w", r.key, err)
	}
	r.props = p
	r.declared = p.Visible
	r.schedule()
	return nil
}

// Sync implements engine.Component.
func (r *SliceRepresentation) Sync() error {
	return r.sync(func() error {
		v := r.view
		p := r.props
		return errors.Join(
			r.mode.push(v, ir.ValidSliceAxes[p.Axis]),
			r.index.push(v, p.Index),
			r.window.push(v, p.ColorWindow),
			r.level.push(v, p.ColorLevel),
			r.colorMap.push(v, p.ColorMap),
		)
	})
}
