package scene

import (
	"errors"
	"fmt"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// GeometryRepresentation draws a mesh as points, wireframe or surface.
// Scalars are coloured by a lookup table attached to the mapper.
type GeometryRepresentation struct {
	base
	props GeometryProps

	color       *prop[Color]
	opacity     *prop[float64]
	pointSize   *prop[float64]
	style       *prop[int]
	colorMap    *prop[string]
	scalarRange *prop[[2]float64]
}

func newGeometry(v *View, key string, p GeometryProps) (*GeometryRepresentation, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("geometry %s: %w", key, err)
	}
	r := &GeometryRepresentation{props: p}
	if err := r.init(v, r, key, ir.RepresentationGeometry); err != nil {
		return nil, err
	}
	r.declared = p.Visible

	mapper := r.addNode(gfx.KindGeometryMapper, "mapper")
	actor := r.addNode(gfx.KindActor, "actor")
	lut := r.addNode(gfx.KindLookupTable, "lut")

	r.color = newProp(actor, "property.color", encodeColor)
	r.opacity = newProp(actor, "property.opacity", encodeFloat)
	r.pointSize = newProp(actor, "property.pointSize", encodeFloat)
	r.style = newProp(actor, "property.representation", encodeInt)
	r.colorMap = newProp(lut, "preset", encodeString)
	r.scalarRange = newProp(mapper, "scalarRange", encodeRange)

	r.setPipeline(mapper, actor, []engine.NodeID{lut}, []wire{
		{from: actor, slot: gfx.SlotMapper, to: mapper},
		{from: mapper, slot: gfx.SlotLookupTable, to: lut},
	})
	return r, nil
}

// Props returns the current props.
func (r *GeometryRepresentation) Props() GeometryProps { return r.props }

// Update replaces the props and schedules a sync.
func (r *GeometryRepresentation) Update(p GeometryProps) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("geometry %s: %w", r.key, err)
	}
	r.props = p
	r.declared = p.Visible
	r.schedule()
	return nil
}

// Sync implements engine.Component.
func (r *GeometryRepresentation) Sync() error {
	return r.sync(func() error {
		v := r.view
		p := r.props
		return errors.Join(
			r.color.push(v, p.Color),
			r.opacity.push(v, p.Opacity),
			r.pointSize.push(v, p.PointSize),
			r.style.push(v, ir.ValidGeometryStyles[p.Style]),
			r.colorMap.push(v, p.ColorMap),
			r.scalarRange.push(v, p.ScalarRange),
		)
	})
}
