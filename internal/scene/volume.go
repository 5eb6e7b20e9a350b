package scene

import (
	"errors"
	"fmt"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/gfx"
	"github.com/roach88/scenesync/internal/ir"
)

// VolumeRepresentation ray-casts an image through a volume mapper. Colour
// comes from a lookup table over ScalarRange and opacity from a piecewise
// function.
type VolumeRepresentation struct {
	base
	props VolumeProps

	sampleDistance *prop[float64]
	shade          *prop[bool]
	colorMap       *prop[string]
	colorRange     *prop[[2]float64]
	opacity        *prop[[]float64]
}

func newVolume(v *View, key string, p VolumeProps) (*VolumeRepresentation, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("volume %s: %w", key, err)
	}
	r := &VolumeRepresentation{props: p.clone()}
	if err := r.init(v, r, key, ir.RepresentationVolume); err != nil {
		return nil, err
	}
	r.declared = p.Visible

	mapper := r.addNode(gfx.KindVolumeMapper, "mapper")
	actor := r.addNode(gfx.KindVolume, "actor")
	lut := r.addNode(gfx.KindLookupTable, "lut")
	pwf := r.addNode(gfx.KindPiecewiseFunction, "opacity")

	r.sampleDistance = newProp(mapper, "sampleDistance", encodeFloat)
	r.shade = newProp(actor, "property.shade", encodeBool)
	r.colorMap = newProp(lut, "preset", encodeString)
	r.colorRange = newProp(lut, "mappingRange", encodeRange)
	r.opacity = newListProp(pwf, "points")

	r.setPipeline(mapper, actor, []engine.NodeID{lut, pwf}, []wire{
		{from: actor, slot: gfx.SlotMapper, to: mapper},
		{from: actor, slot: gfx.SlotColorTransfer, to: lut},
		{from: actor, slot: gfx.SlotScalarOpacity, to: pwf},
	})
	return r, nil
}

// Props returns a copy of the current props.
func (r *VolumeRepresentation) Props() VolumeProps { return r.props.clone() }

// Update replaces the props and schedules a sync.
func (r *VolumeRepresentation) Update(p VolumeProps) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("volume %s: %w", r.key, err)
	}
	r.props = p.clone()
	r.declared = p.Visible
	r.schedule()
	return nil
}

// Sync implements engine.Component.
func (r *VolumeRepresentation) Sync() error {
	return r.sync(func() error {
		v := r.view
		p := r.props
		return errors.Join(
			r.sampleDistance.push(v, p.SampleDistance),
			r.shade.push(v, p.Shade),
			r.colorMap.push(v, p.ColorMap),
			r.colorRange.push(v, p.ScalarRange),
			r.opacity.push(v, p.OpacityPoints),
		)
	})
}
