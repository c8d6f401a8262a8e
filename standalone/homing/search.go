package homing

import (
	"homefw/standalone"
)

// Primitive is one search along a signed axis direction
type Primitive struct {
	Axis      standalone.Axis
	Dir       standalone.Direction
	Enabled   bool  // Endstop present (and, for max, a max coordinate configured)
	Reference int32 // Logical coordinate adopted at the endstop, micrometers
	Feed      Feedrates
}

// Name returns a label such as "x min"
func (p Primitive) Name() string {
	return p.Axis.String() + " " + p.Dir.String()
}

// NewPrimitive builds the search for one axis direction from configuration.
// A max-side endstop without a max coordinate yields a disabled primitive.
func NewPrimitive(cfg *standalone.MachineConfig, a standalone.Axis, d standalone.Direction) Primitive {
	p := Primitive{
		Axis:    a,
		Dir:     d,
		Enabled: cfg.HasEndstop(a, d),
		Feed:    AxisFeedrates(cfg, a),
	}

	axis := cfg.Axis(a)
	if d == standalone.Negative {
		if axis.MinPosition != nil {
			p.Reference = standalone.Millimeters(*axis.MinPosition)
		}
	} else {
		if axis.MaxPosition == nil {
			p.Enabled = false
		} else {
			p.Reference = standalone.Millimeters(*axis.MaxPosition)
		}
	}
	return p
}

// search runs a primitive: drive into the endstop, back off slowly if the
// first pass was fast, then adopt the reference coordinate
func (c *controller) search(p Primitive) error {
	if !p.Enabled {
		return nil
	}

	mask := standalone.EndstopBit(p.Axis, p.Dir)
	sign := int32(p.Dir)

	t := c.state.Start
	t.Axis[p.Axis] = sign * SearchDistance
	t.F = p.Feed.First()
	if err := c.move(t, mask, true); err != nil {
		return err
	}

	if p.Feed.TwoPhase() {
		// back off slowly until the switch releases
		t.Axis[p.Axis] = -sign * SearchDistance
		t.F = p.Feed.Slow
		if err := c.move(t, mask, false); err != nil {
			return err
		}
	}

	c.reconcile(p.Axis, p.Reference)
	return nil
}
