package kinematics

import (
	"errors"

	"homefw/standalone"
)

// Cartesian implements basic Cartesian kinematics (XYZ 1:1 mapping)
type Cartesian struct {
	limits [standalone.NumAxes]AxisLimits
}

// NewCartesian creates a new Cartesian kinematics instance
func NewCartesian(config *standalone.MachineConfig) (*Cartesian, error) {
	// Validate required axes
	if err := requireAxes(config); err != nil {
		return nil, err
	}

	k := &Cartesian{}
	for a := standalone.X; a <= standalone.Z; a++ {
		k.limits[a] = limitsFor(config.Axis(a))
	}
	return k, nil
}

// Name returns "cartesian"
func (k *Cartesian) Name() string {
	return "cartesian"
}

// CalcPosition converts XYZ coordinates to stepper positions
// For Cartesian, this is a 1:1 mapping
func (k *Cartesian) CalcPosition(pos standalone.AxisTarget) ([standalone.NumAxes]int32, error) {
	return pos.Axis, nil
}

// GetAxisNames returns the axis names for Cartesian kinematics
func (k *Cartesian) GetAxisNames() []string {
	return []string{"x", "y", "z", "e"}
}

// CheckLimits validates that a position is within configured limits
func (k *Cartesian) CheckLimits(pos standalone.AxisTarget) error {
	for a := standalone.X; a <= standalone.Z; a++ {
		if err := k.CheckAxisLimits(a, pos.Axis[a]); err != nil {
			return err
		}
	}
	return nil
}

// CheckAxisLimits validates one axis against its configured limits
func (k *Cartesian) CheckAxisLimits(a standalone.Axis, um int32) error {
	if a < standalone.X || a > standalone.Z || k.limits[a].Contains(um) {
		return nil
	}
	return errors.New(string(a.Letter()) + " position out of limits")
}
