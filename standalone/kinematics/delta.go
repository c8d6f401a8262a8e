package kinematics

import (
	"homefw/standalone"
)

// Delta holds the tower geometry of a delta machine. Only direct actuator
// moves are supported, so every logical move requires the queue to bypass
// kinematics.
type Delta struct {
	geometry *standalone.DeltaGeometry
}

// NewDelta creates a delta kinematics instance sharing the config geometry
func NewDelta(config *standalone.MachineConfig) (*Delta, error) {
	if err := requireAxes(config); err != nil {
		return nil, err
	}
	return &Delta{geometry: &config.Delta}, nil
}

// Name returns "delta"
func (k *Delta) Name() string {
	return "delta"
}

// Geometry returns the live tower geometry
func (k *Delta) Geometry() *standalone.DeltaGeometry {
	return k.geometry
}

// CalcPosition always fails: tower positions are only reachable with the
// kinematics bypassed
func (k *Delta) CalcPosition(pos standalone.AxisTarget) ([standalone.NumAxes]int32, error) {
	return pos.Axis, ErrKinematicsBypassRequired
}

// GetAxisNames returns the tower names followed by the extruder
func (k *Delta) GetAxisNames() []string {
	return []string{"a", "b", "c", "e"}
}

// CheckLimits accepts positions below the homed height
func (k *Delta) CheckLimits(pos standalone.AxisTarget) error {
	return k.CheckAxisLimits(standalone.Z, pos.Axis[standalone.Z])
}

// CheckAxisLimits bounds Z by the tower height; towers have no other limits
func (k *Delta) CheckAxisLimits(a standalone.Axis, um int32) error {
	if a == standalone.Z && um > standalone.Millimeters(k.geometry.Height) {
		return errOutOfLimits
	}
	return nil
}
