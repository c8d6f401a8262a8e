package kinematics

import (
	"errors"

	"homefw/standalone"
)

// ErrKinematicsBypassRequired is returned by kinematics that can only move
// their actuators directly
var ErrKinematicsBypassRequired = errors.New("kinematics bypass required")

// Kinematics defines the interface for coordinate transformations
type Kinematics interface {
	// Name returns the configuration name of the kinematics
	Name() string

	// CalcPosition converts a logical position to actuator positions (micrometers)
	CalcPosition(pos standalone.AxisTarget) ([standalone.NumAxes]int32, error)

	// GetAxisNames returns the names of axes controlled by this kinematics
	GetAxisNames() []string

	// CheckLimits validates that a position is within configured limits
	CheckLimits(pos standalone.AxisTarget) error

	// CheckAxisLimits validates a single axis coordinate in micrometers
	CheckAxisLimits(a standalone.Axis, um int32) error
}

// New creates the kinematics named in the configuration
func New(config *standalone.MachineConfig) (Kinematics, error) {
	switch config.Kinematics {
	case "", "cartesian":
		return NewCartesian(config)
	case "delta":
		return NewDelta(config)
	default:
		return nil, errors.New("unknown kinematics " + config.Kinematics)
	}
}

// AxisLimits represents position limits for an axis in micrometers
type AxisLimits struct {
	Min    int32
	Max    int32
	HasMin bool
	HasMax bool
}

// Contains reports whether um is inside the configured limits
func (l AxisLimits) Contains(um int32) bool {
	if l.HasMin && um < l.Min {
		return false
	}
	if l.HasMax && um > l.Max {
		return false
	}
	return true
}

func limitsFor(axis standalone.AxisConfig) AxisLimits {
	var l AxisLimits
	if axis.MinPosition != nil {
		l.Min = standalone.Millimeters(*axis.MinPosition)
		l.HasMin = true
	}
	if axis.MaxPosition != nil {
		l.Max = standalone.Millimeters(*axis.MaxPosition)
		l.HasMax = true
	}
	return l
}

func requireAxes(config *standalone.MachineConfig) error {
	for a := standalone.X; a <= standalone.Z; a++ {
		if _, ok := config.Axes[a.String()]; !ok {
			return errors.New(string(a.Letter()) + " axis not configured")
		}
	}
	return nil
}

var errOutOfLimits = errors.New("position out of limits")
