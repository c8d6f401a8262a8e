package homing

import (
	"math"

	"homefw/standalone"
)

// FastFeedrate returns the fastest search feed rate (mm/min) from which the
// carriage can still stop within the endstop clearance:
//
//	s = 1/2 * a * t^2; t = v / a  <==> v = sqrt(2 * a * s)
//
// accel is in mm/s^2 and clearance in micrometers. ok is false when no
// clearance is configured.
func FastFeedrate(accel float64, clearance uint32) (feed uint32, ok bool) {
	if clearance == 0 || accel <= 0 {
		return 0, false
	}
	return uint32(60.0 * math.Sqrt(2*accel*float64(clearance)/1000.0)), true
}

// Feedrates are the two search speeds of an axis in mm/min
type Feedrates struct {
	Fast uint32 // Derived from clearance; zero when absent
	Slow uint32 // Configured search feed rate
}

// AxisFeedrates derives the search speeds for an axis from configuration
func AxisFeedrates(cfg *standalone.MachineConfig, a standalone.Axis) Feedrates {
	axis := cfg.Axis(a)
	fast, _ := FastFeedrate(cfg.Acceleration, axis.EndstopClearance)
	return Feedrates{Fast: fast, Slow: axis.SearchFeedrate}
}

// TwoPhase reports whether the fast search beats the slow one, which makes a
// slow second pass necessary
func (f Feedrates) TwoPhase() bool {
	return f.Fast > f.Slow
}

// First returns the feed rate of the initial search move
func (f Feedrates) First() uint32 {
	if f.TwoPhase() {
		return f.Fast
	}
	return f.Slow
}
