package homing

import (
	"homefw/core"
	"homefw/standalone"
)

var towerNames = [3]string{"A", "B", "C"}

// Delta homes the three towers of a delta machine against their top endstops.
// Tower A moves on the X actuator, B on Y and C on Z.
type Delta struct {
	controller
	bypass   KinematicsBypass
	geometry *standalone.DeltaGeometry

	coarseFeed  uint32
	retractFeed uint32
	towers      [3]Feedrates
}

// NewDelta builds the tower sequence. geometry is read at Home time so M666
// adjustments apply to the next run.
func NewDelta(cfg *standalone.MachineConfig, queue DeltaQueue, state *standalone.PositionState, diag core.DiagWriter) *Delta {
	h := &Delta{
		controller:  controller{queue: queue, state: state, diag: diag},
		bypass:      queue,
		geometry:    &cfg.Delta,
		coarseFeed:  cfg.Axis(standalone.X).MaxFeedrate,
		retractFeed: cfg.Axis(standalone.X).SearchFeedrate,
	}
	for i := range h.towers {
		h.towers[i] = AxisFeedrates(cfg, standalone.Axis(i))
	}
	return h
}

// Home runs the coarse all-tower probe and then calibrates each tower
func (h *Delta) Home() error {
	h.bypass.SetBypassKinematics(true)
	defer h.bypass.SetBypassKinematics(false)

	h.queue.ResetReferenceFrame()
	if err := h.queue.WaitForDrain(); err != nil {
		return err
	}
	h.report("Homing...")

	// probe from zero so every tower travels the full 2h
	h.reconcileXYZ(0, 0, 0)

	height := standalone.Millimeters(h.geometry.Height)

	// all towers up until any endstop is hit
	t := h.state.Start
	t.Axis[standalone.X] = 2 * height
	t.Axis[standalone.Y] = 2 * height
	t.Axis[standalone.Z] = 2 * height
	t.F = h.coarseFeed
	mask := standalone.XMaxEndstop | standalone.YMaxEndstop | standalone.ZMaxEndstop
	if err := h.move(t, mask, true); err != nil {
		return err
	}

	for a := standalone.X; a <= standalone.Z; a++ {
		t.Axis[a] -= deltaCoarseBackoff
	}
	t.F = h.retractFeed
	if err := h.move(t, 0, false); err != nil {
		return err
	}
	h.reconcileXYZ(0, 0, 0)

	for i := range h.towers {
		if err := h.homeTower(i, height); err != nil {
			return err
		}
	}

	h.bypass.SetBypassKinematics(false)
	h.report("Homing Complete.")
	h.reconcileXYZ(0, 0, height)
	return nil
}

// homeTower drives one tower into its endstop, backs off if the search was
// fast, then applies the tower's endstop adjustment
func (h *Delta) homeTower(i int, height int32) error {
	axis := standalone.Axis(i)
	feed := h.towers[i]
	mask := standalone.EndstopBit(axis, standalone.Positive)

	h.report("Tower " + towerNames[i] + "...")

	t := h.state.Start
	t.Axis[axis] = 2 * height
	t.F = feed.First()
	if err := h.move(t, mask, true); err != nil {
		return err
	}
	h.report("Hit...")

	if feed.TwoPhase() {
		t.Axis[axis] = -2 * height
		t.F = feed.Slow
		if err := h.move(t, mask, false); err != nil {
			return err
		}
		h.report("Back off...")
	}

	t.Axis[axis] += standalone.Millimeters(h.geometry.EndstopAdjust[i])
	t.F = feed.Slow
	if err := h.move(t, 0, false); err != nil {
		return err
	}
	h.report("Adjust...")

	h.reconcileXYZ(0, 0, 0)
	return nil
}
