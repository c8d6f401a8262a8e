package homing

import "homefw/standalone"

// reconcile adopts um as the logical coordinate of axis a. Callers must have
// drained the queue first.
func (c *controller) reconcile(a standalone.Axis, um int32) {
	c.state.SetAxis(a, um)
	c.queue.ResetReferenceFrame()
}

// reconcileXYZ adopts a position for all three positional axes at once
func (c *controller) reconcileXYZ(x, y, z int32) {
	c.state.SetAxis(standalone.X, x)
	c.state.SetAxis(standalone.Y, y)
	c.state.SetAxis(standalone.Z, z)
	c.queue.ResetReferenceFrame()
}
