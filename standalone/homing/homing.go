// Package homing drives each axis to its endstop and re-establishes the
// logical coordinate system from the physical limit location.
package homing

import (
	"errors"

	"homefw/core"
	"homefw/standalone"
)

// SearchDistance is the nominal search displacement in micrometers. Moves of
// this size are expected to be cut short by an endstop.
const SearchDistance int32 = 1000000

// deltaCoarseBackoff is the retract after the all-tower probe, in micrometers
const deltaCoarseBackoff int32 = 5000

var (
	ErrUnsupportedKinematics = errors.New("homing: unsupported kinematics")
	ErrNoKinematicsBypass    = errors.New("homing: delta homing needs a queue with kinematics bypass")
)

// MotionQueue is the executor the homing controller drives
type MotionQueue interface {
	// EnqueueSearchMove queues a move to t. With stopOnTrigger the move is
	// truncated once any masked endstop reports contact.
	EnqueueSearchMove(t standalone.AxisTarget, mask standalone.EndstopMask, stopOnTrigger bool) error

	// WaitForDrain blocks until every queued move has finished or been truncated
	WaitForDrain() error

	// ResetReferenceFrame resynchronizes the executor with a rewritten logical position
	ResetReferenceFrame()
}

// KinematicsBypass is implemented by queues that can drive tower actuators directly
type KinematicsBypass interface {
	SetBypassKinematics(bypass bool)
}

// DeltaQueue is a motion queue usable for delta homing
type DeltaQueue interface {
	MotionQueue
	KinematicsBypass
}

// Homer is the entry point used by the command parser
type Homer interface {
	// Home runs the full homing sequence and returns once it has completed
	Home() error
}

// New selects the homing strategy for the configured kinematics
func New(cfg *standalone.MachineConfig, queue MotionQueue, state *standalone.PositionState, diag core.DiagWriter) (Homer, error) {
	switch cfg.Kinematics {
	case "", "cartesian":
		return NewCartesian(cfg, queue, state, diag), nil
	case "delta":
		dq, ok := queue.(DeltaQueue)
		if !ok {
			return nil, ErrNoKinematicsBypass
		}
		return NewDelta(cfg, dq, state, diag), nil
	default:
		return nil, ErrUnsupportedKinematics
	}
}

// controller holds what every sequencer shares: the queue, the position
// state and the diagnostic output
type controller struct {
	queue MotionQueue
	state *standalone.PositionState
	diag  core.DiagWriter
}

func (c *controller) report(msg string) {
	if c.diag != nil {
		c.diag(msg)
		return
	}
	core.Diag(msg)
}

// move enqueues one move and waits for the queue to drain
func (c *controller) move(t standalone.AxisTarget, mask standalone.EndstopMask, stopOnTrigger bool) error {
	if err := c.queue.EnqueueSearchMove(t, mask, stopOnTrigger); err != nil {
		return err
	}
	return c.queue.WaitForDrain()
}
