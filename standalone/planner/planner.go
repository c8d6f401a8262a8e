package planner

import (
	"errors"
	"math"
	"math/bits"

	"homefw/core"
	"homefw/standalone"
	"homefw/standalone/kinematics"
	"homefw/standalone/stepgen"
)

// MaxQueueLen is the depth of the move FIFO
const MaxQueueLen = 32

// pollTicks is the completion check period while a move runs
const pollTicks = 1000

var (
	ErrQueueFull      = errors.New("planner: move queue full")
	ErrShutdown       = errors.New("planner: firmware shut down")
	ErrDrainTimeout   = errors.New("planner: queue did not drain")
	ErrUnknownEndstop = errors.New("planner: mask selects an unconfigured endstop")
)

// move is a queued displacement in actuator steps
type move struct {
	steps         [standalone.NumAxes]int64
	seconds       float64
	mask          standalone.EndstopMask
	stopOnTrigger bool
}

// Planner is the firmware motion queue. Moves are relative to the position
// at enqueue time, so a truncated move does not shift later targets.
type Planner struct {
	config     *standalone.MachineConfig
	kinematics kinematics.Kinematics
	state      *standalone.PositionState
	steppers   [standalone.NumAxes]*stepgen.Stepper
	endstops   *core.EndstopSet

	// Current state
	moveQueue     []move
	executing     bool
	current       move
	triggered     bool
	lastTriggered bool
	bypass        bool
	pollTimer     core.Timer

	// Idle runs while WaitForDrain blocks. Defaults to core.ProcessTimers.
	Idle func()

	// DrainLimit bounds the Idle calls of one WaitForDrain, 0 is unbounded
	DrainLimit int

	// OnMoveDone is called from timer context when a move finishes
	OnMoveDone func(mask standalone.EndstopMask, triggered bool)
}

// NewPlanner creates a new motion planner
func NewPlanner(config *standalone.MachineConfig, kin kinematics.Kinematics, state *standalone.PositionState) *Planner {
	p := &Planner{
		config:     config,
		kinematics: kin,
		state:      state,
		endstops:   core.NewEndstopSet(),
		moveQueue:  make([]move, 0, MaxQueueLen),
	}
	p.pollTimer.Handler = p.poll
	return p
}

// InitSteppers initializes stepper motors for all configured axes
func (p *Planner) InitSteppers() error {
	for a := standalone.X; a < standalone.NumAxes; a++ {
		axisConfig, ok := p.config.Axes[a.String()]
		if !ok {
			continue // Skip if axis not configured
		}

		stepper := stepgen.NewStepper(a.String(), axisConfig, nil)
		if err := stepper.InitPins(); err != nil {
			return err
		}
		p.steppers[a] = stepper
	}
	return nil
}

// InitEndstops configures an input for every endstop in the configuration
func (p *Planner) InitEndstops() error {
	for a := standalone.X; a <= standalone.Z; a++ {
		for _, d := range []standalone.Direction{standalone.Negative, standalone.Positive} {
			es, ok := p.config.Endstops[standalone.EndstopName(a, d)]
			if !ok || es.Pin == "" {
				continue
			}
			pin, err := core.LookupPin(es.Pin)
			if err != nil {
				return err
			}
			slot := uint8(bits.TrailingZeros8(uint8(standalone.EndstopBit(a, d))))
			if err := p.endstops.Configure(slot, pin, es.Invert, es.PullUp); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stepper returns the stepper driving an axis, or nil
func (p *Planner) Stepper(a standalone.Axis) *stepgen.Stepper {
	return p.steppers[a]
}

// EnqueueSearchMove queues a move to t. A non-zero mask arms the endstops:
// with stopOnTrigger the move ends when any masked endstop triggers,
// otherwise when all masked endstops read released.
func (p *Planner) EnqueueSearchMove(t standalone.AxisTarget, mask standalone.EndstopMask, stopOnTrigger bool) error {
	if core.IsShutdown() {
		return ErrShutdown
	}
	if len(p.moveQueue) >= MaxQueueLen {
		return ErrQueueFull
	}
	if uint8(mask)&^p.endstops.Present() != 0 {
		return ErrUnknownEndstop
	}

	from, err := p.actuatorPosition(p.state.Start)
	if err != nil {
		return err
	}
	to, err := p.actuatorPosition(t)
	if err != nil {
		return err
	}

	m := move{mask: mask, stopOnTrigger: stopOnTrigger}
	for a := standalone.X; a < standalone.NumAxes; a++ {
		if s := p.steppers[a]; s != nil {
			m.steps[a] = s.MicronsToSteps(to[a]) - s.MicronsToSteps(from[a])
		}
	}
	m.seconds = p.moveDuration(from, to, t.F)

	p.moveQueue = append(p.moveQueue, m)
	p.state.Start = t
	core.RecordTiming(core.EvtSearchMove, uint8(mask), t.Axis[standalone.X], int32(t.F))

	if !p.executing {
		p.startNext()
		p.pollTimer.WakeTime = core.GetTime() + pollTicks
		core.ScheduleTimer(&p.pollTimer)
	}
	return nil
}

// actuatorPosition maps a logical position through the kinematics unless bypassed
func (p *Planner) actuatorPosition(t standalone.AxisTarget) ([standalone.NumAxes]int32, error) {
	if p.bypass {
		return t.Axis, nil
	}
	return p.kinematics.CalcPosition(t)
}

// moveDuration returns the seconds a move takes at feed mm/min, slowed so no
// axis exceeds its maximum feed rate
func (p *Planner) moveDuration(from, to [standalone.NumAxes]int32, feed uint32) float64 {
	var sq float64
	for a := standalone.X; a <= standalone.Z; a++ {
		d := float64(to[a]-from[a]) / 1000.0
		sq += d * d
	}
	dist := math.Sqrt(sq)
	if dist == 0 {
		dist = math.Abs(float64(to[standalone.E]-from[standalone.E]) / 1000.0)
	}

	var seconds float64
	if feed > 0 {
		seconds = dist / (float64(feed) / 60.0)
	}
	for a := standalone.X; a < standalone.NumAxes; a++ {
		maxFeed := p.config.Axis(a).MaxFeedrate
		if maxFeed == 0 {
			continue
		}
		d := math.Abs(float64(to[a]-from[a]) / 1000.0)
		if t := d / (float64(maxFeed) / 60.0); t > seconds {
			seconds = t
		}
	}
	return seconds
}

// startNext pops the next move and starts its steppers
func (p *Planner) startNext() bool {
	if len(p.moveQueue) == 0 {
		p.executing = false
		return false
	}

	m := p.moveQueue[0]
	p.moveQueue = p.moveQueue[1:]
	p.current = m
	p.executing = true
	p.triggered = false

	if m.mask != 0 {
		if err := p.endstops.Arm(uint8(m.mask), m.stopOnTrigger, p.onEndstop); err != nil {
			core.Diag("endstop arm failed: " + err.Error())
		}
	}

	seconds := m.seconds
	if seconds <= 0 {
		seconds = 1.0 / core.TimerFreq
	}
	for a, steps := range m.steps {
		s := p.steppers[a]
		if s == nil || steps == 0 {
			continue
		}
		n := steps
		if n < 0 {
			n = -n
		}
		s.MoveBy(steps, float64(n)/seconds)
	}
	return true
}

// onEndstop truncates the running move
func (p *Planner) onEndstop(fired uint8) {
	p.triggered = true
	p.haltSteppers()
	core.RecordTiming(core.EvtTrigger, fired, 0, 0)
}

// poll finishes the running move once every stepper is idle
func (p *Planner) poll(t *core.Timer) uint8 {
	if !p.executing {
		return core.SF_DONE
	}
	for _, s := range p.steppers {
		if s != nil && s.IsActive() {
			t.WakeTime += pollTicks
			return core.SF_RESCHEDULE
		}
	}

	p.endstops.Disarm()
	p.lastTriggered = p.triggered
	core.RecordTiming(core.EvtMoveDone, uint8(p.current.mask), boolToInt(p.triggered), 0)
	if p.OnMoveDone != nil {
		p.OnMoveDone(p.current.mask, p.triggered)
	}

	if p.startNext() {
		t.WakeTime += pollTicks
		return core.SF_RESCHEDULE
	}
	return core.SF_DONE
}

func (p *Planner) haltSteppers() {
	for _, s := range p.steppers {
		if s != nil {
			s.Halt()
		}
	}
}

// WaitForDrain blocks until all moves are complete
func (p *Planner) WaitForDrain() error {
	idle := p.Idle
	if idle == nil {
		idle = core.ProcessTimers
	}

	for i := 0; !p.IsIdle(); i++ {
		if core.IsShutdown() {
			return ErrShutdown
		}
		if p.DrainLimit > 0 && i >= p.DrainLimit {
			return ErrDrainTimeout
		}
		idle()
	}
	if core.IsShutdown() {
		return ErrShutdown
	}
	core.RecordTiming(core.EvtDrain, 0, 0, 0)
	return nil
}

// IsIdle returns true if no moves are queued or executing
func (p *Planner) IsIdle() bool {
	return !p.executing && len(p.moveQueue) == 0
}

// ResetReferenceFrame sets the stepper counters from the logical position
func (p *Planner) ResetReferenceFrame() {
	pos, err := p.actuatorPosition(p.state.Start)
	if err != nil {
		pos = p.state.Start.Axis
	}
	for a, s := range p.steppers {
		if s != nil {
			s.SetPosition(s.MicronsToSteps(pos[a]))
		}
	}
	core.RecordTiming(core.EvtNewStart, 0, p.state.Start.Axis[standalone.X], p.state.Start.Axis[standalone.Z])
}

// SetBypassKinematics makes moves address actuators directly
func (p *Planner) SetBypassKinematics(bypass bool) {
	p.bypass = bypass
}

// BypassKinematics reports whether kinematics are bypassed
func (p *Planner) BypassKinematics() bool {
	return p.bypass
}

// EndstopStatus returns the mask of endstops currently reading triggered
func (p *Planner) EndstopStatus() standalone.EndstopMask {
	return standalone.EndstopMask(p.endstops.Status())
}

// EndstopsPresent returns the mask of configured endstops
func (p *Planner) EndstopsPresent() standalone.EndstopMask {
	return standalone.EndstopMask(p.endstops.Present())
}

// LastMoveTriggered reports whether the last finished move was ended by its
// endstop condition
func (p *Planner) LastMoveTriggered() bool {
	return p.lastTriggered
}

// ActuatorPosition returns the stepper positions in micrometers
func (p *Planner) ActuatorPosition() [standalone.NumAxes]int32 {
	var pos [standalone.NumAxes]int32
	for a, s := range p.steppers {
		if s != nil {
			pos[a] = s.StepsToMicrons(s.Position())
		}
	}
	return pos
}

// ClearQueue clears the move queue and stops all motion
func (p *Planner) ClearQueue() {
	p.moveQueue = p.moveQueue[:0]
	p.executing = false
	p.endstops.Disarm()
	core.CancelTimer(&p.pollTimer)
	p.haltSteppers()
}

// EmergencyStop halts motion and shuts the firmware down
func (p *Planner) EmergencyStop(reason string) {
	core.TryShutdown(reason)
	p.ClearQueue()
	for _, s := range p.steppers {
		if s != nil {
			s.Disable()
		}
	}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
