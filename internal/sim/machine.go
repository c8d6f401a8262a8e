// Package sim is a host-side stand-in for the firmware motion queue. It moves
// carriages instantly, with endstop switches at fixed physical positions and a
// stopping distance derived from the configured acceleration.
package sim

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"homefw/standalone"
)

var (
	ErrShutdown       = errors.New("sim: machine shut down")
	ErrBypassRequired = errors.New("sim: delta moves require kinematics bypass")
	ErrUnknownEndstop = errors.New("sim: mask selects a switch that is not installed")
	ErrUndrainedFrame = errors.New("sim: reference frame reset with moves pending")
)

const (
	defaultHysteresis   = 50
	defaultSwitchTravel = 10000
)

// Switch is an endstop at a physical carriage position (micrometers)
type Switch struct {
	Axis standalone.Axis
	Dir  standalone.Direction
	At   int32
}

// Move is one executed move
type Move struct {
	Target        standalone.AxisTarget
	Mask          standalone.EndstopMask
	StopOnTrigger bool
	Bypass        bool
	Triggered     bool  // Ended by its endstop condition
	Overtravel    int32 // Travel past the trigger point while braking
	From, To      [standalone.NumAxes]int32
	Duration      time.Duration
}

// Machine simulates carriages, switches and the move queue
type Machine struct {
	config   *standalone.MachineConfig
	state    *standalone.PositionState
	log      *slog.Logger
	switches map[standalone.EndstopMask]Switch

	// Hysteresis is the travel back past a switch before it releases
	Hysteresis int32

	carriage [standalone.NumAxes]int32
	queued   [standalone.NumAxes]int32 // actuator position at the end of the queue
	pending  []Move
	done     []Move
	resets   int
	bypass   bool
	shutdown bool
	elapsed  time.Duration
}

// NewMachine creates a simulator sharing the position state with its caller
func NewMachine(config *standalone.MachineConfig, state *standalone.PositionState, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		config:     config,
		state:      state,
		log:        log,
		switches:   make(map[standalone.EndstopMask]Switch),
		Hysteresis: defaultHysteresis,
	}
}

// Install places a switch for every configured endstop. offsets gives the
// physical position of each switch by endstop name ("x_min") in micrometers;
// missing entries sit 10mm from the carriage on their side.
func (m *Machine) Install(offsets map[string]int32) {
	for a := standalone.X; a <= standalone.Z; a++ {
		for _, d := range []standalone.Direction{standalone.Negative, standalone.Positive} {
			if !m.config.HasEndstop(a, d) {
				continue
			}
			at, ok := offsets[standalone.EndstopName(a, d)]
			if !ok {
				at = int32(d) * defaultSwitchTravel
			}
			m.Place(Switch{Axis: a, Dir: d, At: at})
		}
	}
}

// Place installs one switch
func (m *Machine) Place(sw Switch) {
	m.switches[standalone.EndstopBit(sw.Axis, sw.Dir)] = sw
}

// SetCarriage moves a carriage without recording a move
func (m *Machine) SetCarriage(a standalone.Axis, um int32) {
	m.carriage[a] = um
	m.queued[a] = um
}

// Carriage returns the physical carriage position
func (m *Machine) Carriage(a standalone.Axis) int32 {
	return m.carriage[a]
}

// EnqueueSearchMove queues a move relative to the previously queued target
func (m *Machine) EnqueueSearchMove(t standalone.AxisTarget, mask standalone.EndstopMask, stopOnTrigger bool) error {
	if m.shutdown {
		return ErrShutdown
	}
	if m.config.Kinematics == "delta" && !m.bypass {
		return ErrBypassRequired
	}
	for bit := standalone.EndstopMask(1); bit != 0 && bit <= mask; bit <<= 1 {
		if mask&bit == 0 {
			continue
		}
		if _, ok := m.switches[bit]; !ok {
			return ErrUnknownEndstop
		}
	}

	mv := Move{Target: t, Mask: mask, StopOnTrigger: stopOnTrigger, Bypass: m.bypass}
	from := m.state.Start.Axis
	for a := range mv.To {
		mv.From[a] = m.queued[a]
		mv.To[a] = m.queued[a] + t.Axis[a] - from[a]
	}
	m.queued = mv.To
	m.pending = append(m.pending, mv)
	m.state.Start = t
	return nil
}

// WaitForDrain executes every pending move
func (m *Machine) WaitForDrain() error {
	for len(m.pending) > 0 {
		if m.shutdown {
			m.pending = nil
			return ErrShutdown
		}
		mv := m.pending[0]
		m.pending = m.pending[1:]

		// queued displacement starts from the real carriage position
		start := m.carriage
		for a := range mv.To {
			mv.To[a] = start[a] + mv.To[a] - mv.From[a]
		}
		mv.From = start
		m.execute(&mv)
		m.done = append(m.done, mv)

		m.log.Debug("sim move",
			"mask", uint8(mv.Mask),
			"stop_on_trigger", mv.StopOnTrigger,
			"triggered", mv.Triggered,
			"feed", mv.Target.F,
			"x", m.carriage[standalone.X], "y", m.carriage[standalone.Y], "z", m.carriage[standalone.Z])
	}
	return nil
}

// execute moves the carriages, truncating at the endstop condition
func (m *Machine) execute(mv *Move) {
	f := 1.0
	if mv.Mask != 0 {
		if cut, ok := m.cutoff(mv); ok {
			f = cut
			mv.Triggered = true
		}
	}

	var travel [standalone.NumAxes]float64
	var dist float64
	for a := range travel {
		travel[a] = float64(mv.To[a]-mv.From[a]) * f
		if a <= int(standalone.Z) {
			dist += travel[a] * travel[a]
		}
	}
	dist = math.Sqrt(dist)

	feed := float64(mv.Target.F) / 60.0 // mm/s
	if mv.Triggered && feed > 0 && dist > 0 {
		// braking distance v^2 / 2a along the direction of travel
		full := math.Sqrt(sq3(mv.To, mv.From))
		brake := feed * feed / (2 * m.config.Acceleration) * 1000.0
		for a := range travel {
			travel[a] += float64(mv.To[a]-mv.From[a]) / full * brake
		}
		dist += brake
		mv.Overtravel = int32(math.Round(brake))
	}
	for a := range travel {
		m.carriage[a] = mv.From[a] + int32(math.Round(travel[a]))
	}
	if feed > 0 {
		mv.Duration = time.Duration(dist / 1000.0 / feed * float64(time.Second))
		m.elapsed += mv.Duration
	}
}

func sq3(a, b [standalone.NumAxes]int32) float64 {
	var s float64
	for i := standalone.X; i <= standalone.Z; i++ {
		d := float64(a[i] - b[i])
		s += d * d
	}
	return s
}

// cutoff returns the fraction of the move at which the endstop condition
// first holds
func (m *Machine) cutoff(mv *Move) (float64, bool) {
	if mv.StopOnTrigger {
		best, found := 2.0, false
		for bit, sw := range m.switches {
			if mv.Mask&bit == 0 {
				continue
			}
			if f, ok := m.crossing(mv, sw, sw.At); ok && f < best {
				best, found = f, true
			}
		}
		return best, found
	}

	// every masked switch must release
	worst := 0.0
	for bit, sw := range m.switches {
		if mv.Mask&bit == 0 {
			continue
		}
		if !m.triggeredAt(sw, mv.From[sw.Axis]) {
			continue
		}
		release := sw.At - int32(sw.Dir)*m.Hysteresis
		f, ok := m.crossing(mv, Switch{Axis: sw.Axis, Dir: -sw.Dir}, release)
		if !ok {
			return 0, false
		}
		if f > worst {
			worst = f
		}
	}
	return worst, true
}

// crossing returns the move fraction at which the carriage reaches at while
// travelling in sw.Dir, or 0 if it is already there
func (m *Machine) crossing(mv *Move, sw Switch, at int32) (float64, bool) {
	from, to := mv.From[sw.Axis], mv.To[sw.Axis]
	if m.triggeredAt(Switch{Axis: sw.Axis, Dir: sw.Dir, At: at}, from) {
		return 0, true
	}
	d := float64(to - from)
	if d == 0 || (d > 0) != (sw.Dir > 0) {
		return 0, false
	}
	f := float64(at-from) / d
	if f > 1 {
		return 0, false
	}
	return f, true
}

// triggeredAt reports whether a carriage at pos presses the switch
func (m *Machine) triggeredAt(sw Switch, pos int32) bool {
	if sw.Dir > 0 {
		return pos >= sw.At
	}
	return pos <= sw.At
}

// ResetReferenceFrame aligns the queue with the rewritten logical position
func (m *Machine) ResetReferenceFrame() {
	if len(m.pending) > 0 {
		m.log.Warn("reference frame reset with pending moves", "err", ErrUndrainedFrame)
	}
	m.queued = m.carriage
	m.resets++
}

// SetBypassKinematics makes moves address tower carriages directly
func (m *Machine) SetBypassKinematics(bypass bool) {
	m.bypass = bypass
}

// BypassKinematics reports the bypass flag
func (m *Machine) BypassKinematics() bool {
	return m.bypass
}

// EndstopStatus returns the switches pressed by the current carriages
func (m *Machine) EndstopStatus() standalone.EndstopMask {
	var status standalone.EndstopMask
	for bit, sw := range m.switches {
		if m.triggeredAt(sw, m.carriage[sw.Axis]) {
			status |= bit
		}
	}
	return status
}

// EndstopsPresent returns the installed switches
func (m *Machine) EndstopsPresent() standalone.EndstopMask {
	var present standalone.EndstopMask
	for bit := range m.switches {
		present |= bit
	}
	return present
}

// EmergencyStop drops pending moves and refuses new ones
func (m *Machine) EmergencyStop(reason string) {
	m.log.Error("emergency stop", "reason", reason)
	m.shutdown = true
	m.pending = nil
}

// LastMoveTriggered reports whether the last executed move hit its endstop condition
func (m *Machine) LastMoveTriggered() bool {
	if len(m.done) == 0 {
		return false
	}
	return m.done[len(m.done)-1].Triggered
}

// Moves returns every executed move
func (m *Machine) Moves() []Move {
	return m.done
}

// Resets returns how often the reference frame was reset
func (m *Machine) Resets() int {
	return m.resets
}

// Elapsed returns the simulated motion time
func (m *Machine) Elapsed() time.Duration {
	return m.elapsed
}

// Untriggered counts endstop moves that ran to completion
func (m *Machine) Untriggered() int {
	n := 0
	for _, mv := range m.done {
		if mv.Mask != 0 && !mv.Triggered {
			n++
		}
	}
	return n
}
