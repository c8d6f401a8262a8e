package gcode

import (
	"errors"

	"homefw/core"
	"homefw/standalone"
	"homefw/standalone/homing"
	"homefw/standalone/kinematics"
)

var (
	ErrNotDelta  = errors.New("M666 requires delta kinematics")
	ErrNotHomed  = errors.New("axis not homed")
	ErrNoHomer   = errors.New("no homing controller")
	ErrUnhandled = errors.New("unsupported command")
	ErrBadHeight = errors.New("M666 H must be positive")
)

// Planner is the motion queue surface used by the interpreter
type Planner interface {
	homing.MotionQueue
	EndstopStatus() standalone.EndstopMask
	EndstopsPresent() standalone.EndstopMask
	EmergencyStop(reason string)
}

// axisHomer is implemented by homing strategies that can home one axis
type axisHomer interface {
	HomeAxis(a standalone.Axis) error
}

// Interpreter executes G-code commands
type Interpreter struct {
	config     *standalone.MachineConfig
	state      *standalone.PositionState
	planner    Planner // Interface to motion planner
	homer      homing.Homer
	kinematics kinematics.Kinematics

	absoluteMode bool
	relativeE    bool
	feedRate     uint32 // mm/min
	homed        [3]bool

	respond core.DiagWriter
}

// NewInterpreter creates a new G-code interpreter. Responses such as the
// M114 report are written to respond.
func NewInterpreter(config *standalone.MachineConfig, state *standalone.PositionState, planner Planner,
	homer homing.Homer, kin kinematics.Kinematics, respond core.DiagWriter) *Interpreter {
	interp := &Interpreter{
		config:       config,
		state:        state,
		planner:      planner,
		homer:        homer,
		kinematics:   kin,
		absoluteMode: true,
		respond:      respond,
	}
	interp.feedRate = config.Axis(standalone.X).SearchFeedrate
	if interp.feedRate == 0 {
		interp.feedRate = 600
	}
	return interp
}

// Execute executes a parsed G-code command
func (interp *Interpreter) Execute(cmd *standalone.GCodeCommand) error {
	if cmd == nil {
		return nil
	}

	switch cmd.Type {
	case 'G':
		return interp.executeG(cmd)
	case 'M':
		return interp.executeM(cmd)
	case 'T':
		// single extruder: tool changes are accepted and ignored
		return nil
	}

	return nil
}

// executeG handles G-codes
func (interp *Interpreter) executeG(cmd *standalone.GCodeCommand) error {
	switch cmd.Number {
	case 0, 1: // G0/G1 - Linear move
		return interp.doMove(cmd)
	case 28: // G28 - Home
		return interp.doHome(cmd)
	case 90: // G90 - Absolute positioning
		interp.absoluteMode = true
	case 91: // G91 - Relative positioning
		interp.absoluteMode = false
	case 92: // G92 - Set position
		return interp.doSetPosition(cmd)
	default:
		return ErrUnhandled
	}

	return nil
}

// executeM handles M-codes
func (interp *Interpreter) executeM(cmd *standalone.GCodeCommand) error {
	switch cmd.Number {
	case 82: // M82 - Absolute extrusion
		interp.relativeE = false
	case 83: // M83 - Relative extrusion
		interp.relativeE = true
	case 112: // M112 - Emergency stop
		interp.planner.EmergencyStop("M112")
	case 114: // M114 - Get current position
		return interp.reportPosition()
	case 119: // M119 - Endstop status
		interp.reportEndstops()
	case 122: // M122 - Motion event log
		core.DumpTimingRing(interp.write)
	case 666: // M666 - Delta endstop adjustment
		return interp.doDeltaAdjust(cmd)
	default:
		return ErrUnhandled
	}

	return nil
}

// doMove executes a linear move (G0/G1)
func (interp *Interpreter) doMove(cmd *standalone.GCodeCommand) error {
	current := interp.state.Start
	target := current

	// Update feedrate if specified
	if cmd.HasParameter('F') {
		interp.feedRate = uint32(cmd.GetParameter('F', 0))
	}

	for a := standalone.X; a <= standalone.Z; a++ {
		letter := a.Letter()
		if !cmd.HasParameter(letter) {
			continue
		}
		v := standalone.Millimeters(cmd.GetParameter(letter, 0))
		if interp.absoluteMode {
			target.Axis[a] = v
		} else {
			target.Axis[a] = current.Axis[a] + v
		}
	}

	// Handle extruder
	if cmd.HasParameter('E') {
		v := standalone.Millimeters(cmd.GetParameter('E', 0))
		if interp.relativeE || !interp.absoluteMode {
			target.Axis[standalone.E] = current.Axis[standalone.E] + v
		} else {
			target.Axis[standalone.E] = v
		}
	}
	target.F = interp.feedRate
	interp.state.Next = target

	// Skip if no movement
	if target.Axis == current.Axis {
		return nil
	}

	// Limits only bind axes that have been homed
	for a := standalone.X; a <= standalone.Z; a++ {
		if !interp.homed[a] {
			continue
		}
		if err := interp.kinematics.CheckAxisLimits(a, target.Axis[a]); err != nil {
			interp.state.Next = current
			return err
		}
	}

	if err := interp.planner.EnqueueSearchMove(target, 0, false); err != nil {
		interp.state.Next = current
		return err
	}
	return nil
}

// doHome executes homing (G28)
func (interp *Interpreter) doHome(cmd *standalone.GCodeCommand) error {
	if interp.homer == nil {
		return ErrNoHomer
	}

	var axes []standalone.Axis
	for a := standalone.X; a <= standalone.Z; a++ {
		if cmd.HasParameter(a.Letter()) {
			axes = append(axes, a)
		}
	}

	per, ok := interp.homer.(axisHomer)
	if len(axes) == 0 || !ok {
		// Home all axes
		if err := interp.homer.Home(); err != nil {
			return err
		}
		interp.homed = [3]bool{true, true, true}
		return nil
	}

	for _, a := range axes {
		if err := per.HomeAxis(a); err != nil {
			return err
		}
		interp.homed[a] = true
	}
	return nil
}

// doSetPosition sets the current position (G92). Without arguments every
// axis is zeroed.
func (interp *Interpreter) doSetPosition(cmd *standalone.GCodeCommand) error {
	if err := interp.planner.WaitForDrain(); err != nil {
		return err
	}

	given := false
	for a := standalone.X; a < standalone.NumAxes; a++ {
		letter := a.Letter()
		if cmd.HasParameter(letter) {
			interp.state.SetAxis(a, standalone.Millimeters(cmd.GetParameter(letter, 0)))
			given = true
		}
	}
	if !given {
		interp.state.SetAll(standalone.AxisTarget{})
	}

	interp.planner.ResetReferenceFrame()
	return nil
}

// doDeltaAdjust sets tower endstop adjustments and height (M666)
func (interp *Interpreter) doDeltaAdjust(cmd *standalone.GCodeCommand) error {
	if interp.config.Kinematics != "delta" {
		return ErrNotDelta
	}

	if cmd.HasParameter('H') && cmd.GetParameter('H', 0) <= 0 {
		return ErrBadHeight
	}

	geometry := &interp.config.Delta
	for i, letter := range []byte{'X', 'Y', 'Z'} {
		if cmd.HasParameter(letter) {
			geometry.EndstopAdjust[i] = cmd.GetParameter(letter, 0)
		}
	}
	if cmd.HasParameter('H') {
		geometry.Height = cmd.GetParameter('H', 0)
	}

	interp.write("M666 X" + formatMM(geometry.EndstopAdjust[0]) +
		" Y" + formatMM(geometry.EndstopAdjust[1]) +
		" Z" + formatMM(geometry.EndstopAdjust[2]) +
		" H" + formatMM(geometry.Height))
	return nil
}

// reportPosition writes the logical position once motion has finished (M114)
func (interp *Interpreter) reportPosition() error {
	if err := interp.planner.WaitForDrain(); err != nil {
		return err
	}

	pos := interp.state.Start.Axis
	interp.write("X:" + core.FormatMicrons(pos[standalone.X]) +
		" Y:" + core.FormatMicrons(pos[standalone.Y]) +
		" Z:" + core.FormatMicrons(pos[standalone.Z]) +
		" E:" + core.FormatMicrons(pos[standalone.E]))
	return nil
}

// reportEndstops writes the state of every configured endstop (M119)
func (interp *Interpreter) reportEndstops() {
	present := interp.planner.EndstopsPresent()
	status := interp.planner.EndstopStatus()

	line := ""
	for a := standalone.X; a <= standalone.Z; a++ {
		for _, d := range []standalone.Direction{standalone.Negative, standalone.Positive} {
			bit := standalone.EndstopBit(a, d)
			if present&bit == 0 {
				continue
			}
			if line != "" {
				line += " "
			}
			line += standalone.EndstopName(a, d) + ":"
			if status&bit != 0 {
				line += "TRIGGERED"
			} else {
				line += "open"
			}
		}
	}
	if line == "" {
		line = "no endstops"
	}
	interp.write(line)
}

// Homed reports which of X, Y and Z have been homed
func (interp *Interpreter) Homed() [3]bool {
	return interp.homed
}

// AbsoluteMode reports whether G90 is in effect
func (interp *Interpreter) AbsoluteMode() bool {
	return interp.absoluteMode
}

func (interp *Interpreter) write(line string) {
	if interp.respond != nil {
		interp.respond(line)
	}
}

// formatMM renders millimeters with three decimals
func formatMM(mm float64) string {
	return core.FormatMicrons(standalone.Millimeters(mm))
}
