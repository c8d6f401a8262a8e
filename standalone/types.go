package standalone

import "math"

// Axis indexes the components of an AxisTarget
type Axis int

const (
	X Axis = iota
	Y
	Z
	E // Extruder, never displaced by homing
	NumAxes
)

// String returns the lowercase axis name used in configuration
func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	case E:
		return "e"
	default:
		return "?"
	}
}

// Letter returns the G-code letter for the axis
func (a Axis) Letter() byte {
	switch a {
	case X:
		return 'X'
	case Y:
		return 'Y'
	case Z:
		return 'Z'
	case E:
		return 'E'
	default:
		return '?'
	}
}

// Direction is the sign of a search along an axis
type Direction int

const (
	Negative Direction = -1
	Positive Direction = 1
)

// String returns "min" or "max" for the endstop side
func (d Direction) String() string {
	if d < 0 {
		return "min"
	}
	return "max"
}

// AxisTarget is a position in integer micrometers plus a feed rate (mm/min)
type AxisTarget struct {
	Axis [NumAxes]int32
	F    uint32
}

// EndstopMask selects endstops, one bit per axis-direction pair
type EndstopMask uint8

const (
	XMinEndstop EndstopMask = 1 << iota
	XMaxEndstop
	YMinEndstop
	YMaxEndstop
	ZMinEndstop
	ZMaxEndstop
)

// EndstopBit returns the mask bit for an axis and search direction
func EndstopBit(a Axis, d Direction) EndstopMask {
	if a < X || a > Z {
		return 0
	}
	shift := uint(a) * 2
	if d > 0 {
		shift++
	}
	return EndstopMask(1) << shift
}

// EndstopName returns the configuration key for an axis and direction, e.g. "x_min"
func EndstopName(a Axis, d Direction) string {
	return a.String() + "_" + d.String()
}

// PositionState holds the logical position shared by the motion queue, the
// G-code interpreter and the homing controller.
type PositionState struct {
	Start AxisTarget // Logical position (queue startpoint)
	Next  AxisTarget // Target of the command being parsed
}

// SetAxis writes the same value to the logical and pending positions
func (s *PositionState) SetAxis(a Axis, um int32) {
	s.Start.Axis[a] = um
	s.Next.Axis[a] = um
}

// SetAll overwrites both positions for every positional axis
func (s *PositionState) SetAll(t AxisTarget) {
	for a := X; a < NumAxes; a++ {
		s.SetAxis(a, t.Axis[a])
	}
}

// Millimeters converts a configured millimeter value to micrometers
func Millimeters(mm float64) int32 {
	return int32(math.Round(mm * 1000.0))
}

// AxisConfig represents configuration for a single axis
type AxisConfig struct {
	StepPin      string  `json:"step_pin" toml:"step_pin" yaml:"step_pin"`
	DirPin       string  `json:"dir_pin" toml:"dir_pin" yaml:"dir_pin"`
	EnablePin    string  `json:"enable_pin" toml:"enable_pin" yaml:"enable_pin"`
	StepsPerMM   float64 `json:"steps_per_mm" toml:"steps_per_mm" yaml:"steps_per_mm"`
	InvertDir    bool    `json:"invert_dir" toml:"invert_dir" yaml:"invert_dir"`
	InvertEnable bool    `json:"invert_enable" toml:"invert_enable" yaml:"invert_enable"`

	MaxFeedrate      uint32   `json:"max_feedrate" toml:"max_feedrate" yaml:"max_feedrate"`                // mm/min
	SearchFeedrate   uint32   `json:"search_feedrate" toml:"search_feedrate" yaml:"search_feedrate"`       // mm/min
	EndstopClearance uint32   `json:"endstop_clearance" toml:"endstop_clearance" yaml:"endstop_clearance"` // micrometers
	MinPosition      *float64 `json:"min_position,omitempty" toml:"min_position" yaml:"min_position"`      // mm
	MaxPosition      *float64 `json:"max_position,omitempty" toml:"max_position" yaml:"max_position"`      // mm
}

// EndstopConfig represents configuration for an endstop
type EndstopConfig struct {
	Pin    string `json:"pin" toml:"pin" yaml:"pin"`
	Invert bool   `json:"invert" toml:"invert" yaml:"invert"`
	PullUp bool   `json:"pull_up" toml:"pull_up" yaml:"pull_up"`
}

// DeltaGeometry holds the tower geometry used by delta homing
type DeltaGeometry struct {
	Height        float64    `json:"height" toml:"height" yaml:"height"`                         // mm
	EndstopAdjust [3]float64 `json:"endstop_adjust" toml:"endstop_adjust" yaml:"endstop_adjust"` // mm, towers A/B/C
}

// MachineConfig represents the complete machine configuration
type MachineConfig struct {
	Mode         string                   `json:"mode" toml:"mode" yaml:"mode"`
	Kinematics   string                   `json:"kinematics" toml:"kinematics" yaml:"kinematics"` // "cartesian" or "delta"
	Acceleration float64                  `json:"acceleration" toml:"acceleration" yaml:"acceleration"` // mm/s^2
	Axes         map[string]AxisConfig    `json:"axes" toml:"axes" yaml:"axes"`
	Endstops     map[string]EndstopConfig `json:"endstops" toml:"endstops" yaml:"endstops"`
	Delta        DeltaGeometry            `json:"delta" toml:"delta" yaml:"delta"`
}

// Axis returns the configuration for an axis, or the zero value
func (c *MachineConfig) Axis(a Axis) AxisConfig {
	return c.Axes[a.String()]
}

// HasEndstop reports whether an endstop is configured for the axis and direction
func (c *MachineConfig) HasEndstop(a Axis, d Direction) bool {
	es, ok := c.Endstops[EndstopName(a, d)]
	return ok && es.Pin != ""
}

// GCodeCommand represents a parsed G-code command
type GCodeCommand struct {
	Type       byte             // 'G', 'M', 'T'
	Number     int              // Command number (e.g., 0 for G0, 28 for G28)
	Parameters map[byte]float64 // Parameters (X, Y, Z, E, F, S, etc.)
	Comment    string           // Comment text
}

// HasParameter checks if a parameter exists in the command
func (cmd *GCodeCommand) HasParameter(param byte) bool {
	_, ok := cmd.Parameters[param]
	return ok
}

// GetParameter gets a parameter value, or returns the default if not present
func (cmd *GCodeCommand) GetParameter(param byte, defaultValue float64) float64 {
	if val, ok := cmd.Parameters[param]; ok {
		return val
	}
	return defaultValue
}
