// Package firmware wires the standalone G-code front end to the motion queue
// and the homing controller.
package firmware

import (
	"errors"

	"homefw/core"
	"homefw/standalone"
	"homefw/standalone/config"
	"homefw/standalone/gcode"
	"homefw/standalone/homing"
	"homefw/standalone/kinematics"
	"homefw/standalone/planner"
)

// Status is the coarse machine state shown on a status indicator
type Status uint8

const (
	StatusIdle Status = iota
	StatusHoming
	StatusError
)

// Manager coordinates all standalone mode components
type Manager struct {
	config      *standalone.MachineConfig
	state       *standalone.PositionState
	parser      *gcode.Parser
	interpreter *gcode.Interpreter
	planner     *planner.Planner
	kinematics  kinematics.Kinematics
	homer       homing.Homer

	// Serial interface
	outputBuffer []byte

	idle     func()
	onStatus func(Status)

	// Status
	initialized bool
	running     bool
}

// NewManager creates a new standalone mode manager from JSON configuration
func NewManager(configData []byte) (*Manager, error) {
	// Load configuration
	cfg, err := config.LoadConfig(configData)
	if err != nil {
		return nil, err
	}

	return NewManagerWithConfig(cfg)
}

// NewManagerWithConfig creates a manager with an existing config
func NewManagerWithConfig(cfg *standalone.MachineConfig) (*Manager, error) {
	mgr := &Manager{
		config:       cfg,
		state:        &standalone.PositionState{},
		parser:       gcode.NewParser(),
		outputBuffer: make([]byte, 0, 256),
	}

	return mgr, nil
}

// SetIdle sets the function run while the motion queue drains. Platforms
// refresh their clock and dispatch timers here.
func (m *Manager) SetIdle(idle func()) {
	m.idle = idle
	if m.planner != nil {
		m.planner.Idle = idle
	}
}

// SetStatusHook registers a callback for status changes
func (m *Manager) SetStatusHook(hook func(Status)) {
	m.onStatus = hook
}

// Initialize sets up all components. The GPIO driver must be registered first.
func (m *Manager) Initialize() error {
	if m.initialized {
		return errors.New("already initialized")
	}

	warnings, err := config.Validate(m.config)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		m.SendResponse("// warning: " + w + "\n")
	}

	// Create kinematics based on config
	m.kinematics, err = kinematics.New(m.config)
	if err != nil {
		return err
	}

	// Create planner
	m.planner = planner.NewPlanner(m.config, m.kinematics, m.state)
	m.planner.Idle = m.idle

	if err := m.planner.InitSteppers(); err != nil {
		return err
	}
	if err := m.planner.InitEndstops(); err != nil {
		return err
	}

	// Homing strategy is fixed by the kinematics
	m.homer, err = homing.New(m.config, m.planner, m.state, m.respond)
	if err != nil {
		return err
	}

	// Create interpreter
	m.interpreter = gcode.NewInterpreter(m.config, m.state, m.planner, m.homer, m.kinematics, m.respond)

	m.initialized = true
	return nil
}

// ProcessLine processes a line of G-code
func (m *Manager) ProcessLine(line string) error {
	if !m.initialized {
		return errors.New("manager not initialized")
	}

	// Parse G-code
	cmd, err := m.parser.ParseLine(line)
	if err != nil {
		return err
	}
	if cmd == nil {
		return nil
	}

	homingCmd := cmd.Type == 'G' && cmd.Number == 28
	if homingCmd {
		m.setStatus(StatusHoming)
	}

	err = m.interpreter.Execute(cmd)

	switch {
	case core.IsShutdown():
		m.setStatus(StatusError)
	case homingCmd && err != nil:
		m.setStatus(StatusError)
	case homingCmd:
		m.setStatus(StatusIdle)
	}
	return err
}

// ProcessByte processes a single byte of input (for serial streaming). Each
// complete line is answered with "ok" or an "Error:" line.
func (m *Manager) ProcessByte(b byte) {
	line, ok := m.parser.Feed(b)
	if !ok {
		return
	}

	// Remove trailing whitespace
	for len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
		line = line[:len(line)-1]
	}
	if len(line) == 0 {
		return
	}

	if err := m.ProcessLine(line); err != nil {
		m.SendResponse("Error: " + err.Error() + "\n")
		return
	}

	// Send "ok" response
	m.SendResponse("ok\n")
}

// SendResponse queues a response to be sent to the host
func (m *Manager) SendResponse(response string) {
	m.outputBuffer = append(m.outputBuffer, []byte(response)...)
}

func (m *Manager) respond(line string) {
	m.SendResponse(line + "\n")
}

// GetOutput returns any pending output and clears the buffer
func (m *Manager) GetOutput() []byte {
	if len(m.outputBuffer) == 0 {
		return nil
	}

	output := make([]byte, len(m.outputBuffer))
	copy(output, m.outputBuffer)
	m.outputBuffer = m.outputBuffer[:0]
	return output
}

// Start begins standalone operation
func (m *Manager) Start() error {
	if !m.initialized {
		return errors.New("manager not initialized")
	}

	m.running = true
	m.setStatus(StatusIdle)
	m.SendResponse("homefw ready (" + m.kinematics.Name() + ")\n")
	return nil
}

// Stop halts all operation
func (m *Manager) Stop() {
	m.running = false
	if m.planner != nil {
		m.planner.ClearQueue()
	}
}

// IsRunning returns whether the manager is running
func (m *Manager) IsRunning() bool {
	return m.running
}

// State returns the shared position state
func (m *Manager) State() *standalone.PositionState {
	return m.state
}

// Planner returns the motion queue, nil before Initialize
func (m *Manager) Planner() *planner.Planner {
	return m.planner
}

// Interpreter returns the G-code interpreter, nil before Initialize
func (m *Manager) Interpreter() *gcode.Interpreter {
	return m.interpreter
}

// EmergencyStop halts motion and enters shutdown
func (m *Manager) EmergencyStop() {
	m.running = false
	if m.planner != nil {
		m.planner.EmergencyStop("emergency stop")
	}
	m.setStatus(StatusError)
}

func (m *Manager) setStatus(s Status) {
	if m.onStatus != nil {
		m.onStatus(s)
	}
}
