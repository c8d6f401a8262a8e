package stepgen

import (
	"errors"

	"homefw/core"
	"homefw/standalone"
)

// minStepInterval bounds the step rate of a single stepper (ticks)
const minStepInterval = 20

var ErrNoBackend = errors.New("stepgen: no stepper backend")

// Stepper represents a single stepper motor
type Stepper struct {
	name    string
	config  standalone.AxisConfig
	backend core.StepperBackend

	enPin    core.GPIOPin
	hasEnPin bool

	// Current state
	position  int64 // Current position in steps
	targetPos int64 // Target position in steps

	// Step generation
	nextStepTime uint32     // Time for next step
	stepInterval uint32     // Interval between steps (ticks)
	stepTimer    core.Timer // Timer for step generation
	active       bool       // Is stepper currently moving
}

// NewStepper creates a new stepper motor controller. A nil backend uses the
// platform factory, falling back to GPIO bit-banging.
func NewStepper(name string, config standalone.AxisConfig, backend core.StepperBackend) *Stepper {
	if backend == nil {
		backend = core.NewStepperBackend()
	}
	if backend == nil {
		backend = &core.GPIOStepperBackend{}
	}

	stepper := &Stepper{
		name:    name,
		config:  config,
		backend: backend,
	}
	stepper.stepTimer.Handler = stepper.stepHandler
	return stepper
}

// Name returns the axis name the stepper was created for
func (s *Stepper) Name() string {
	return s.name
}

// Backend returns the step pulse backend
func (s *Stepper) Backend() core.StepperBackend {
	return s.backend
}

// InitPins initializes the GPIO pins for this stepper
func (s *Stepper) InitPins() error {
	stepPin, err := core.LookupPin(s.config.StepPin)
	if err != nil {
		return err
	}
	dirPin, err := core.LookupPin(s.config.DirPin)
	if err != nil {
		return err
	}
	if err := s.backend.Init(uint8(stepPin), uint8(dirPin), false, s.config.InvertDir); err != nil {
		return err
	}

	// Get enable pin (optional)
	if s.config.EnablePin != "" {
		enPin, err := core.LookupPin(s.config.EnablePin)
		if err != nil {
			return err
		}
		if err := core.MustGPIO().ConfigureOutput(enPin); err != nil {
			return err
		}
		s.enPin = enPin
		s.hasEnPin = true

		// Disable motor initially
		s.Disable()
	}

	return nil
}

// Enable enables the stepper motor
func (s *Stepper) Enable() {
	if s.hasEnPin {
		_ = core.MustGPIO().SetPin(s.enPin, !s.config.InvertEnable)
	}
}

// Disable disables the stepper motor
func (s *Stepper) Disable() {
	if s.hasEnPin {
		_ = core.MustGPIO().SetPin(s.enPin, s.config.InvertEnable)
	}
}

// MoveBy schedules a constant velocity move of steps at stepsPerSecond
func (s *Stepper) MoveBy(steps int64, stepsPerSecond float64) {
	s.Halt()
	if steps == 0 {
		return
	}
	s.targetPos = s.position + steps

	// Set direction (true = reverse)
	s.backend.SetDirection(steps < 0)

	// Calculate step interval (constant velocity)
	if stepsPerSecond > 0 {
		s.stepInterval = uint32(float64(core.TimerFreq) / stepsPerSecond)
	} else {
		s.stepInterval = core.TimerFreq // Very slow if velocity is 0
	}
	if s.stepInterval < minStepInterval {
		s.stepInterval = minStepInterval
	}

	// Enable motor
	s.Enable()

	// Schedule first step
	s.active = true
	s.nextStepTime = core.GetTime() + s.stepInterval
	s.stepTimer.WakeTime = s.nextStepTime
	core.ScheduleTimer(&s.stepTimer)
}

// stepHandler is called by the scheduler to generate step pulses
func (s *Stepper) stepHandler(timer *core.Timer) uint8 {
	if !s.active || s.position == s.targetPos {
		s.active = false
		return core.SF_DONE
	}

	s.backend.Step()

	// Update position
	if s.targetPos > s.position {
		s.position++
	} else {
		s.position--
	}

	if s.position == s.targetPos {
		s.active = false
		return core.SF_DONE
	}

	// Schedule next step
	s.nextStepTime += s.stepInterval
	timer.WakeTime = s.nextStepTime
	return core.SF_RESCHEDULE
}

// Halt truncates the current move at the step already taken
func (s *Stepper) Halt() {
	core.CancelTimer(&s.stepTimer)
	if s.active {
		s.backend.Stop()
	}
	s.active = false
	s.targetPos = s.position
}

// Position returns the current position in steps
func (s *Stepper) Position() int64 {
	return s.position
}

// SetPosition sets the step counter (for homing, etc.)
func (s *Stepper) SetPosition(steps int64) {
	s.position = steps
	s.targetPos = steps
}

// StepsPerMM returns the configured resolution
func (s *Stepper) StepsPerMM() float64 {
	return s.config.StepsPerMM
}

// MicronsToSteps converts a micrometer position to steps, rounding to nearest
func (s *Stepper) MicronsToSteps(um int32) int64 {
	v := float64(um) * s.config.StepsPerMM / 1000.0
	if v < 0 {
		return int64(v - 0.5)
	}
	return int64(v + 0.5)
}

// StepsToMicrons converts a step count to micrometers
func (s *Stepper) StepsToMicrons(steps int64) int32 {
	return int32(float64(steps) * 1000.0 / s.config.StepsPerMM)
}

// IsActive returns whether the stepper is currently moving
func (s *Stepper) IsActive() bool {
	return s.active
}
