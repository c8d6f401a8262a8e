package core

// StepperBackend defines the hardware abstraction for stepper control
// Implementations can use GPIO, PIO, or other methods
type StepperBackend interface {
	// Init initializes the stepper hardware
	Init(stepPin, dirPin uint8, invertStep, invertDir bool) error

	// Step generates a single step pulse
	// Should be fast (called from timer context)
	Step()

	// SetDirection sets the direction output
	// dir: true = reverse, false = forward
	SetDirection(dir bool)

	// Stop immediately halts stepping
	Stop()

	// GetName returns backend implementation name
	GetName() string
}

// StepperBackendInfo provides information about available backends
type StepperBackendInfo struct {
	Name          string
	MaxStepRate   uint32 // Maximum steps/second per axis
	MinPulseNs    uint32 // Minimum step pulse width (ns)
	TypicalJitter uint32 // Typical timing jitter (ns)
	CPUOverhead   uint8  // CPU overhead percentage (0-100)
}

// Backend factory function (set by platform-specific code)
var stepperBackendFactory func() StepperBackend

// SetStepperBackendFactory sets the factory used when steppers are created
func SetStepperBackendFactory(factory func() StepperBackend) {
	stepperBackendFactory = factory
}

// NewStepperBackend returns a backend from the registered factory, or nil
func NewStepperBackend() StepperBackend {
	if stepperBackendFactory == nil {
		return nil
	}
	return stepperBackendFactory()
}

// GPIOStepperBackend toggles step/dir pins through the registered GPIODriver
type GPIOStepperBackend struct {
	stepPin    GPIOPin
	dirPin     GPIOPin
	invertStep bool
	invertDir  bool
}

// Init configures the step and direction pins as outputs
func (b *GPIOStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	b.stepPin = GPIOPin(stepPin)
	b.dirPin = GPIOPin(dirPin)
	b.invertStep = invertStep
	b.invertDir = invertDir

	if err := MustGPIO().ConfigureOutput(b.stepPin); err != nil {
		return err
	}
	if err := MustGPIO().ConfigureOutput(b.dirPin); err != nil {
		return err
	}
	_ = MustGPIO().SetPin(b.stepPin, b.invertStep)
	return nil
}

// Step emits one pulse on the step pin
func (b *GPIOStepperBackend) Step() {
	_ = MustGPIO().SetPin(b.stepPin, !b.invertStep)
	_ = MustGPIO().SetPin(b.stepPin, b.invertStep)
}

// SetDirection drives the direction pin
func (b *GPIOStepperBackend) SetDirection(dir bool) {
	_ = MustGPIO().SetPin(b.dirPin, dir != b.invertDir)
}

// Stop is a no-op for bit-banged pins
func (b *GPIOStepperBackend) Stop() {}

// GetName returns backend implementation name
func (b *GPIOStepperBackend) GetName() string {
	return "GPIO"
}
