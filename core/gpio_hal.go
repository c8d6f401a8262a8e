package core

import (
	"errors"
	"strconv"
	"strings"
)

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// ErrInvalidPin is returned when a pin name cannot be resolved
var ErrInvalidPin = errors.New("invalid pin name")

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// ConfigureInputPullDown configures a pin as a digital input with pull-down resistor
	ConfigureInputPullDown(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// ReadPin reads the current pin state
	ReadPin(pin GPIOPin) bool
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// GetGPIODriver returns the registered driver, or nil.
func GetGPIODriver() GPIODriver {
	return gpioDriver
}

// MustGPIO returns the configured driver or panics if missing.
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		panic("GPIO driver not configured")
	}
	return gpioDriver
}

// LookupPin resolves a config pin name like "gpio14" or "14" to a pin number
func LookupPin(name string) (GPIOPin, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "gpio")
	if s == "" {
		return 0, ErrInvalidPin
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, ErrInvalidPin
	}
	return GPIOPin(n), nil
}
