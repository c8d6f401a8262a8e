//go:build rp2040

package main

import (
	"machine"

	"homefw/core"
)

// RPGPIODriver implements core.GPIODriver on the RP2040 pins. GPIO numbers
// map directly to machine.Pin.
type RPGPIODriver struct {
	configured map[core.GPIOPin]machine.Pin
}

func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{configured: make(map[core.GPIOPin]machine.Pin)}
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	if pin > 29 {
		return core.ErrInvalidPin
	}
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: mode})
	d.configured[pin] = p
	return nil
}

func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

func (d *RPGPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPulldown)
}

// SetPin drives an output, configuring it first if needed
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.configured[pin]
	if !ok {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		p = d.configured[pin]
	}
	p.Set(value)
	return nil
}

// ReadPin returns false for unconfigured pins
func (d *RPGPIODriver) ReadPin(pin core.GPIOPin) bool {
	p, ok := d.configured[pin]
	if !ok {
		return false
	}
	return p.Get()
}
