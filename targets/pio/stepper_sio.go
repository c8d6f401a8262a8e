//go:build rp2040

package pio

import (
	"device/arm"
	"device/rp"
	"machine"
)

// SIOStepperBackend toggles step and direction pins through the single-cycle
// IO block. Used once every PIO state machine is taken.
type SIOStepperBackend struct {
	stepMask   uint32
	dirMask    uint32
	invertStep bool
	invertDir  bool
}

// Init configures both pins as outputs at their idle level
func (b *SIOStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	b.stepMask = 1 << stepPin
	b.dirMask = 1 << dirPin
	b.invertStep = invertStep
	b.invertDir = invertDir

	machine.Pin(stepPin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.Pin(dirPin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.Stop()
	b.SetDirection(false)
	return nil
}

// Step emits one pulse of about 100ns
func (b *SIOStepperBackend) Step() {
	if b.invertStep {
		rp.SIO.GPIO_OUT_CLR.Set(b.stepMask)
	} else {
		rp.SIO.GPIO_OUT_SET.Set(b.stepMask)
	}
	// 13 NOPs ~104ns @ 125MHz
	arm.Asm("nop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop")
	b.Stop()
}

// SetDirection drives the direction pin. true is reverse.
func (b *SIOStepperBackend) SetDirection(dir bool) {
	if dir != b.invertDir {
		rp.SIO.GPIO_OUT_SET.Set(b.dirMask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(b.dirMask)
	}
	// dir-to-step setup time, 20ns for TMC drivers
	arm.Asm("nop\nnop\nnop")
}

// Stop returns the step pin to its idle level
func (b *SIOStepperBackend) Stop() {
	if b.invertStep {
		rp.SIO.GPIO_OUT_SET.Set(b.stepMask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(b.stepMask)
	}
}

func (b *SIOStepperBackend) GetName() string {
	return "SIO"
}
