//go:build rp2040

package pio

import (
	"homefw/core"
)

// RP2040 has 2 PIO blocks with 4 state machines each
var (
	pioAllocations = [2][4]bool{} // [pioNum][smNum]
	nextPIONum     = uint8(0)
	nextSMNum      = uint8(0)
)

// InitSteppers registers the backend factory used when steppers are created
func InitSteppers() {
	core.SetStepperBackendFactory(newBackend)
}

// newBackend hands out PIO state machines, then falls back to SIO
func newBackend() core.StepperBackend {
	pioNum, smNum, ok := allocatePIO()
	if !ok {
		return &SIOStepperBackend{}
	}
	return NewPIOStepperBackend(pioNum, smNum)
}

// allocatePIO returns the next free state machine
func allocatePIO() (uint8, uint8, bool) {
	for i := 0; i < 8; i++ {
		pioNum := nextPIONum
		smNum := nextSMNum

		nextSMNum++
		if nextSMNum >= 4 {
			nextSMNum = 0
			nextPIONum = (nextPIONum + 1) % 2
		}

		if !pioAllocations[pioNum][smNum] {
			pioAllocations[pioNum][smNum] = true
			return pioNum, smNum, true
		}
	}
	return 0, 0, false
}
