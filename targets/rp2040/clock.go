//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"homefw/core"
)

// RP2040 timer peripheral, a 64-bit microsecond counter
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// GetHardwareTime returns the low 32 bits of the microsecond counter, which
// matches core.TimerFreq
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime copies the hardware time into the core timer
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
