package core

import "sync/atomic"

var shutdownFlag uint32

// TryShutdown latches the firmware into shutdown. Motion is refused until
// ResetFirmwareState is called.
func TryShutdown(reason string) {
	if atomic.CompareAndSwapUint32(&shutdownFlag, 0, 1) {
		RecordTiming(EvtEmergency, 0, 0, 0)
		Diag("!! shutdown: " + reason)
	}
}

// IsShutdown returns true if the firmware is in shutdown state
func IsShutdown() bool {
	return atomic.LoadUint32(&shutdownFlag) != 0
}

// ResetFirmwareState clears the shutdown latch and the event log
func ResetFirmwareState() {
	atomic.StoreUint32(&shutdownFlag, 0)
	ClearTimingRing()
}
