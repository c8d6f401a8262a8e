package core

// Timer frequencies for common MCUs
const (
	TimerFreq = 1000000 // RP2040 hardware timer runs at 1MHz
)

var systemTicks uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// AdvanceTime moves the system clock forward by ticks and runs any timers
// that became due. Used by hosted builds that have no hardware timer.
func AdvanceTime(ticks uint32) {
	setSystemTicks(getSystemTicks() + ticks)
	ProcessTimers()
}

// TimerInit drops any timers left from a previous run
func TimerInit() {
	ResetTimers()
}

// ProcessTimers processes scheduled timers
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
