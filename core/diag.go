package core

// DiagWriter is a function type for writing diagnostic lines
type DiagWriter func(string)

// Event type codes for the timing ring
const (
	EvtSearchMove  = 1 // Search move started
	EvtTrigger     = 2 // Endstop condition confirmed
	EvtMoveDone    = 3 // Move finished or truncated
	EvtDrain       = 4 // Queue drained
	EvtNewStart    = 5 // Reference frame reset
	EvtEmergency   = 6 // Emergency stop
	TimingRingSize = 32
)

// TimingEvent captures a motion event for post-mortem analysis
type TimingEvent struct {
	EventType uint8
	Mask      uint8
	Clock     uint32
	Value1    int32
	Value2    int32
}

var (
	// diagWriter receives progress lines (homing status, reports)
	diagWriter DiagWriter

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
)

// SetDiagWriter sets the platform-specific diagnostic output function
func SetDiagWriter(writer DiagWriter) {
	diagWriter = writer
}

// Diag writes a progress line to the diagnostic output
func Diag(msg string) {
	if diagWriter != nil {
		diagWriter(msg)
	}
}

// RecordTiming captures an event in the ring buffer
func RecordTiming(eventType, mask uint8, value1, value2 int32) {
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Mask:      mask,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns recorded events from oldest to newest
func TimingEvents() []TimingEvent {
	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// DumpTimingRing writes the ring buffer to w, oldest event first
func DumpTimingRing(w DiagWriter) {
	if w == nil {
		return
	}

	w("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		var name string
		switch evt.EventType {
		case EvtSearchMove:
			name = "SEARCH_MOVE"
		case EvtTrigger:
			name = "TRIGGER"
		case EvtMoveDone:
			name = "MOVE_DONE"
		case EvtDrain:
			name = "DRAIN"
		case EvtNewStart:
			name = "NEW_START"
		case EvtEmergency:
			name = "EMERGENCY"
		default:
			name = "UNKNOWN"
		}
		w("[TIMING] " + name +
			" mask=" + itoa(int(evt.Mask)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + itoa(int(evt.Value1)) +
			" v2=" + itoa(int(evt.Value2)))
	}
	w("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
