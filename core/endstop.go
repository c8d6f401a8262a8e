// Endstop handling for GPIO-based limit switches
// Samples a set of endstops while a search move runs and reports when the
// armed condition holds for SampleCount consecutive samples.
package core

import "errors"

// MaxEndstops is the number of endstop slots (one bit per axis-direction)
const MaxEndstops = 8

// Default sampling parameters (1MHz timer)
const (
	DefaultSampleTicks = 15  // Spacing between oversamples
	DefaultRestTicks   = 100 // Spacing between check cycles
	DefaultSampleCount = 4   // Consecutive samples required
)

var (
	ErrEndstopSlot   = errors.New("endstop slot out of range")
	ErrEndstopArmed  = errors.New("endstop set already armed")
	ErrNoEndstopMask = errors.New("endstop mask selects no configured endstop")
)

type endstopPin struct {
	pin    GPIOPin
	invert bool
}

// EndstopSet samples every configured endstop for the motion queue
type EndstopSet struct {
	pins    [MaxEndstops]endstopPin
	present uint8

	// Sampling parameters in timer ticks
	SampleTicks uint32
	RestTicks   uint32
	SampleCount uint8

	timer         Timer
	armed         bool
	mask          uint8
	stopOnTrigger bool
	remaining     uint8
	nextWake      uint32
	onTrigger     func(mask uint8)
}

// NewEndstopSet creates an empty endstop set with default sampling
func NewEndstopSet() *EndstopSet {
	s := &EndstopSet{
		SampleTicks: DefaultSampleTicks,
		RestTicks:   DefaultRestTicks,
		SampleCount: DefaultSampleCount,
	}
	s.timer.Handler = s.event
	return s
}

// Configure assigns a pin to an endstop slot and sets up the input
func (s *EndstopSet) Configure(slot uint8, pin GPIOPin, invert, pullUp bool) error {
	if slot >= MaxEndstops {
		return ErrEndstopSlot
	}

	var err error
	if pullUp {
		err = MustGPIO().ConfigureInputPullUp(pin)
	} else {
		err = MustGPIO().ConfigureInputPullDown(pin)
	}
	if err != nil {
		return err
	}

	s.pins[slot] = endstopPin{pin: pin, invert: invert}
	s.present |= 1 << slot
	return nil
}

// Present returns the mask of configured endstops
func (s *EndstopSet) Present() uint8 {
	return s.present
}

// Status returns the mask of configured endstops currently reading triggered
func (s *EndstopSet) Status() uint8 {
	var status uint8
	for slot := uint8(0); slot < MaxEndstops; slot++ {
		bit := uint8(1) << slot
		if s.present&bit != 0 && s.read(slot) {
			status |= bit
		}
	}
	return status
}

// read returns true when the endstop in slot reads triggered
func (s *EndstopSet) read(slot uint8) bool {
	p := s.pins[slot]
	return MustGPIO().ReadPin(p.pin) != p.invert
}

// Arm starts sampling the masked endstops. With stopOnTrigger the callback
// fires once any masked endstop triggers; otherwise it fires once all masked
// endstops read released.
func (s *EndstopSet) Arm(mask uint8, stopOnTrigger bool, callback func(mask uint8)) error {
	if s.armed {
		return ErrEndstopArmed
	}
	mask &= s.present
	if mask == 0 {
		return ErrNoEndstopMask
	}

	s.armed = true
	s.mask = mask
	s.stopOnTrigger = stopOnTrigger
	s.remaining = s.SampleCount
	s.onTrigger = callback

	s.timer.WakeTime = GetTime() + s.RestTicks
	s.timer.Handler = s.event
	ScheduleTimer(&s.timer)
	return nil
}

// Disarm stops sampling without firing the callback
func (s *EndstopSet) Disarm() {
	if !s.armed {
		return
	}
	CancelTimer(&s.timer)
	s.armed = false
	s.onTrigger = nil
}

// Armed reports whether sampling is active
func (s *EndstopSet) Armed() bool {
	return s.armed
}

// matches evaluates the armed condition against the current pin levels
func (s *EndstopSet) matches() bool {
	triggered := s.Status() & s.mask
	if s.stopOnTrigger {
		return triggered != 0
	}
	return triggered == 0
}

// event is the first-stage check that looks for a potential trigger
func (s *EndstopSet) event(t *Timer) uint8 {
	if !s.armed {
		return SF_DONE
	}

	nextWake := t.WakeTime + s.RestTicks
	if !s.matches() {
		t.WakeTime = nextWake
		return SF_RESCHEDULE
	}

	// Potential trigger detected - start oversampling
	s.nextWake = nextWake
	s.remaining = s.SampleCount
	t.Handler = s.oversample
	return s.oversample(t)
}

// oversample confirms the trigger by taking consecutive samples
func (s *EndstopSet) oversample(t *Timer) uint8 {
	if !s.armed {
		return SF_DONE
	}

	if !s.matches() {
		t.Handler = s.event
		t.WakeTime = s.nextWake
		s.remaining = s.SampleCount
		return SF_RESCHEDULE
	}

	if s.remaining > 1 {
		s.remaining--
		t.WakeTime += s.SampleTicks
		return SF_RESCHEDULE
	}

	// All samples confirmed
	callback := s.onTrigger
	fired := s.Status() & s.mask
	s.armed = false
	s.onTrigger = nil
	t.Handler = s.event
	if callback != nil {
		callback(fired)
	}
	return SF_DONE
}
