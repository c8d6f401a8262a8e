package core

import "testing"

func TestTimersRunInWakeOrder(t *testing.T) {
	ResetTimers()
	SetTime(0)

	var order []int
	mk := func(id int, wake uint32) *Timer {
		return &Timer{WakeTime: wake, Handler: func(*Timer) uint8 {
			order = append(order, id)
			return SF_DONE
		}}
	}
	ScheduleTimer(mk(3, 300))
	ScheduleTimer(mk(1, 100))
	ScheduleTimer(mk(2, 200))

	if PendingTimers() != 3 {
		t.Fatalf("Expected 3 pending timers, got %d", PendingTimers())
	}

	AdvanceTime(250)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("Expected timers 1,2 to run, got %v", order)
	}

	AdvanceTime(100)
	if len(order) != 3 || order[2] != 3 {
		t.Errorf("Expected timer 3 to run last, got %v", order)
	}
}

func TestTimerReschedule(t *testing.T) {
	ResetTimers()
	SetTime(0)

	runs := 0
	timer := &Timer{WakeTime: 10}
	timer.Handler = func(tm *Timer) uint8 {
		runs++
		if runs == 3 {
			return SF_DONE
		}
		tm.WakeTime += 10
		return SF_RESCHEDULE
	}
	ScheduleTimer(timer)

	AdvanceTime(100)
	if runs != 3 {
		t.Errorf("Expected 3 runs, got %d", runs)
	}
	if PendingTimers() != 0 {
		t.Errorf("Expected no pending timers, got %d", PendingTimers())
	}
}

func TestScheduleTwiceMovesTimer(t *testing.T) {
	ResetTimers()
	SetTime(0)

	runs := 0
	timer := &Timer{WakeTime: 50, Handler: func(*Timer) uint8 { runs++; return SF_DONE }}
	ScheduleTimer(timer)
	timer.WakeTime = 500
	ScheduleTimer(timer)

	if PendingTimers() != 1 {
		t.Fatalf("Expected 1 pending timer, got %d", PendingTimers())
	}
	AdvanceTime(100)
	if runs != 0 {
		t.Error("Timer ran at its old wake time")
	}

	CancelTimer(timer)
	AdvanceTime(1000)
	if runs != 0 {
		t.Error("Cancelled timer ran")
	}
}

func TestTimerWraparound(t *testing.T) {
	ResetTimers()
	SetTime(0xFFFFFF00)

	ran := false
	ScheduleTimer(&Timer{WakeTime: 0x00000010, Handler: func(*Timer) uint8 { ran = true; return SF_DONE }})

	AdvanceTime(0x80)
	if ran {
		t.Error("Timer past the wrap ran early")
	}
	AdvanceTime(0x100)
	if !ran {
		t.Error("Timer past the wrap did not run")
	}
}
