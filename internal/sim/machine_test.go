package sim

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"homefw/standalone"
	"homefw/standalone/config"
	"homefw/standalone/gcode"
	"homefw/standalone/homing"
	"homefw/standalone/kinematics"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func within(t *testing.T, name string, got, want, tol int32) {
	t.Helper()
	if got < want-tol || got > want+tol {
		t.Errorf("%s = %d, want %d±%d", name, got, want, tol)
	}
}

func TestCartesianHoming(t *testing.T) {
	cfg := config.DefaultCartesianConfig()
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Install(map[string]int32{"x_min": -30000, "y_min": -20000, "z_min": -5000})

	h, err := homing.New(cfg, m, state, func(string) {})
	if err != nil {
		t.Fatalf("homing.New: %v", err)
	}
	if err := h.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}

	// fast pass, slow release for each axis
	if got := len(m.Moves()); got != 6 {
		t.Fatalf("moves = %d, want 6", got)
	}
	if n := m.Untriggered(); n != 0 {
		t.Errorf("untriggered moves = %d", n)
	}
	if m.Resets() != 3 {
		t.Errorf("resets = %d, want 3", m.Resets())
	}

	within(t, "x carriage", m.Carriage(standalone.X), -30000+m.Hysteresis, 100)
	within(t, "y carriage", m.Carriage(standalone.Y), -20000+m.Hysteresis, 100)
	within(t, "z carriage", m.Carriage(standalone.Z), -5000+m.Hysteresis, 100)

	for a := standalone.X; a <= standalone.Z; a++ {
		if state.Start.Axis[a] != 0 {
			t.Errorf("%s logical = %d, want 0", a, state.Start.Axis[a])
		}
	}
	if m.EndstopStatus() != 0 {
		t.Errorf("switches still pressed: %#x", m.EndstopStatus())
	}
}

func TestFastPassStopsWithinClearance(t *testing.T) {
	cfg := config.DefaultCartesianConfig()
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Install(nil)

	h, _ := homing.New(cfg, m, state, func(string) {})
	if err := h.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	for i, mv := range m.Moves() {
		if !mv.StopOnTrigger {
			continue
		}
		a := standalone.Axis(i / 2)
		if clearance := int32(cfg.Axis(a).EndstopClearance); mv.Overtravel > clearance {
			t.Errorf("%s overtravel %d exceeds clearance %d", a, mv.Overtravel, clearance)
		}
	}
}

func TestRehomeFromAnywhere(t *testing.T) {
	cfg := config.DefaultCartesianConfig()
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Install(map[string]int32{"x_min": -30000, "y_min": -20000, "z_min": -5000})
	h, _ := homing.New(cfg, m, state, func(string) {})

	if err := h.Home(); err != nil {
		t.Fatal(err)
	}
	first := [3]int32{m.Carriage(standalone.X), m.Carriage(standalone.Y), m.Carriage(standalone.Z)}

	m.SetCarriage(standalone.X, 80000)
	state.SetAxis(standalone.X, 123456)
	if err := h.Home(); err != nil {
		t.Fatal(err)
	}
	for a := standalone.X; a <= standalone.Z; a++ {
		within(t, a.String(), m.Carriage(a), first[a], 2)
	}
}

func TestDeltaHoming(t *testing.T) {
	cfg := config.DefaultDeltaConfig()
	cfg.Delta.EndstopAdjust = [3]float64{-0.5, 0, 0.25}
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Install(map[string]int32{"x_max": 240000, "y_max": 250000, "z_max": 245000})

	var log []string
	h, err := homing.New(cfg, m, state, func(s string) { log = append(log, s) })
	if err != nil {
		t.Fatalf("homing.New: %v", err)
	}
	if err := h.Home(); err != nil {
		t.Fatalf("Home: %v", err)
	}
	if m.BypassKinematics() {
		t.Error("bypass still set")
	}
	if log[len(log)-1] != "Homing Complete." {
		t.Errorf("last report = %q", log[len(log)-1])
	}

	within(t, "tower A", m.Carriage(standalone.X), 240000+m.Hysteresis-500, 100)
	within(t, "tower B", m.Carriage(standalone.Y), 250000+m.Hysteresis, 100)
	within(t, "tower C", m.Carriage(standalone.Z), 245000+m.Hysteresis+250, 100)

	want := [3]int32{0, 0, standalone.Millimeters(cfg.Delta.Height)}
	for a := standalone.X; a <= standalone.Z; a++ {
		if state.Start.Axis[a] != want[a] {
			t.Errorf("%s logical = %d, want %d", a, state.Start.Axis[a], want[a])
		}
	}
}

func TestDeltaNeedsBypass(t *testing.T) {
	cfg := config.DefaultDeltaConfig()
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Install(nil)

	err := m.EnqueueSearchMove(standalone.AxisTarget{F: 600}, 0, false)
	if !errors.Is(err, ErrBypassRequired) {
		t.Fatalf("err = %v, want ErrBypassRequired", err)
	}
}

func TestUnknownSwitch(t *testing.T) {
	cfg := config.DefaultCartesianConfig()
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Install(nil)

	err := m.EnqueueSearchMove(standalone.AxisTarget{F: 600}, standalone.XMaxEndstop, true)
	if !errors.Is(err, ErrUnknownEndstop) {
		t.Fatalf("err = %v, want ErrUnknownEndstop", err)
	}
}

func TestMissedSwitchIsRecorded(t *testing.T) {
	cfg := config.DefaultCartesianConfig()
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Place(Switch{Axis: standalone.X, Dir: standalone.Negative, At: -5000})

	var tgt standalone.AxisTarget
	tgt.Axis[standalone.X] = 10000
	tgt.F = 600
	if err := m.EnqueueSearchMove(tgt, standalone.XMinEndstop, true); err != nil {
		t.Fatal(err)
	}
	if err := m.WaitForDrain(); err != nil {
		t.Fatal(err)
	}
	if m.LastMoveTriggered() {
		t.Error("move away from the switch reported a trigger")
	}
	if m.Untriggered() != 1 {
		t.Errorf("untriggered = %d, want 1", m.Untriggered())
	}
	if m.Carriage(standalone.X) != 10000 {
		t.Errorf("carriage = %d, want 10000", m.Carriage(standalone.X))
	}
}

func TestEmergencyStop(t *testing.T) {
	cfg := config.DefaultCartesianConfig()
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Install(nil)

	m.EmergencyStop("test")
	err := m.EnqueueSearchMove(standalone.AxisTarget{F: 600}, 0, false)
	if !errors.Is(err, ErrShutdown) {
		t.Fatalf("err = %v, want ErrShutdown", err)
	}
}

func TestInterpreterOnSimulator(t *testing.T) {
	cfg := config.DefaultCartesianConfig()
	state := &standalone.PositionState{}
	m := NewMachine(cfg, state, quietLogger())
	m.Install(map[string]int32{"x_min": -30000, "y_min": -20000, "z_min": -5000})

	kin, err := kinematics.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	h, _ := homing.New(cfg, m, state, func(string) {})

	var out []string
	interp := gcode.NewInterpreter(cfg, state, m, h, kin, func(s string) { out = append(out, s) })
	parser := gcode.NewParser()
	for _, line := range []string{"G28", "G1 X10 F3000", "M114", "M119"} {
		cmd, err := parser.ParseLine(line)
		if err != nil {
			t.Fatalf("%s: %v", line, err)
		}
		if err := interp.Execute(cmd); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}

	if !strings.HasPrefix(out[0], "X:10.000 Y:0.000 Z:0.000") {
		t.Errorf("M114 = %q", out[0])
	}
	if strings.Contains(out[1], "TRIGGERED") {
		t.Errorf("M119 = %q", out[1])
	}
	within(t, "x carriage", m.Carriage(standalone.X), -30000+m.Hysteresis+10000, 100)
}
