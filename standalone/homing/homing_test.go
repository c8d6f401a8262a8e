package homing

import (
	"errors"
	"testing"

	"homefw/standalone"
)

type queuedMove struct {
	from          standalone.AxisTarget
	target        standalone.AxisTarget
	mask          standalone.EndstopMask
	stopOnTrigger bool
	bypass        bool
}

// recordingQueue records every call and mimics the queue-time startpoint
// update of the firmware planner
type recordingQueue struct {
	state  *standalone.PositionState
	moves  []queuedMove
	drains int
	resets []standalone.AxisTarget
	bypass bool

	bypassLog  []bool
	failAfter  int // fail the nth enqueue (1-based), 0 = never
	panicAfter int
}

func (q *recordingQueue) EnqueueSearchMove(t standalone.AxisTarget, mask standalone.EndstopMask, stop bool) error {
	n := len(q.moves) + 1
	if q.failAfter == n {
		return errQueueFull
	}
	if q.panicAfter == n {
		panic("queue fault")
	}
	q.moves = append(q.moves, queuedMove{from: q.state.Start, target: t, mask: mask, stopOnTrigger: stop, bypass: q.bypass})
	q.state.Start = t
	return nil
}

func (q *recordingQueue) WaitForDrain() error {
	q.drains++
	return nil
}

func (q *recordingQueue) ResetReferenceFrame() {
	q.resets = append(q.resets, q.state.Start)
}

func (q *recordingQueue) SetBypassKinematics(b bool) {
	q.bypass = b
	q.bypassLog = append(q.bypassLog, b)
}

var errQueueFull = errors.New("queue full")

func fptr(v float64) *float64 { return &v }

func cartesianConfig() *standalone.MachineConfig {
	axis := standalone.AxisConfig{
		StepsPerMM:       80,
		MaxFeedrate:      6000,
		SearchFeedrate:   50,
		EndstopClearance: 1000,
		MinPosition:      fptr(0),
		MaxPosition:      fptr(200),
	}
	return &standalone.MachineConfig{
		Kinematics:   "cartesian",
		Acceleration: 1000,
		Axes: map[string]standalone.AxisConfig{
			"x": axis, "y": axis, "z": axis,
		},
		Endstops: map[string]standalone.EndstopConfig{
			"x_min": {Pin: "gpio2"},
			"y_min": {Pin: "gpio3"},
			"z_min": {Pin: "gpio4"},
		},
	}
}

func deltaConfig() *standalone.MachineConfig {
	axis := standalone.AxisConfig{
		StepsPerMM:       80,
		MaxFeedrate:      12000,
		SearchFeedrate:   100,
		EndstopClearance: 2000,
	}
	return &standalone.MachineConfig{
		Kinematics:   "delta",
		Acceleration: 1000,
		Axes: map[string]standalone.AxisConfig{
			"x": axis, "y": axis, "z": axis,
		},
		Endstops: map[string]standalone.EndstopConfig{
			"x_max": {Pin: "gpio5"},
			"y_max": {Pin: "gpio6"},
			"z_max": {Pin: "gpio7"},
		},
		Delta: standalone.DeltaGeometry{
			Height:        250,
			EndstopAdjust: [3]float64{-0.1, 0, 0.25},
		},
	}
}

func quiet(string) {}

func TestFastFeedrate(t *testing.T) {
	tests := []struct {
		accel     float64
		clearance uint32
		want      uint32
		ok        bool
	}{
		{3, 1000, 146, true},
		{1000, 1000, 2683, true},
		{1000, 2000, 3794, true},
		{1000, 3000, 4647, true},
		{1000, 0, 0, false},
	}

	for _, test := range tests {
		got, ok := FastFeedrate(test.accel, test.clearance)
		if got != test.want || ok != test.ok {
			t.Errorf("FastFeedrate(%v, %d) = %d, %v; want %d, %v",
				test.accel, test.clearance, got, ok, test.want, test.ok)
		}
	}
}

// 3 mm clearance at 1000 mm/s^2 allows 60*sqrt(2*1000*3) mm/min, far above
// a 600 mm/min search feed, so the search runs fast and then backs off slowly.
func TestThreeMillimeterClearanceSearch(t *testing.T) {
	cfg := cartesianConfig()
	x := cfg.Axes["x"]
	x.SearchFeedrate = 600
	x.EndstopClearance = 3000
	x.MinPosition = fptr(0)
	cfg.Axes["x"] = x

	feeds := AxisFeedrates(cfg, standalone.X)
	if feeds.Fast != 4647 || !feeds.TwoPhase() {
		t.Fatalf("feeds = %+v, want fast 4647 two-phase", feeds)
	}

	state := &standalone.PositionState{}
	state.SetAxis(standalone.X, 12000)
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.HomeAxis(standalone.X); err != nil {
		t.Fatalf("HomeAxis failed: %v", err)
	}
	if len(q.moves) != 2 {
		t.Fatalf("expected search and back-off, got %d moves", len(q.moves))
	}
	if q.moves[0].target.F != 4647 || q.moves[1].target.F != 600 {
		t.Errorf("feeds = %d, %d; want 4647, 600", q.moves[0].target.F, q.moves[1].target.F)
	}
	if state.Start.Axis[standalone.X] != 0 || state.Next.Axis[standalone.X] != 0 {
		t.Errorf("X = %d/%d, want 0", state.Start.Axis[standalone.X], state.Next.Axis[standalone.X])
	}
}

func TestFeedratesTwoPhase(t *testing.T) {
	f := Feedrates{Fast: 146, Slow: 600}
	if f.TwoPhase() {
		t.Error("146 mm/min should not beat 600 mm/min")
	}
	if f.First() != 600 {
		t.Errorf("First() = %d, want 600", f.First())
	}

	f = Feedrates{Fast: 2683, Slow: 50}
	if !f.TwoPhase() || f.First() != 2683 {
		t.Errorf("expected fast first pass, got %+v", f)
	}

	f = Feedrates{Fast: 600, Slow: 600}
	if f.TwoPhase() {
		t.Error("equal speeds must use a single pass")
	}
}

func TestSearchTwoPhase(t *testing.T) {
	cfg := cartesianConfig()
	state := &standalone.PositionState{}
	state.SetAxis(standalone.X, 12345)
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.HomeAxis(standalone.X); err != nil {
		t.Fatalf("HomeAxis failed: %v", err)
	}

	if len(q.moves) != 2 {
		t.Fatalf("expected 2 moves, got %d", len(q.moves))
	}

	first := q.moves[0]
	if first.target.Axis[standalone.X] != -SearchDistance {
		t.Errorf("search target = %d, want %d", first.target.Axis[standalone.X], -SearchDistance)
	}
	if first.target.F != 2683 {
		t.Errorf("search feed = %d, want 2683", first.target.F)
	}
	if first.mask != standalone.XMinEndstop || !first.stopOnTrigger {
		t.Errorf("search mask = %#x stop=%v", first.mask, first.stopOnTrigger)
	}

	back := q.moves[1]
	if back.target.Axis[standalone.X] != SearchDistance {
		t.Errorf("back-off target = %d, want %d", back.target.Axis[standalone.X], SearchDistance)
	}
	if back.target.F != 50 {
		t.Errorf("back-off feed = %d, want 50", back.target.F)
	}
	if back.mask != standalone.XMinEndstop || back.stopOnTrigger {
		t.Errorf("back-off mask = %#x stop=%v", back.mask, back.stopOnTrigger)
	}

	if state.Start.Axis[standalone.X] != 0 || state.Next.Axis[standalone.X] != 0 {
		t.Errorf("X not reconciled: start=%d next=%d",
			state.Start.Axis[standalone.X], state.Next.Axis[standalone.X])
	}
	if len(q.resets) != 1 {
		t.Errorf("expected one frame reset, got %d", len(q.resets))
	}
}

func TestSearchSinglePhase(t *testing.T) {
	// 3 mm/s^2 with 1 mm clearance gives 146 mm/min, slower than 600
	cfg := cartesianConfig()
	cfg.Acceleration = 3
	x := cfg.Axes["x"]
	x.SearchFeedrate = 600
	cfg.Axes["x"] = x

	state := &standalone.PositionState{}
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.HomeAxis(standalone.X); err != nil {
		t.Fatalf("HomeAxis failed: %v", err)
	}

	if len(q.moves) != 1 {
		t.Fatalf("expected 1 move, got %d", len(q.moves))
	}
	if q.moves[0].target.F != 600 {
		t.Errorf("feed = %d, want 600", q.moves[0].target.F)
	}
	if state.Start.Axis[standalone.X] != 0 {
		t.Errorf("X = %d, want 0", state.Start.Axis[standalone.X])
	}
}

func TestSearchWithoutClearance(t *testing.T) {
	cfg := cartesianConfig()
	y := cfg.Axes["y"]
	y.EndstopClearance = 0
	cfg.Axes["y"] = y

	state := &standalone.PositionState{}
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.HomeAxis(standalone.Y); err != nil {
		t.Fatalf("HomeAxis failed: %v", err)
	}
	if len(q.moves) != 1 || q.moves[0].target.F != 50 {
		t.Fatalf("expected single slow search, got %+v", q.moves)
	}
}

func TestSearchMinReference(t *testing.T) {
	cfg := cartesianConfig()
	z := cfg.Axes["z"]
	z.MinPosition = fptr(-1.5)
	cfg.Axes["z"] = z

	state := &standalone.PositionState{}
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.HomeAxis(standalone.Z); err != nil {
		t.Fatalf("HomeAxis failed: %v", err)
	}
	if state.Start.Axis[standalone.Z] != -1500 || state.Next.Axis[standalone.Z] != -1500 {
		t.Errorf("Z = %d/%d, want -1500", state.Start.Axis[standalone.Z], state.Next.Axis[standalone.Z])
	}
}

func TestSearchMissingMinCoordinate(t *testing.T) {
	cfg := cartesianConfig()
	x := cfg.Axes["x"]
	x.MinPosition = nil
	cfg.Axes["x"] = x

	state := &standalone.PositionState{}
	state.SetAxis(standalone.X, 7000)
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.HomeAxis(standalone.X); err != nil {
		t.Fatalf("HomeAxis failed: %v", err)
	}
	if state.Start.Axis[standalone.X] != 0 {
		t.Errorf("X = %d, want 0", state.Start.Axis[standalone.X])
	}
}

func TestMaxSearch(t *testing.T) {
	cfg := cartesianConfig()
	cfg.Endstops = map[string]standalone.EndstopConfig{
		"y_max": {Pin: "gpio9"},
	}

	state := &standalone.PositionState{}
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.Home(); err != nil {
		t.Fatalf("Home failed: %v", err)
	}
	if len(q.moves) != 2 {
		t.Fatalf("expected 2 moves, got %d", len(q.moves))
	}
	if q.moves[0].target.Axis[standalone.Y] != SearchDistance || q.moves[0].mask != standalone.YMaxEndstop {
		t.Errorf("unexpected max search %+v", q.moves[0])
	}
	if q.moves[1].target.Axis[standalone.Y] != -SearchDistance {
		t.Errorf("back-off target = %d", q.moves[1].target.Axis[standalone.Y])
	}
	if state.Start.Axis[standalone.Y] != 200000 {
		t.Errorf("Y = %d, want 200000", state.Start.Axis[standalone.Y])
	}
}

func TestMaxSearchWithoutCoordinate(t *testing.T) {
	cfg := cartesianConfig()
	x := cfg.Axes["x"]
	x.MaxPosition = nil
	cfg.Axes["x"] = x
	cfg.Endstops = map[string]standalone.EndstopConfig{
		"x_max": {Pin: "gpio9"},
	}

	state := &standalone.PositionState{}
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.Home(); err != nil {
		t.Fatalf("Home failed: %v", err)
	}
	if len(q.moves) != 0 {
		t.Errorf("expected no moves, got %d", len(q.moves))
	}
}

func TestAbsentEndstopIsNoop(t *testing.T) {
	cfg := cartesianConfig()
	cfg.Endstops = nil

	state := &standalone.PositionState{}
	state.SetAxis(standalone.X, 4242)
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.Home(); err != nil {
		t.Fatalf("Home failed: %v", err)
	}
	if len(q.moves) != 0 || q.drains != 0 || len(q.resets) != 0 {
		t.Errorf("expected no queue interaction, got moves=%d drains=%d resets=%d",
			len(q.moves), q.drains, len(q.resets))
	}
	if state.Start.Axis[standalone.X] != 4242 {
		t.Errorf("position changed to %d", state.Start.Axis[standalone.X])
	}
}

func TestCartesianOrder(t *testing.T) {
	cfg := cartesianConfig()
	cfg.Endstops = map[string]standalone.EndstopConfig{
		"x_min": {Pin: "a"}, "x_max": {Pin: "b"},
		"y_min": {Pin: "c"}, "y_max": {Pin: "d"},
		"z_min": {Pin: "e"}, "z_max": {Pin: "f"},
	}

	state := &standalone.PositionState{}
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.Home(); err != nil {
		t.Fatalf("Home failed: %v", err)
	}

	want := []standalone.EndstopMask{
		standalone.XMinEndstop, standalone.XMaxEndstop,
		standalone.YMinEndstop, standalone.YMaxEndstop,
		standalone.ZMinEndstop, standalone.ZMaxEndstop,
	}
	if len(q.moves) != 2*len(want) {
		t.Fatalf("expected %d moves, got %d", 2*len(want), len(q.moves))
	}
	for i, mask := range want {
		if q.moves[2*i].mask != mask {
			t.Errorf("step %d mask = %#x, want %#x", i, q.moves[2*i].mask, mask)
		}
	}

	// max sides run last for each axis
	for a := standalone.X; a <= standalone.Z; a++ {
		if state.Start.Axis[a] != 200000 {
			t.Errorf("%s = %d, want 200000", a, state.Start.Axis[a])
		}
	}
}

func TestHomeIdempotent(t *testing.T) {
	cfg := cartesianConfig()
	state := &standalone.PositionState{}
	q := &recordingQueue{state: state}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.Home(); err != nil {
		t.Fatalf("first Home failed: %v", err)
	}
	first := state.Start
	n := len(q.moves)

	if err := h.Home(); err != nil {
		t.Fatalf("second Home failed: %v", err)
	}
	if state.Start != first {
		t.Errorf("second run ended at %+v, first at %+v", state.Start, first)
	}
	if len(q.moves) != 2*n {
		t.Errorf("second run issued %d moves, first %d", len(q.moves)-n, n)
	}
}

func TestSearchPropagatesQueueError(t *testing.T) {
	cfg := cartesianConfig()
	state := &standalone.PositionState{}
	q := &recordingQueue{state: state, failAfter: 2}
	h := NewCartesian(cfg, q, state, quiet)

	if err := h.Home(); !errors.Is(err, errQueueFull) {
		t.Fatalf("expected queue error, got %v", err)
	}
	if len(q.resets) != 0 {
		t.Errorf("position reconciled after a failed search")
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	state := &standalone.PositionState{}
	q := &recordingQueue{state: state}

	h, err := New(cartesianConfig(), q, state, quiet)
	if err != nil {
		t.Fatalf("New(cartesian) failed: %v", err)
	}
	if _, ok := h.(*Cartesian); !ok {
		t.Errorf("expected *Cartesian, got %T", h)
	}

	h, err = New(deltaConfig(), q, state, quiet)
	if err != nil {
		t.Fatalf("New(delta) failed: %v", err)
	}
	if _, ok := h.(*Delta); !ok {
		t.Errorf("expected *Delta, got %T", h)
	}

	cfg := cartesianConfig()
	cfg.Kinematics = "corexy"
	if _, err := New(cfg, q, state, quiet); !errors.Is(err, ErrUnsupportedKinematics) {
		t.Errorf("expected ErrUnsupportedKinematics, got %v", err)
	}
}

func TestNewDeltaNeedsBypass(t *testing.T) {
	state := &standalone.PositionState{}
	var q MotionQueue = struct{ MotionQueue }{&recordingQueue{state: state}}

	if _, err := New(deltaConfig(), q, state, quiet); !errors.Is(err, ErrNoKinematicsBypass) {
		t.Errorf("expected ErrNoKinematicsBypass, got %v", err)
	}
}
