package homing

import (
	"homefw/core"
	"homefw/standalone"
)

// Cartesian homes independent axes one endstop at a time
type Cartesian struct {
	controller
	primitives []Primitive
}

// NewCartesian builds the X-, X+, Y-, Y+, Z-, Z+ search order from configuration
func NewCartesian(cfg *standalone.MachineConfig, queue MotionQueue, state *standalone.PositionState, diag core.DiagWriter) *Cartesian {
	h := &Cartesian{
		controller: controller{queue: queue, state: state, diag: diag},
	}
	for a := standalone.X; a <= standalone.Z; a++ {
		h.primitives = append(h.primitives,
			NewPrimitive(cfg, a, standalone.Negative),
			NewPrimitive(cfg, a, standalone.Positive))
	}
	return h
}

// Primitives returns the search steps in execution order
func (h *Cartesian) Primitives() []Primitive {
	return h.primitives
}

// Home runs every configured search in fixed order
func (h *Cartesian) Home() error {
	for _, p := range h.primitives {
		if err := h.run(p); err != nil {
			return err
		}
	}
	return nil
}

// HomeAxis runs the min then max search of a single axis
func (h *Cartesian) HomeAxis(a standalone.Axis) error {
	for _, p := range h.primitives {
		if p.Axis != a {
			continue
		}
		if err := h.run(p); err != nil {
			return err
		}
	}
	return nil
}

func (h *Cartesian) run(p Primitive) error {
	if !p.Enabled {
		return nil
	}
	h.report("Homing " + p.Name() + "...")
	return h.search(p)
}
