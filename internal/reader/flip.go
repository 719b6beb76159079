package reader

import (
	"math"
	"sync"
	"time"
)

// FlipState is the page flip animation state. Transitions only happen
// through the engine's operations.
type FlipState int

const (
	Idle FlipState = iota
	FlippingForward
	FlippingBackward
)

func (s FlipState) String() string {
	switch s {
	case FlippingForward:
		return "flipping_forward"
	case FlippingBackward:
		return "flipping_backward"
	default:
		return "idle"
	}
}

// Direction is a flip direction.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

func (d Direction) delta() int {
	if d == Backward {
		return -1
	}
	return 1
}

// Overlay is the transparent surface the shadow gradient is rendered
// onto during a flip. Fold is the boundary position in [0,1] and
// intensity the gradient strength in [0,1].
type Overlay interface {
	SetShadow(fold, intensity float64)
	Clear()
}

// NeighborSource reports whether the chapter adjacent in a direction is
// preloaded and ready to flip to.
type NeighborSource interface {
	NeighborReady(dir Direction) bool
}

// FlipEngine runs the page flip animation as a three-state machine.
// The animation never swaps chapter content; the completion signal
// drives the owner's commit through the callback. A flip request while
// not idle, while disabled, or without a ready neighbor is rejected
// with a false return so callers fall back to a direct chapter change.
type FlipEngine struct {
	overlay    Overlay
	neighbors  NeighborSource
	onComplete func(Direction)
	now        func() time.Time

	duration time.Duration
	enabled  bool

	mu      sync.Mutex
	state   FlipState
	started time.Time
}

// NewFlipEngine builds an engine. When enabled is false the engine
// exposes no flip operations: every Flip* call returns false.
func NewFlipEngine(enabled bool, duration time.Duration, overlay Overlay, neighbors NeighborSource, onComplete func(Direction)) *FlipEngine {
	return &FlipEngine{
		overlay:    overlay,
		neighbors:  neighbors,
		onComplete: onComplete,
		now:        time.Now,
		duration:   duration,
		enabled:    enabled,
	}
}

// Enabled reports whether flip animation is active for this session.
func (e *FlipEngine) Enabled() bool {
	return e.enabled
}

// State returns the current animation state.
func (e *FlipEngine) State() FlipState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// FlipForward starts a forward flip. Returns whether the flip was
// accepted.
func (e *FlipEngine) FlipForward() bool {
	return e.start(Forward, FlippingForward)
}

// FlipBackward starts a backward flip. Returns whether the flip was
// accepted.
func (e *FlipEngine) FlipBackward() bool {
	return e.start(Backward, FlippingBackward)
}

func (e *FlipEngine) start(dir Direction, target FlipState) bool {
	if !e.enabled || !e.neighbors.NeighborReady(dir) {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return false
	}
	e.state = target
	e.started = e.now()
	return true
}

// Tick renders one animation frame. The fold boundary advances linearly
// with elapsed time and the shadow intensity follows sin(progress*pi),
// zero at both ends and peaking at the midpoint. Progress is clamped at
// 1 so frames arriving after the timer elapsed hold the final pose; the
// explicit completion signal, not the timer, ends the flip.
func (e *FlipEngine) Tick() {
	e.mu.Lock()
	if e.state == Idle {
		e.mu.Unlock()
		return
	}
	elapsed := e.now().Sub(e.started)
	e.mu.Unlock()

	progress := 1.0
	if e.duration > 0 && elapsed < e.duration {
		progress = float64(elapsed) / float64(e.duration)
	}
	e.overlay.SetShadow(progress, math.Sin(progress*math.Pi))
}

// Complete is the explicit completion signal from the render surface.
// It returns the engine to idle, clears the overlay, and fires the
// completion callback with the direction so the owner commits the
// chapter change.
func (e *FlipEngine) Complete() {
	e.mu.Lock()
	state := e.state
	e.state = Idle
	e.mu.Unlock()

	if state == Idle {
		return
	}
	e.overlay.Clear()

	dir := Forward
	if state == FlippingBackward {
		dir = Backward
	}
	if e.onComplete != nil {
		e.onComplete(dir)
	}
}

// Cancel aborts a flip mid-flight without committing anything, leaving
// no partial overlay state behind.
func (e *FlipEngine) Cancel() {
	e.mu.Lock()
	wasActive := e.state != Idle
	e.state = Idle
	e.mu.Unlock()

	if wasActive {
		e.overlay.Clear()
	}
}
