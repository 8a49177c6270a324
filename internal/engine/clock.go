package engine

import "fmt"

// Clock is the integer tick counter driving an executor.
//
// The horizon is the earliest tick at which all currently known work can be
// finished. Executors recompute it only when the known work changes
// (arrival, dispatch, requeue, termination); between those points consuming
// one unit of work and advancing one tick cancel out, so the value stays exact.
type Clock struct {
	now     int
	horizon int
}

// NewClock starts at tick start with an empty horizon.
func NewClock(start int) *Clock {
	return &Clock{now: start, horizon: start}
}

// Now returns the current tick.
func (c *Clock) Now() int {
	return c.now
}

// Tick advances one tick.
func (c *Clock) Tick() {
	c.now++
}

// AdvanceTo jumps forward to tick t. Moving backwards is an engine bug.
func (c *Clock) AdvanceTo(t int) {
	if t < c.now {
		panic(fmt.Sprintf("engine: clock moved backwards from %d to %d", c.now, t))
	}
	c.now = t
}

// Horizon returns the last tick the current run is known to need.
func (c *Clock) Horizon() int {
	return c.horizon
}

// SetHorizon records a recomputed horizon.
func (c *Clock) SetHorizon(h int) {
	c.horizon = h
}

// Running reports whether the clock is still inside the horizon.
func (c *Clock) Running() bool {
	return c.now <= c.horizon
}
