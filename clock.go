package main

import "time"

const (
	TickRate     = 20 // simulation ticks per second
	TickDt       = 1.0 / float64(TickRate)
	TickDuration = time.Second / TickRate

	// MaxCatchUpSteps caps how many simulation steps one wall tick may run
	// when the loop falls behind, so a stall cannot spiral.
	MaxCatchUpSteps = 5
)

// Clock converts elapsed wall time into fixed simulation steps. It
// accumulates real time and hands out zero, one or several steps per call,
// keeping the simulation at exactly TickRate regardless of scheduler jitter.
type Clock struct {
	last time.Time
	acc  time.Duration
}

// NewClock starts a clock at the given wall time.
func NewClock(now time.Time) *Clock {
	return &Clock{last: now}
}

// Advance returns the number of fixed steps to run for the wall time that
// has passed since the previous call, capped at MaxCatchUpSteps. Backlog
// beyond the cap is discarded rather than replayed.
func (c *Clock) Advance(now time.Time) int {
	c.acc += now.Sub(c.last)
	c.last = now

	steps := 0
	for c.acc >= TickDuration {
		c.acc -= TickDuration
		steps++
	}
	if steps > MaxCatchUpSteps {
		steps = MaxCatchUpSteps
		c.acc = 0
	}
	return steps
}
