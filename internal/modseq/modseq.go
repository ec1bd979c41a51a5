// Package modseq steps instrument control tables at frame resolution on a
// sample clock.
package modseq

import (
	"math"

	"github.com/cbegin/sidscore-go/internal/score"
)

// Clock counts down samples for a frame duration, carrying the rounding
// remainder into the next duration.
type Clock struct {
	left int
	rem  float64
}

// Set loads frames frames worth of samples. At least one sample is counted.
func (c *Clock) Set(frames int, samplesPerFrame float64) {
	exact := float64(frames)*samplesPerFrame + c.rem
	c.left = max(1, int(math.Round(exact)))
	c.rem = exact - float64(c.left)
}

// Tick consumes one sample and reports whether the duration elapsed.
func (c *Clock) Tick() bool {
	if c.left > 0 {
		c.left--
	}
	return c.left == 0
}

// Pending reports whether samples remain.
func (c *Clock) Pending() bool { return c.left > 0 }

func (c *Clock) Left() int { return c.left }

// Reset clears the count and the carried remainder.
func (c *Clock) Reset() { *c = Clock{} }

// Stepper walks a control table. A step holds for its frame duration; a hold
// step or a zero duration parks the stepper, and running off the end either
// loops or parks.
type Stepper struct {
	table   *score.Table
	next    int
	clock   Clock
	holding bool
}

func NewStepper(t *score.Table) *Stepper {
	return &Stepper{table: t}
}

// Active reports whether there is a non-empty table to step.
func (s *Stepper) Active() bool {
	return s.table != nil && len(s.table.Steps) > 0
}

func (s *Stepper) Holding() bool { return s.holding }

// Reset rewinds to the first step without loading it.
func (s *Stepper) Reset() {
	s.next = 0
	s.clock.Reset()
	s.holding = false
}

// Load fetches the next step and starts its duration. ok is false when the
// table is parked.
func (s *Stepper) Load(samplesPerFrame float64) (step score.TableStep, ok bool) {
	if !s.Active() {
		s.holding = true
		return step, false
	}
	steps := s.table.Steps
	if s.next >= len(steps) {
		if !s.table.Loop {
			s.holding = true
			return step, false
		}
		s.next = 0
	}
	step = steps[s.next]
	if step.Hold || step.Frames <= 0 {
		s.holding = true
		s.clock.left = 0
		return step, true
	}
	s.clock.Set(step.Frames, samplesPerFrame)
	s.next++
	return step, true
}

// Advance runs one sample and returns the next step when the current one
// has elapsed.
func (s *Stepper) Advance(samplesPerFrame float64) (score.TableStep, bool) {
	if !s.Active() || s.holding {
		return score.TableStep{}, false
	}
	if s.clock.Pending() && !s.clock.Tick() {
		return score.TableStep{}, false
	}
	return s.Load(samplesPerFrame)
}
