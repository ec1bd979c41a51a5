package effects

import (
	"math"
	"sync/atomic"
)

// Gain scales the signal. The level may be changed from another goroutine
// while audio is rendering.
type Gain struct {
	bits atomic.Uint64
}

func NewGain(level float64) *Gain {
	g := &Gain{}
	g.Set(level)
	return g
}

// Set stores a new level, clamped to 0..1.
func (g *Gain) Set(level float64) {
	g.bits.Store(math.Float64bits(math.Max(0, math.Min(1, level))))
}

func (g *Gain) Level() float64 {
	return math.Float64frombits(g.bits.Load())
}

func (g *Gain) Process(x float64) float64 {
	return x * g.Level()
}

func (g *Gain) Reset() {}
