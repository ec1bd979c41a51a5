package sid

import (
	"math"

	"github.com/cbegin/sidscore-go/internal/score"
)

const (
	filterMinHz = 30.0
	filterMaxHz = 12000.0
)

// Filter is a Chamberlin state-variable approximation of the chip filter.
// There is one per chip; voices share it.
type Filter struct {
	sampleRate float64

	mode      score.FilterMode
	cutoff    int
	resonance int

	f, q      float64
	low, band float64
}

func NewFilter(sampleRate float64) *Filter {
	return &Filter{sampleRate: sampleRate, q: 1}
}

// CutoffHz maps the 11-bit cutoff register linearly onto 30 Hz..12 kHz.
func CutoffHz(cutoff int) float64 {
	t := float64(clampInt(cutoff, 0, MaxCutoff)) / float64(MaxCutoff)
	return filterMinHz + (filterMaxHz-filterMinHz)*t
}

// Configure sets mode, cutoff and resonance in one step.
func (f *Filter) Configure(mode score.FilterMode, cutoff, resonance int) {
	f.mode = mode
	f.cutoff = clampInt(cutoff, 0, MaxCutoff)
	f.resonance = clampInt(resonance, 0, MaxResonance)
	f.updateCoeffs()
}

func (f *Filter) SetCutoff(cutoff int) {
	f.cutoff = clampInt(cutoff, 0, MaxCutoff)
	f.updateCoeffs()
}

func (f *Filter) Cutoff() int { return f.cutoff }

func (f *Filter) Mode() score.FilterMode { return f.mode }

func (f *Filter) updateCoeffs() {
	hz := math.Min(CutoffHz(f.cutoff), f.sampleRate*0.45)
	if hz <= 0 {
		f.f = 0
		return
	}
	f.f = 2 * math.Sin(math.Pi*hz/f.sampleRate)
	f.q = 2 - 1.5*float64(f.resonance)/float64(MaxResonance)
}

// Process filters one sample. With no mode selected the input passes through.
func (f *Filter) Process(in float64) float64 {
	if f.mode == 0 {
		return in
	}
	f.low += f.f * f.band
	high := in - f.low - f.q*f.band
	f.band += f.f * high

	var out float64
	n := 0
	if f.mode.Has(score.FilterLP) {
		out += f.low
		n++
	}
	if f.mode.Has(score.FilterBP) {
		out += f.band
		n++
	}
	if f.mode.Has(score.FilterHP) {
		out += high
		n++
	}
	return out / float64(n)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
