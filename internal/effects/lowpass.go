package effects

import "math"

// LowPass is a one-pole smoothing filter.
type LowPass struct {
	alpha float64
	y     float64
}

// NewLowPass creates a one-pole lowpass at cutoffHz. A cutoff of zero or at
// or above Nyquist passes the signal through.
func NewLowPass(sampleRate, cutoffHz float64) *LowPass {
	lp := &LowPass{alpha: 1}
	if cutoffHz > 0 && cutoffHz < sampleRate/2 {
		lp.alpha = 1 - math.Exp(-2*math.Pi*cutoffHz/sampleRate)
	}
	return lp
}

func (lp *LowPass) Process(x float64) float64 {
	lp.y += lp.alpha * (x - lp.y)
	return lp.y
}

func (lp *LowPass) Reset() {
	lp.y = 0
}
