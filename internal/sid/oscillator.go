package sid

import (
	"math"

	"github.com/cbegin/sidscore-go/internal/score"
)

var triTable, sawTable [WaveLen]uint8

func init() {
	for i := 0; i < WaveLen; i++ {
		triTable[i] = uint8(triangle12(i) >> 4)
		sawTable[i] = uint8(i >> 4)
	}
}

// OscState is the per-sample edge information used for sync and ring routing.
type OscState struct {
	MSB  bool
	Rise bool
}

// Oscillator is one voice's phase accumulator and waveform generator.
type Oscillator struct {
	tables *TableSet

	phase      float64
	inc        float64
	pulseWidth int

	lfsr      LFSR
	noiseOut  uint8
	lastBit19 int
	lastMSB   int
}

func NewOscillator(tables *TableSet) *Oscillator {
	return &Oscillator{tables: tables, pulseWidth: DefaultPulseWidth, lfsr: NewLFSR()}
}

// SetWaveMask applies a new waveform selection. Leaving noise clears the
// noise output and its clock edge detector.
func (o *Oscillator) SetWaveMask(mask score.Wave, pw int) {
	o.SetPulseWidth(pw)
	if !mask.Has(score.WaveNoise) {
		o.noiseOut = 0
		o.lastBit19 = 0
	}
}

func (o *Oscillator) SetPulseWidth(pw int) {
	o.pulseWidth = pw & MaxPulseWidth
}

// SetFreq sets the oscillator frequency for the given (oversampled) rate.
func (o *Oscillator) SetFreq(hz, sampleRate float64) {
	o.inc = math.Max(0, hz) * PhaseScale / sampleRate
}

// Advance moves the phase one sample, clocking noise on bit-19 rising edges.
func (o *Oscillator) Advance() OscState {
	if o.inc <= 0 {
		return OscState{}
	}
	o.phase += o.inc
	if o.phase >= PhaseScale {
		o.phase -= PhaseScale * math.Floor(o.phase/PhaseScale)
	}
	p := int(o.phase)

	bit19 := (p >> 19) & 1
	if bit19 == 1 && o.lastBit19 == 0 {
		o.lfsr.Step()
		o.noiseOut = o.lfsr.Output()
	}
	o.lastBit19 = bit19

	msb := (p >> 23) & 1
	rise := msb == 1 && o.lastMSB == 0
	o.lastMSB = msb
	return OscState{MSB: msb == 1, Rise: rise}
}

// SyncReset restarts the phase from a modulator MSB rise.
func (o *Oscillator) SyncReset() {
	o.phase = 0
	o.lastBit19 = 0
	o.lastMSB = 0
}

// HardReset also reseeds the noise register.
func (o *Oscillator) HardReset() {
	o.SyncReset()
	o.lfsr = NewLFSR()
	o.noiseOut = 0
}

// Output returns the current sample in [-1, 1). Ring modulation inverts a
// triangle-bearing wave while the modulator's MSB is set.
func (o *Oscillator) Output(mask score.Wave, ring, modMSB bool) float64 {
	if o.inc <= 0 || mask == 0 {
		return 0
	}
	phase12 := (int(o.phase) >> 12) & 0x0FFF
	hasTri := mask.Has(score.WaveTri)
	hasSaw := mask.Has(score.WaveSaw)
	hasPulse := mask.Has(score.WavePulse)
	hasNoise := mask.Has(score.WaveNoise)

	var v int
	switch {
	case hasNoise:
		v = int(o.noiseOut)
	case hasTri && hasSaw && hasPulse:
		v = int(o.tables.Wave70[phase12+o.pulseWidth])
	case hasTri && hasSaw:
		v = int(o.tables.Wave30[phase12])
	case hasTri && hasPulse:
		v = int(o.tables.Wave50[phase12+o.pulseWidth])
	case hasSaw && hasPulse:
		v = int(o.tables.Wave60[phase12+o.pulseWidth])
	case hasTri:
		v = int(triTable[phase12])
	case hasSaw:
		v = int(sawTable[phase12])
	case hasPulse:
		if phase12 < o.pulseWidth {
			v = 255
		}
	}
	if ring && modMSB && hasTri && !hasNoise {
		v = 255 - v
	}
	return float64(v-128) / 128.0
}
