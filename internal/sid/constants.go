// Package sid emulates the MOS 6581/8580 voice building blocks: oscillator,
// noise generator, envelope generator and an approximate filter.
package sid

import "math"

// Control register bits.
const (
	CtrlGate  = 0x01
	CtrlSync  = 0x02
	CtrlRing  = 0x04
	CtrlTest  = 0x08
	CtrlTri   = 0x10
	CtrlSaw   = 0x20
	CtrlPulse = 0x40
	CtrlNoise = 0x80

	// CtrlWaveBits masks the waveform selection in a control byte.
	CtrlWaveBits = 0xF0
)

const (
	// PhaseScale is the range of the 24-bit phase accumulator.
	PhaseScale = 1 << 24

	DefaultPulseWidth = 0x0800
	MaxPulseWidth     = 0x0FFF
	MaxCutoff         = 0x07FF
	MaxResonance      = 15

	// NoiseMarker flags a noise event in a frame event's base note byte.
	NoiseMarker = 0x80
)

// FreqRegister converts a frequency in Hz to the 16-bit register value for
// the given chip clock, clamped to 1..0xFFFF.
func FreqRegister(hz, clockHz float64) uint16 {
	reg := int(math.Round(hz * PhaseScale / clockHz))
	if reg < 1 {
		reg = 1
	}
	if reg > 0xFFFF {
		reg = 0xFFFF
	}
	return uint16(reg)
}

// RegisterHz is the inverse of FreqRegister. A zero register is silent.
func RegisterHz(reg uint16, clockHz float64) float64 {
	if reg == 0 {
		return 0
	}
	return float64(reg) * clockHz / PhaseScale
}

// MIDIToHz returns equal-tempered A440 pitch.
func MIDIToHz(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12.0)
}

// QuantizedHz returns the frequency the chip actually produces for a note.
func QuantizedHz(note int, clockHz float64) float64 {
	return RegisterHz(FreqRegister(MIDIToHz(note), clockHz), clockHz)
}
