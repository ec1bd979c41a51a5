// Package score holds the immutable score model consumed by the resolver and
// the timed score it produces.
package score

import (
	"fmt"
	"strings"
)

// TicksPerWhole is the tick resolution of a whole note.
const TicksPerWhole = 192

// Wave is a waveform selection bitmask.
type Wave uint8

const (
	WavePulse Wave = 1 << iota
	WaveSaw
	WaveTri
	WaveNoise
)

func (w Wave) Has(x Wave) bool { return w&x != 0 }

// ControlBits maps the mask onto the chip's control register waveform bits.
func (w Wave) ControlBits() uint8 {
	var ctrl uint8
	if w.Has(WaveTri) {
		ctrl |= 0x10
	}
	if w.Has(WaveSaw) {
		ctrl |= 0x20
	}
	if w.Has(WavePulse) {
		ctrl |= 0x40
	}
	if w.Has(WaveNoise) {
		ctrl |= 0x80
	}
	return ctrl
}

// WaveFromControl is the inverse of ControlBits.
func WaveFromControl(ctrl uint8) Wave {
	var w Wave
	if ctrl&0x10 != 0 {
		w |= WaveTri
	}
	if ctrl&0x20 != 0 {
		w |= WaveSaw
	}
	if ctrl&0x40 != 0 {
		w |= WavePulse
	}
	if ctrl&0x80 != 0 {
		w |= WaveNoise
	}
	return w
}

func (w Wave) String() string {
	if w == 0 {
		return "(none)"
	}
	names := []struct {
		bit  Wave
		name string
	}{{WavePulse, "PULSE"}, {WaveSaw, "SAW"}, {WaveTri, "TRI"}, {WaveNoise, "NOISE"}}
	var parts []string
	for _, n := range names {
		if w.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// ParseWave parses names like "PULSE" or "SAW+TRI". "SQUARE" and "TRIANGLE"
// are accepted aliases.
func ParseWave(s string) (Wave, error) {
	var w Wave
	for _, part := range strings.Split(strings.ToUpper(s), "+") {
		switch strings.TrimSpace(part) {
		case "PULSE", "SQUARE":
			w |= WavePulse
		case "SAW":
			w |= WaveSaw
		case "TRI", "TRIANGLE":
			w |= WaveTri
		case "NOISE":
			w |= WaveNoise
		default:
			return 0, fmt.Errorf("unknown waveform %q", part)
		}
	}
	return w, nil
}

// FilterMode selects the filter outputs a voice is heard through.
type FilterMode uint8

const (
	FilterLP FilterMode = 1 << iota
	FilterBP
	FilterHP
)

func (m FilterMode) Has(x FilterMode) bool { return m&x != 0 }

func (m FilterMode) String() string {
	var parts []string
	if m.Has(FilterLP) {
		parts = append(parts, "LP")
	}
	if m.Has(FilterBP) {
		parts = append(parts, "BP")
	}
	if m.Has(FilterHP) {
		parts = append(parts, "HP")
	}
	if len(parts) == 0 {
		return "OFF"
	}
	return strings.Join(parts, "+")
}

// ParseFilterMode parses "LP", "BP+HP" and so on. "OFF" and "" select no
// filtering.
func ParseFilterMode(s string) (FilterMode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || s == "OFF" {
		return 0, nil
	}
	var m FilterMode
	for _, part := range strings.Split(s, "+") {
		switch strings.TrimSpace(part) {
		case "LP":
			m |= FilterLP
		case "BP":
			m |= FilterBP
		case "HP":
			m |= FilterHP
		default:
			return 0, fmt.Errorf("unknown filter mode %q", part)
		}
	}
	return m, nil
}

// ADSR holds the four envelope nibbles, each 0..15.
type ADSR struct {
	Attack  int
	Decay   int
	Sustain int
	Release int
}

// Articulation is an instrument's gate behavior between consecutive notes.
type Articulation int

const (
	Retrigger Articulation = iota
	Legato
)

// Instrument is shared by reference across voices and never mutated after
// construction. Optional numeric parameters are nil when unset.
type Instrument struct {
	Name    string
	Wave    Wave
	ADSR    ADSR
	PW      *int
	PWMin   *int
	PWMax   *int
	PWSweep int

	WaveTable  string
	PWTable    string
	GateTable  string
	PitchTable string

	Filter      FilterMode
	Cutoff      *int
	Resonance   *int
	FilterTable string

	Gate    Articulation
	GateMin int
	Sync    bool
	Ring    bool
}

// VideoSystem fixes the frame rate and chip clock of a session.
type VideoSystem string

const (
	PAL  VideoSystem = "PAL"
	NTSC VideoSystem = "NTSC"
)

// FrameRate returns the raster rate in Hz. Anything but NTSC is PAL.
func (v VideoSystem) FrameRate() float64 {
	if v == NTSC {
		return 60.098814
	}
	return 50.124542
}

// ClockHz returns the chip clock in Hz.
func (v VideoSystem) ClockHz() float64 {
	if v == NTSC {
		return 1022727.0
	}
	return 985248.0
}

// Swing is a first-of-pair percentage for undotted eighths. SwingOff disables it.
type Swing int

const SwingOff Swing = 0

func (s Swing) Enabled() bool { return s > 0 }

// TimeSig is informational only.
type TimeSig struct {
	Numerator   int
	Denominator int
}

type Voice struct {
	Index      int
	Instrument string
	Items      []VoiceItem
}

// Score is the validated input of a render session.
type Score struct {
	Title    string
	Author   string
	Released string

	Tempo   int
	TimeSig *TimeSig
	System  VideoSystem
	Swing   Swing

	Tables      map[string]*Table
	Instruments map[string]*Instrument
	Voices      map[int]*Voice
}

// Int returns a pointer to v, for optional instrument parameters.
func Int(v int) *int { return &v }
