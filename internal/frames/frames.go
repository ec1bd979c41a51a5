// Package frames compiles timed voices into the per-frame register stream
// shared by realtime playback and binary export.
package frames

import (
	"fmt"
	"math"

	"github.com/cbegin/sidscore-go/internal/score"
	"github.com/cbegin/sidscore-go/internal/sid"
)

const (
	// EventSize is the encoded size of one event in bytes.
	EventSize = 6

	noiseHz        = 1000.0
	retrigGap      = 1
	maxChunkFrames = 0xFFFF
)

// Event is one register update held for Frames frames. A zero Frames value
// terminates the voice.
type Event struct {
	Frames   uint16
	Freq     uint16
	Ctrl     uint8
	BaseNote uint8
}

// Terminator marks the end of a voice stream.
var Terminator = Event{}

func (e Event) IsTerminator() bool { return e.Frames == 0 }

func (e Event) Gate() bool { return e.Ctrl&sid.CtrlGate != 0 }

func (e Event) Noise() bool { return e.BaseNote&sid.NoiseMarker != 0 }

// Clock carries the session timing a voice is compiled against.
type Clock struct {
	Tempo         int
	TicksPerWhole int
	FrameRate     float64
	ClockHz       float64
}

// ClockFor returns the clock of a timed score.
func ClockFor(ts *score.TimedScore) Clock {
	return Clock{
		Tempo:         ts.Tempo,
		TicksPerWhole: ts.TicksPerWhole,
		FrameRate:     ts.System.FrameRate(),
		ClockHz:       ts.System.ClockHz(),
	}
}

// FramesPerTick is the exact frame duration of one tick.
func (c Clock) FramesPerTick() float64 {
	ticksPerQuarter := float64(c.TicksPerWhole) / 4.0
	secondsPerTick := 60.0 / float64(c.Tempo) / ticksPerQuarter
	return secondsPerTick * c.FrameRate
}

// Compile converts one voice. The rounding remainder of every event is
// carried into the next so the stream does not drift. A nil voice compiles
// to just the terminator.
func Compile(v *score.TimedVoice, clk Clock) []Event {
	if v == nil || v.Instrument == nil {
		return []Event{Terminator}
	}
	instr := v.Instrument
	fpt := clk.FramesPerTick()

	var modBits uint8
	if instr.Sync {
		modBits |= sid.CtrlSync
	}
	if instr.Ring {
		modBits |= sid.CtrlRing
	}
	ctrlBase := instr.Wave.ControlBits() | modBits

	out := make([]Event, 0, len(v.Events)+1)
	rem := 0.0
	lastGateOn := false
	for _, ev := range v.Events {
		exact := float64(ev.Ticks)*fpt + rem
		frames := max(1, int(math.Round(exact)))
		rem = exact - float64(frames)

		if ev.Sounding() && instr.GateMin > 0 {
			frames = max(frames, instr.GateMin)
		}

		var freq uint16
		ctrl := ctrlBase
		var base uint8
		switch ev.Kind {
		case score.EventNote:
			freq = sid.FreqRegister(sid.MIDIToHz(ev.Pitch), clk.ClockHz)
			base = uint8(min(max(ev.Pitch, 0), 127))
			ctrl |= sid.CtrlGate
		case score.EventNoise:
			freq = sid.FreqRegister(noiseHz, clk.ClockHz)
			base = sid.NoiseMarker
			ctrl = sid.CtrlNoise | modBits | sid.CtrlGate
		default:
			lastGateOn = false
		}
		if ev.Sounding() {
			if ev.Gate != score.GateHold && lastGateOn && frames > retrigGap {
				// gate-low edge so the envelope releases and reattacks
				out = append(out, Event{Frames: retrigGap, Freq: freq, Ctrl: ctrlBase, BaseNote: base})
				frames -= retrigGap
			}
			lastGateOn = true
		}

		for frames > 0 {
			chunk := min(frames, maxChunkFrames)
			out = append(out, Event{Frames: uint16(chunk), Freq: freq, Ctrl: ctrl, BaseNote: base})
			frames -= chunk
		}
	}
	return append(out, Terminator)
}

// CompileScore compiles voices 1..3; missing voices yield a lone terminator.
func CompileScore(ts *score.TimedScore) [3][]Event {
	clk := ClockFor(ts)
	var out [3][]Event
	for i := range out {
		out[i] = Compile(ts.Voice(i+1), clk)
	}
	return out
}

// Encode serializes events as frames lo/hi, freq lo/hi, control, base note.
func Encode(events []Event) []byte {
	out := make([]byte, 0, len(events)*EventSize)
	for _, ev := range events {
		out = append(out,
			byte(ev.Frames), byte(ev.Frames>>8),
			byte(ev.Freq), byte(ev.Freq>>8),
			ev.Ctrl, ev.BaseNote)
	}
	return out
}

// Decode is the inverse of Encode.
func Decode(data []byte) ([]Event, error) {
	if len(data)%EventSize != 0 {
		return nil, fmt.Errorf("frame data length %d is not a multiple of %d", len(data), EventSize)
	}
	out := make([]Event, 0, len(data)/EventSize)
	for i := 0; i < len(data); i += EventSize {
		out = append(out, Event{
			Frames:   uint16(data[i]) | uint16(data[i+1])<<8,
			Freq:     uint16(data[i+2]) | uint16(data[i+3])<<8,
			Ctrl:     data[i+4],
			BaseNote: data[i+5],
		})
	}
	return out, nil
}

// Validate checks the stream contract: exactly one terminator, last, and
// base notes that are either a MIDI note or the noise marker.
func Validate(events []Event) error {
	if len(events) == 0 {
		return fmt.Errorf("empty frame stream")
	}
	for i, ev := range events {
		if ev.IsTerminator() {
			if i != len(events)-1 {
				return fmt.Errorf("terminator at %d before end of stream (%d events)", i, len(events))
			}
			continue
		}
		if ev.BaseNote > 127 && ev.BaseNote != sid.NoiseMarker {
			return fmt.Errorf("event %d: invalid base note %#x", i, ev.BaseNote)
		}
	}
	if !events[len(events)-1].IsTerminator() {
		return fmt.Errorf("frame stream not terminated")
	}
	return nil
}

// TotalFrames sums the frame counts of a stream.
func TotalFrames(events []Event) int {
	total := 0
	for _, ev := range events {
		total += int(ev.Frames)
	}
	return total
}
