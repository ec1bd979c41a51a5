// Package sidscore turns a validated score into SID-style chip audio: it
// resolves note timing, compiles per-frame register streams and renders them
// through an emulated three-voice chip to a realtime device, a WAV file or a
// caller's listener.
package sidscore

import (
	"github.com/cbegin/sidscore-go/internal/frames"
	"github.com/cbegin/sidscore-go/internal/resolver"
	"github.com/cbegin/sidscore-go/internal/score"
	"github.com/cbegin/sidscore-go/internal/scorefile"
	"github.com/cbegin/sidscore-go/internal/sid"
)

// Score model.
type (
	Score       = score.Score
	Instrument  = score.Instrument
	Voice       = score.Voice
	VoiceItem   = score.VoiceItem
	Note        = score.Note
	Rest        = score.Rest
	Hit         = score.Hit
	SetLength   = score.SetLength
	SetSwing    = score.SetSwing
	Tie         = score.Tie
	LegatoScope = score.LegatoScope
	Tuplet      = score.Tuplet
	Repeat      = score.Repeat
	Table       = score.Table
	TableStep   = score.TableStep
	ADSR        = score.ADSR
	Wave        = score.Wave
	FilterMode  = score.FilterMode
	Length      = score.Length
	Swing       = score.Swing
	VideoSystem = score.VideoSystem
)

// Resolver output.
type (
	TimedScore   = score.TimedScore
	TimedVoice   = score.TimedVoice
	TimedEvent   = score.TimedEvent
	Diagnostic   = resolver.Diagnostic
	Diagnostics  = resolver.Diagnostics
	ResolveError = resolver.Error
)

type (
	FrameEvent = frames.Event
	Model      = sid.Model
)

const (
	PAL  = score.PAL
	NTSC = score.NTSC

	MOS6581 = sid.MOS6581
	MOS8580 = sid.MOS8580
)

// LoadScore reads a score from its JSON interchange file.
func LoadScore(path string) (*Score, error) {
	return scorefile.Load(path)
}

// Resolve converts a score into timed events. Warnings are returned even on
// success; on failure the error is a *ResolveError listing every error found.
func Resolve(s *Score) (*TimedScore, Diagnostics, error) {
	return resolver.Resolve(s)
}

// CompileFrames compiles voices 1..3 into frame streams. Missing voices get a
// stream holding only the terminator.
func CompileFrames(ts *TimedScore) [3][]FrameEvent {
	return frames.CompileScore(ts)
}

// EncodeFrames serializes one voice stream, six bytes per event.
func EncodeFrames(events []FrameEvent) []byte {
	return frames.Encode(events)
}

// ParseModel accepts 6581, 8580 and their MOS-prefixed forms.
func ParseModel(raw string) (Model, error) {
	return sid.ParseModel(raw)
}
