// Package smfexport writes a timed score as a type 1 Standard MIDI File.
package smfexport

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/sidscore-go/internal/score"
)

const (
	velocity = 100
	// noiseKey is the key noise hits are written as (acoustic snare).
	noiseKey = 38
)

// Build converts ts. Track 0 carries the title and tempo; each present voice
// gets its own track on channel voice-1, named after its instrument.
func Build(ts *score.TimedScore) (*smf.SMF, error) {
	if ts == nil {
		return nil, errors.New("nil timed score")
	}
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(uint16(ts.TicksPerWhole / 4))

	var conductor smf.Track
	if ts.Title != "" {
		conductor.Add(0, smf.MetaTrackSequenceName(ts.Title))
	}
	conductor.Add(0, smf.MetaTempo(float64(ts.Tempo)))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return nil, errors.Wrap(err, "add conductor track")
	}

	for i := 1; i <= 3; i++ {
		v := ts.Voice(i)
		if v == nil {
			continue
		}
		if err := s.Add(voiceTrack(v)); err != nil {
			return nil, errors.Wrapf(err, "add voice %d track", i)
		}
	}
	return s, nil
}

func voiceTrack(v *score.TimedVoice) smf.Track {
	var tr smf.Track
	ch := uint8(v.Index - 1)
	if v.Instrument != nil {
		tr.Add(0, smf.MetaTrackSequenceName(v.Instrument.Name))
	}
	var delta uint32
	for _, ev := range v.Events {
		if !ev.Sounding() {
			delta += uint32(ev.Ticks)
			continue
		}
		key := uint8(min(max(ev.Pitch, 0), 127))
		if ev.Kind == score.EventNoise {
			key = noiseKey
		}
		tr.Add(delta, midi.NoteOn(ch, key, velocity))
		tr.Add(uint32(ev.Ticks), midi.NoteOff(ch, key))
		delta = 0
	}
	tr.Close(delta)
	return tr
}

// Write encodes ts to w.
func Write(w io.Writer, ts *score.TimedScore) error {
	s, err := Build(ts)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return errors.Wrap(err, "write midi")
	}
	return nil
}

// WriteFile encodes ts to a new file at path.
func WriteFile(path string, ts *score.TimedScore) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Write(f, ts); err != nil {
		f.Close()
		return errors.Wrapf(err, "export %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
