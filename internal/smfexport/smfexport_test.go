package smfexport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/sidscore-go/internal/score"
)

type note struct {
	on      bool
	ch, key uint8
	abs     uint32
}

func notes(tr smf.Track) []note {
	var out []note
	var abs uint32
	for _, ev := range tr {
		abs += ev.Delta
		var ch, key, vel uint8
		msg := midi.Message(ev.Message)
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			out = append(out, note{on: true, ch: ch, key: key, abs: abs})
		case msg.GetNoteEnd(&ch, &key):
			out = append(out, note{ch: ch, key: key, abs: abs})
		}
	}
	return out
}

func timed() *score.TimedScore {
	return &score.TimedScore{
		Title:         "Demo",
		Tempo:         140,
		TicksPerWhole: score.TicksPerWhole,
		System:        score.PAL,
		Voices: map[int]*score.TimedVoice{
			1: {Index: 1, Instrument: &score.Instrument{Name: "lead"}, Events: []score.TimedEvent{
				score.NoteEvent(60, 48, score.GateRetrigger),
				score.RestEvent(24),
				score.NoteEvent(64, 24, score.GateRetrigger),
				score.NoteEvent(67, 24, score.GateHold),
			}},
			3: {Index: 3, Instrument: &score.Instrument{Name: "drum"}, Events: []score.TimedEvent{
				score.NoiseEvent(12, score.GateRetrigger),
			}},
		},
	}
}

func TestWriteReadBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, timed()))

	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, smf.MetricTicks(48), s.TimeFormat)
	require.Len(t, s.Tracks, 3)

	var bpm float64
	found := false
	for _, ev := range s.Tracks[0] {
		if ev.Message.GetMetaTempo(&bpm) {
			found = true
		}
	}
	require.True(t, found, "expected a tempo event")
	assert.InDelta(t, 140, bpm, 0.01)

	assert.Equal(t, []note{
		{on: true, ch: 0, key: 60, abs: 0},
		{ch: 0, key: 60, abs: 48},
		{on: true, ch: 0, key: 64, abs: 72},
		{ch: 0, key: 64, abs: 96},
		{on: true, ch: 0, key: 67, abs: 96},
		{ch: 0, key: 67, abs: 120},
	}, notes(s.Tracks[1]))

	assert.Equal(t, []note{
		{on: true, ch: 2, key: noiseKey, abs: 0},
		{ch: 2, key: noiseKey, abs: 12},
	}, notes(s.Tracks[2]))
}

func TestBuildNil(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mid")
	require.NoError(t, WriteFile(path, timed()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "MThd", string(data[:4]))

	err = WriteFile(filepath.Join(t.TempDir(), "no", "out.mid"), timed())
	assert.Error(t, err)
}
