package sequencer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/sidscore-go/internal/frames"
	"github.com/cbegin/sidscore-go/internal/score"
	"github.com/cbegin/sidscore-go/internal/sid"
)

func timedScore(voices map[int]*score.TimedVoice) *score.TimedScore {
	return &score.TimedScore{
		Tempo:         120,
		TicksPerWhole: score.TicksPerWhole,
		System:        score.PAL,
		Tables:        map[string]*score.Table{},
		Voices:        voices,
	}
}

func oneVoice(instr *score.Instrument, events ...score.TimedEvent) *score.TimedScore {
	return timedScore(map[int]*score.TimedVoice{1: {Index: 1, Instrument: instr, Events: events}})
}

func lead() *score.Instrument {
	return &score.Instrument{Name: "lead", Wave: score.WaveSaw, ADSR: score.ADSR{Sustain: 15}}
}

func energy(buf []float32) float64 {
	var e float64
	for _, s := range buf {
		e += math.Abs(float64(s))
	}
	return e
}

func TestSequencerRendersNote(t *testing.T) {
	seq := New(oneVoice(lead(), score.NoteEvent(69, 48, score.GateRetrigger)), Options{})
	buf := make([]float32, DefaultSampleRate/4)
	seq.Process(buf, nil)
	if energy(buf) == 0 {
		t.Fatalf("expected non-zero audio energy")
	}
	for i, s := range buf {
		if s > 1 || s < -1 {
			t.Fatalf("sample %d out of range: %f", i, s)
		}
	}
}

func TestSequencerFinishes(t *testing.T) {
	// A quarter note at 120 BPM lasts 25 frames, about half a second.
	seq := New(oneVoice(lead(), score.NoteEvent(69, 48, score.GateRetrigger)), Options{})
	buf := make([]float32, 512)
	seq.Process(buf, nil)
	require.False(t, seq.Done())

	blocks := 1
	for !seq.Done() && blocks < 200 {
		seq.Process(buf, nil)
		blocks++
	}
	require.True(t, seq.Done())
	assert.InDelta(t, 44, blocks, 2)
}

func TestSequencerSilentWithoutVoices(t *testing.T) {
	seq := New(timedScore(nil), Options{})
	buf := make([]float32, 512)
	seq.Process(buf, nil)
	assert.True(t, seq.Done())
	assert.Zero(t, energy(buf))
}

func TestSequencerRestIsSilent(t *testing.T) {
	seq := New(oneVoice(lead(), score.RestEvent(48)), Options{})
	buf := make([]float32, 4096)
	seq.Process(buf, nil)
	assert.Zero(t, energy(buf))
}

func TestSequencerNoiseVoice(t *testing.T) {
	drum := &score.Instrument{Name: "drum", Wave: score.WaveNoise, ADSR: score.ADSR{Decay: 6}}
	seq := New(oneVoice(drum, score.NoiseEvent(24, score.GateRetrigger)), Options{})
	buf := make([]float32, 4096)
	seq.Process(buf, nil)
	assert.NotZero(t, energy(buf))
	assert.Equal(t, score.WaveNoise, seq.voices[0].wave)
}

func TestSequencerPerVoiceBuffers(t *testing.T) {
	seq := New(oneVoice(lead(), score.NoteEvent(57, 48, score.GateRetrigger)), Options{})
	mix := make([]float32, 4096)
	var voices [NumVoices][]float32
	for i := range voices {
		voices[i] = make([]float32, len(mix))
	}
	seq.Process(mix, &voices)
	assert.NotZero(t, energy(voices[0]))
	assert.Zero(t, energy(voices[1]))
	assert.Zero(t, energy(voices[2]))
}

func TestSequencerPanicsOnMalformedStream(t *testing.T) {
	bad := [NumVoices][]frames.Event{
		{frames.Terminator, {Frames: 10, Freq: 100, Ctrl: sid.CtrlSaw | sid.CtrlGate, BaseNote: 60}},
		{frames.Terminator},
		{frames.Terminator},
	}
	assert.Panics(t, func() {
		NewWithFrames(timedScore(nil), bad, Options{})
	})
}

func TestAutoOversample(t *testing.T) {
	plain := New(oneVoice(lead(), score.NoteEvent(60, 48, score.GateRetrigger)), Options{})
	assert.Equal(t, 2, plain.Oversample())

	ring := lead()
	ring.Wave = score.WaveTri
	ring.Ring = true
	withRing := New(oneVoice(ring, score.NoteEvent(60, 48, score.GateRetrigger)), Options{})
	assert.Equal(t, 4, withRing.Oversample())

	forced := New(oneVoice(ring, score.NoteEvent(60, 48, score.GateRetrigger)), Options{Oversample: 1})
	assert.Equal(t, 1, forced.Oversample())
}

// renderUntil renders one output sample at a time and reports whether the
// envelope of voice 1 was seen releasing.
func sawRelease(seq *Sequencer, samples int) bool {
	buf := make([]float32, 1)
	for i := 0; i < samples; i++ {
		seq.Process(buf, nil)
		if seq.voices[0].env.State() == sid.EnvRelease {
			return true
		}
	}
	return false
}

func TestLegatoHoldDoesNotRelease(t *testing.T) {
	held := New(oneVoice(lead(),
		score.NoteEvent(60, 48, score.GateRetrigger),
		score.NoteEvent(62, 48, score.GateHold),
	), Options{})
	// Stop short of the end of the second note.
	assert.False(t, sawRelease(held, DefaultSampleRate*9/10))

	retrig := New(oneVoice(lead(),
		score.NoteEvent(60, 48, score.GateRetrigger),
		score.NoteEvent(62, 48, score.GateRetrigger),
	), Options{})
	assert.True(t, sawRelease(retrig, DefaultSampleRate*9/10))
}

func TestPulseWidthSweepIsClamped(t *testing.T) {
	instr := &score.Instrument{
		Name:    "pwm",
		Wave:    score.WavePulse,
		ADSR:    score.ADSR{Sustain: 15},
		PW:      score.Int(0x100),
		PWMin:   score.Int(0x200),
		PWMax:   score.Int(0x100),
		PWSweep: 0x10,
	}
	seq := New(oneVoice(instr, score.NoteEvent(60, 96, score.GateRetrigger)), Options{})
	buf := make([]float32, 1)
	seq.Process(buf, nil)
	v := seq.voices[0]
	assert.Equal(t, 0x100, v.pwMin)
	assert.Equal(t, 0x200, v.pwMax)
	assert.GreaterOrEqual(t, v.pw, 0x100)

	seq.Process(make([]float32, DefaultSampleRate/2), nil)
	assert.Equal(t, 0x200, v.pw)
}

func TestWaveTableSteps(t *testing.T) {
	ts := oneVoice(&score.Instrument{Name: "arp", Wave: score.WaveSaw, ADSR: score.ADSR{Sustain: 15}, WaveTable: "w"},
		score.NoteEvent(60, 96, score.GateRetrigger))
	ts.Tables["w"] = &score.Table{Name: "w", Type: score.TableWave, Steps: []score.TableStep{
		{WaveSet: true, Value: int(score.WaveNoise), Frames: 1},
		{WaveSet: true, Value: int(score.WavePulse), Hold: true},
	}}
	seq := New(ts, Options{})
	seq.Process(make([]float32, 1), nil)
	assert.Equal(t, score.WaveNoise, seq.voices[0].wave)

	seq.Process(make([]float32, 2000), nil)
	assert.Equal(t, score.WavePulse, seq.voices[0].wave)
}

func TestWaveTableRelativeNote(t *testing.T) {
	ts := oneVoice(&score.Instrument{Name: "arp", Wave: score.WaveSaw, ADSR: score.ADSR{Sustain: 15}, WaveTable: "w"},
		score.NoteEvent(60, 96, score.GateRetrigger))
	ts.Tables["w"] = &score.Table{Name: "w", Type: score.TableWave, Steps: []score.TableStep{
		{NoteMode: score.NoteRel, Note: 12, Frames: 1},
		{NoteMode: score.NoteAbs, Note: 200, Hold: true},
	}}
	seq := New(ts, Options{})
	seq.Process(make([]float32, 1), nil)
	assert.Equal(t, 72, seq.voices[0].noteBase)

	seq.Process(make([]float32, 2000), nil)
	assert.Equal(t, 127, seq.voices[0].noteBase)
}

func TestWaveTableRelativeNotesAccumulate(t *testing.T) {
	ts := oneVoice(&score.Instrument{Name: "arp", Wave: score.WaveSaw, ADSR: score.ADSR{Sustain: 15}, WaveTable: "w"},
		score.NoteEvent(60, 96, score.GateRetrigger))
	ts.Tables["w"] = &score.Table{Name: "w", Type: score.TableWave, Steps: []score.TableStep{
		{NoteMode: score.NoteRel, Note: 12, Frames: 1},
		{NoteMode: score.NoteRel, Note: 12, Frames: 1},
		{NoteMode: score.NoteRel, Note: 12, Hold: true},
	}}
	seq := New(ts, Options{})
	seq.Process(make([]float32, 1), nil)
	assert.Equal(t, 72, seq.voices[0].noteBase)

	// Two frames at 2x oversampling, about 1764 output samples.
	seq.Process(make([]float32, 2000), nil)
	assert.Equal(t, 96, seq.voices[0].noteBase)
}

func TestPulseWidthFrozenDuringRest(t *testing.T) {
	instr := &score.Instrument{
		Name:    "pwm",
		Wave:    score.WavePulse,
		ADSR:    score.ADSR{Sustain: 15},
		PW:      score.Int(0x100),
		PWSweep: 0x10,
	}
	seq := New(oneVoice(instr,
		score.NoteEvent(60, 48, score.GateRetrigger),
		score.RestEvent(48),
	), Options{})
	v := seq.voices[0]
	buf := make([]float32, 1)
	seq.Process(buf, nil)
	require.True(t, v.active)
	for i := 0; v.active && i < DefaultSampleRate; i++ {
		seq.Process(buf, nil)
	}
	require.False(t, v.active)
	pw := v.pw
	assert.Greater(t, pw, 0x100)

	seq.Process(make([]float32, 5000), nil)
	require.False(t, v.active)
	assert.Equal(t, pw, v.pw)
}

func TestGateTableControlsGate(t *testing.T) {
	ts := oneVoice(&score.Instrument{Name: "stab", Wave: score.WaveSaw, ADSR: score.ADSR{Sustain: 15}, GateTable: "g"},
		score.NoteEvent(60, 96, score.GateRetrigger))
	ts.Tables["g"] = &score.Table{Name: "g", Type: score.TableGate, Steps: []score.TableStep{
		{Value: 1, Frames: 2},
		{Value: 0, Hold: true},
	}}
	seq := New(ts, Options{})
	seq.Process(make([]float32, 1), nil)
	assert.True(t, seq.voices[0].gateOn)

	seq.Process(make([]float32, 4000), nil)
	assert.False(t, seq.voices[0].gateOn)
	assert.Equal(t, sid.EnvRelease, seq.voices[0].env.State())
}

func TestPitchTableOffsetsNote(t *testing.T) {
	ts := oneVoice(&score.Instrument{Name: "vib", Wave: score.WaveTri, ADSR: score.ADSR{Sustain: 15}, PitchTable: "p"},
		score.NoteEvent(60, 96, score.GateRetrigger))
	ts.Tables["p"] = &score.Table{Name: "p", Type: score.TablePitch, Loop: true, Steps: []score.TableStep{
		{Value: 1, Frames: 1},
		{Value: -1, Frames: 1},
	}}
	seq := New(ts, Options{})
	seq.Process(make([]float32, 1), nil)
	assert.Equal(t, 1, seq.voices[0].pitchOffset)

	// One frame is about 880 output samples at 2x oversampling.
	seq.Process(make([]float32, 1000), nil)
	assert.Equal(t, -1, seq.voices[0].pitchOffset)
	seq.Process(make([]float32, 880), nil)
	assert.Equal(t, 1, seq.voices[0].pitchOffset)
}

func TestFilterTableSetsCutoff(t *testing.T) {
	instr := lead()
	instr.Filter = score.FilterLP
	instr.Cutoff = score.Int(100)
	instr.Resonance = score.Int(8)
	instr.FilterTable = "f"
	ts := oneVoice(instr, score.NoteEvent(60, 96, score.GateRetrigger))
	ts.Tables["f"] = &score.Table{Name: "f", Type: score.TableFilter, Steps: []score.TableStep{
		{Value: 500, Frames: 1},
		{Value: 1000, Hold: true},
	}}
	seq := New(ts, Options{})
	seq.Process(make([]float32, 1), nil)
	assert.Equal(t, 500, seq.filter.f.Cutoff())

	seq.Process(make([]float32, 2000), nil)
	assert.Equal(t, 1000, seq.filter.f.Cutoff())
	assert.Equal(t, score.FilterLP, seq.filter.f.Mode())
}

func TestLowpassFilterAttenuates(t *testing.T) {
	dry := New(oneVoice(lead(), score.NoteEvent(81, 48, score.GateRetrigger)), Options{})
	instr := lead()
	instr.Filter = score.FilterLP
	instr.Cutoff = score.Int(0)
	wet := New(oneVoice(instr, score.NoteEvent(81, 48, score.GateRetrigger)), Options{})

	a := make([]float32, 8192)
	b := make([]float32, 8192)
	dry.Process(a, nil)
	wet.Process(b, nil)
	assert.Less(t, energy(b), energy(a)/2)
}

func TestSequencerCustomPostStage(t *testing.T) {
	seq := New(oneVoice(lead(), score.NoteEvent(69, 48, score.GateRetrigger)), Options{Post: mute{}})
	buf := make([]float32, 2048)
	seq.Process(buf, nil)
	assert.Zero(t, energy(buf))
}

type mute struct{}

func (mute) Process(float64) float64 { return 0 }
func (mute) Reset()                  {}
