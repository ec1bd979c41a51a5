package resolver

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/sidscore-go/internal/score"
)

func lead() *score.Instrument {
	return &score.Instrument{Name: "lead", Wave: score.WaveTri, ADSR: score.ADSR{Decay: 9}}
}

func oneVoice(instr *score.Instrument, items ...score.VoiceItem) *score.Score {
	return &score.Score{
		Tempo:       120,
		Instruments: map[string]*score.Instrument{instr.Name: instr},
		Voices:      map[int]*score.Voice{1: {Index: 1, Instrument: instr.Name, Items: items}},
	}
}

func mustResolve(t *testing.T, s *score.Score) (*score.TimedScore, Diagnostics) {
	t.Helper()
	ts, diag, err := Resolve(s)
	require.NoError(t, err)
	return ts, diag
}

func ticksOf(events []score.TimedEvent) []int {
	out := make([]int, len(events))
	for i, ev := range events {
		out[i] = ev.Ticks
	}
	return out
}

func TestResolveSingleQuarterNote(t *testing.T) {
	ts, diag := mustResolve(t, oneVoice(lead(), score.Note{Pitch: 60, Length: score.L4}))
	assert.Empty(t, diag)
	assert.Equal(t, score.PAL, ts.System)
	assert.Equal(t, 192, ts.TicksPerWhole)
	require.Len(t, ts.Voice(1).Events, 1)
	assert.Equal(t, score.NoteEvent(60, 48, score.GateRetrigger), ts.Voice(1).Events[0])
}

func TestResolveDeterministic(t *testing.T) {
	s := oneVoice(lead(),
		score.SetSwing{Swing: 60},
		score.Repeat{Times: 2, Items: []score.VoiceItem{
			score.Note{Pitch: 60}, score.Tie{}, score.Note{Pitch: 60, Length: score.L16},
			score.Tuplet{Items: []score.VoiceItem{score.Note{Pitch: 62}, score.Rest{}, score.Note{Pitch: 64}}},
			score.LegatoScope{Items: []score.VoiceItem{score.Note{Pitch: 65}, score.Note{Pitch: 67, Dotted: true}}},
		}},
	)
	a, _ := mustResolve(t, s)
	b, _ := mustResolve(t, s)
	assert.True(t, reflect.DeepEqual(a.Voice(1).Events, b.Voice(1).Events))
}

func TestSwingSplitsEighthPairs(t *testing.T) {
	cases := []struct {
		percent     score.Swing
		first, rest int
	}{
		{75, 36, 12},
		{60, 29, 19},
		{50, 24, 24},
	}
	for _, tc := range cases {
		ts, _ := mustResolve(t, oneVoice(lead(),
			score.SetSwing{Swing: tc.percent},
			score.Note{Pitch: 60}, score.Note{Pitch: 62}, score.Note{Pitch: 64}, score.Note{Pitch: 65},
		))
		got := ticksOf(ts.Voice(1).Events)
		assert.Equal(t, []int{tc.first, tc.rest, tc.first, tc.rest}, got, "swing %d", tc.percent)
		assert.Equal(t, 48, got[0]+got[1])
	}
}

func TestSwingFromScoreDefaultAndReset(t *testing.T) {
	s := oneVoice(lead(),
		score.Note{Pitch: 60},
		score.SetSwing{Swing: 75},
		score.Note{Pitch: 60},
		score.Note{Pitch: 60, Length: score.L4},
		score.Note{Pitch: 60},
	)
	s.Swing = 75
	ts, _ := mustResolve(t, s)
	// SetSwing restarts the pair; quarter notes leave the phase alone.
	assert.Equal(t, []int{36, 36, 48, 12}, ticksOf(ts.Voice(1).Events))
}

func TestDottedEighthIgnoresSwing(t *testing.T) {
	ts, diag := mustResolve(t, oneVoice(lead(), score.SetSwing{Swing: 75}, score.Note{Pitch: 60, Dotted: true}))
	assert.Equal(t, []int{36}, ticksOf(ts.Voice(1).Events))
	require.Len(t, diag.Warnings(), 1)
	assert.Contains(t, diag[0].Text, "Dotted 8th with swing")
}

func TestTupletSumsToTwoUnits(t *testing.T) {
	for _, l := range []score.Length{score.L4, score.L8, score.L16, score.L32} {
		ts, _ := mustResolve(t, oneVoice(lead(),
			score.SetLength{Length: l},
			score.SetSwing{Swing: 70},
			score.Tuplet{Items: []score.VoiceItem{score.Note{Pitch: 60}, score.Note{Pitch: 62}, score.Note{Pitch: 64}}},
		))
		got := ticksOf(ts.Voice(1).Events)
		require.Len(t, got, 3)
		assert.Equal(t, 2*l.Ticks(), got[0]+got[1]+got[2], "L%d", l)
		assert.GreaterOrEqual(t, got[0], got[2])
	}
}

func TestTupletShortestLength(t *testing.T) {
	ts, _ := mustResolve(t, oneVoice(lead(),
		score.SetLength{Length: score.L64},
		score.Tuplet{Items: []score.VoiceItem{score.Note{Pitch: 60}, score.Rest{}, score.Note{Pitch: 64}}},
	))
	assert.Equal(t, []int{2, 2, 2}, ticksOf(ts.Voice(1).Events))
}

func TestTupletWithTieCountsLogicalEvents(t *testing.T) {
	ts, _ := mustResolve(t, oneVoice(lead(),
		score.SetLength{Length: score.L4},
		score.Tuplet{Items: []score.VoiceItem{
			score.Note{Pitch: 60}, score.Tie{}, score.Note{Pitch: 60},
			score.Note{Pitch: 62}, score.Note{Pitch: 64},
		}},
	))
	events := ts.Voice(1).Events
	require.Len(t, events, 3)
	assert.Equal(t, 96, events[0].Ticks+events[1].Ticks+events[2].Ticks)
}

func TestTupletWrongCountFails(t *testing.T) {
	_, _, err := Resolve(oneVoice(lead(),
		score.Tuplet{Items: []score.VoiceItem{score.Note{Pitch: 60}, score.Note{Pitch: 62}}},
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tuplet")
}

func TestTieMergesDurationsWithHold(t *testing.T) {
	ts, _ := mustResolve(t, oneVoice(lead(),
		score.Note{Pitch: 60, Length: score.L4},
		score.Tie{},
		score.Note{Pitch: 60, Length: score.L8, Dotted: true},
		score.Note{Pitch: 62},
	))
	events := ts.Voice(1).Events
	require.Len(t, events, 2)
	assert.Equal(t, score.NoteEvent(60, 48+36, score.GateHold), events[0])
	assert.Equal(t, score.GateRetrigger, events[1].Gate)
}

func TestTieAddsUnswungDuration(t *testing.T) {
	ts, _ := mustResolve(t, oneVoice(lead(),
		score.SetSwing{Swing: 75},
		score.Note{Pitch: 60}, score.Tie{}, score.Note{Pitch: 60},
		score.Note{Pitch: 62},
	))
	// the tied eighth keeps its straight length and the pair phase does not move
	assert.Equal(t, []int{36 + 24, 12}, ticksOf(ts.Voice(1).Events))
}

func TestTieErrors(t *testing.T) {
	cases := map[string][]score.VoiceItem{
		"without previous NOTE": {score.Rest{}, score.Tie{}, score.Note{Pitch: 60}},
		"must be followed":      {score.Note{Pitch: 60}, score.Tie{}, score.Rest{}},
		"pitch mismatch":        {score.Note{Pitch: 60}, score.Tie{}, score.Note{Pitch: 61}},
	}
	for want, items := range cases {
		t.Run(want, func(t *testing.T) {
			_, _, err := Resolve(oneVoice(lead(), items...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), want)
		})
	}
}

func TestLegatoScopeHoldsAfterFirstNote(t *testing.T) {
	ts, _ := mustResolve(t, oneVoice(lead(),
		score.Note{Pitch: 55},
		score.LegatoScope{Items: []score.VoiceItem{score.Note{Pitch: 60}, score.Note{Pitch: 62}, score.Note{Pitch: 64}}},
		score.Note{Pitch: 65},
	))
	var gates []score.GateMode
	for _, ev := range ts.Voice(1).Events {
		gates = append(gates, ev.Gate)
	}
	assert.Equal(t, []score.GateMode{score.GateRetrigger, score.GateRetrigger, score.GateHold, score.GateHold, score.GateRetrigger}, gates)
}

func TestNestedLegatoFails(t *testing.T) {
	_, _, err := Resolve(oneVoice(lead(),
		score.LegatoScope{Items: []score.VoiceItem{score.LegatoScope{Items: []score.VoiceItem{score.Note{Pitch: 60}}}}},
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nested")
}

func TestLegatoInstrumentHoldsConsecutiveNotes(t *testing.T) {
	instr := lead()
	instr.Gate = score.Legato
	ts, _ := mustResolve(t, oneVoice(instr,
		score.Note{Pitch: 60}, score.Note{Pitch: 62}, score.Rest{}, score.Note{Pitch: 64},
	))
	events := ts.Voice(1).Events
	assert.Equal(t, score.GateRetrigger, events[0].Gate)
	assert.Equal(t, score.GateHold, events[1].Gate)
	assert.Equal(t, score.GateNone, events[2].Gate)
	assert.Equal(t, score.GateRetrigger, events[3].Gate)
}

func TestRepeatUnrollsLiterally(t *testing.T) {
	ts, _ := mustResolve(t, oneVoice(lead(),
		score.Repeat{Times: 3, Items: []score.VoiceItem{
			score.Note{Pitch: 60},
			score.Repeat{Times: 2, Items: []score.VoiceItem{score.Rest{Length: score.L16}}},
		}},
	))
	assert.Equal(t, []int{24, 12, 12, 24, 12, 12, 24, 12, 12}, ticksOf(ts.Voice(1).Events))
}

func TestNoiseHits(t *testing.T) {
	drum := &score.Instrument{Name: "drum", Wave: score.WaveNoise}
	ts, diag := mustResolve(t, oneVoice(drum, score.Hit{}, score.Hit{Length: score.L16}, score.Note{Pitch: 60}))
	events := ts.Voice(1).Events
	assert.Equal(t, score.NoiseEvent(24, score.GateRetrigger), events[0])
	assert.Equal(t, score.EventNoise, events[1].Kind)
	require.Len(t, diag.Warnings(), 1)
	assert.Contains(t, diag[0].Text, "NOTE in NOISE voice")

	_, _, err := Resolve(oneVoice(lead(), score.Hit{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-NOISE")
}

func TestTempoValidation(t *testing.T) {
	for _, tempo := range []int{0, -5, 301} {
		s := oneVoice(lead(), score.Note{Pitch: 60})
		s.Tempo = tempo
		_, _, err := Resolve(s)
		require.Error(t, err, "tempo %d", tempo)
		assert.Contains(t, err.Error(), "TEMPO")
	}
}

func TestTableReferenceErrorsAreCollected(t *testing.T) {
	instr := lead()
	instr.WaveTable = "missing"
	instr.PitchTable = "pw"
	s := oneVoice(instr, score.Note{Pitch: 60})
	s.Tempo = 400
	s.Tables = map[string]*score.Table{"pw": {Name: "pw", Type: score.TablePW}}

	_, diag, err := Resolve(s)
	require.Error(t, err)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Len(t, rerr.Diagnostics.Errors(), 3)
	assert.Len(t, diag.Errors(), 3)
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "resolve failed:"))
	assert.Contains(t, msg, "WAVESEQ references undefined TABLE: missing")
	assert.Contains(t, msg, "PITCHSEQ references non-pitch TABLE: pw")
}

func TestUndefinedInstrument(t *testing.T) {
	s := oneVoice(lead(), score.Note{Pitch: 60})
	s.Voices[2] = &score.Voice{Index: 2, Instrument: "ghost"}
	_, _, err := Resolve(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VOICE 2 references undefined instrument: ghost")
}

func TestUnusedParameterWarnings(t *testing.T) {
	instr := lead()
	instr.PWSweep = 8
	instr.Cutoff = score.Int(1024)
	ts, diag, err := Resolve(oneVoice(instr, score.Note{Pitch: 60}))
	require.NoError(t, err)
	require.NotNil(t, ts)
	require.Len(t, diag.Warnings(), 2)
	assert.Contains(t, diag[0].Text, "PW/PWM set but wave is TRI")
	assert.Contains(t, diag[1].Text, "FILTER is OFF")
}

func TestMultipleFilterVoicesWarnOnce(t *testing.T) {
	a := &score.Instrument{Name: "a", Wave: score.WaveSaw, Filter: score.FilterLP}
	b := &score.Instrument{Name: "b", Wave: score.WavePulse, Filter: score.FilterBP | score.FilterHP}
	s := &score.Score{
		Tempo:       100,
		Instruments: map[string]*score.Instrument{"a": a, "b": b},
		Voices: map[int]*score.Voice{
			1: {Index: 1, Instrument: "a", Items: []score.VoiceItem{score.Note{Pitch: 48}}},
			2: {Index: 2, Instrument: "b", Items: []score.VoiceItem{score.Note{Pitch: 52}}},
			3: {Index: 3, Instrument: "b", Items: []score.VoiceItem{score.Note{Pitch: 55}}},
		},
	}
	_, diag := mustResolve(t, s)
	require.Len(t, diag.Warnings(), 1)
	assert.Equal(t,
		"Multiple FILTER modes across voices: VOICE 1=LP, VOICE 2=BP+HP, VOICE 3=BP+HP. SID filter is global; last update wins.",
		diag[0].Text)
}
