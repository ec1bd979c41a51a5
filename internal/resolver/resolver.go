// Package resolver expands a score's structural constructs into flat,
// tick-timed event lists per voice.
package resolver

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cbegin/sidscore-go/internal/score"
)

const (
	MinTempo = 1
	MaxTempo = 300

	// swingPairTicks is the length of an eighth-note pair.
	swingPairTicks = 2 * score.TicksPerWhole / 8
)

// Resolve turns a score into a timed score. Warnings are returned alongside a
// successful result; any error aborts resolution and is reported as *Error
// carrying every accumulated error.
func Resolve(s *score.Score) (*score.TimedScore, Diagnostics, error) {
	var diag Diagnostics

	switch {
	case s.Tempo == 0:
		diag.errorf("TEMPO missing")
	case s.Tempo < MinTempo || s.Tempo > MaxTempo:
		diag.errorf("TEMPO out of range %d..%d", MinTempo, MaxTempo)
	}

	for _, idx := range sortedVoiceIndexes(s.Voices) {
		if idx < 1 || idx > 3 {
			diag.errorf("VOICE %d out of range 1..3", idx)
		}
	}

	voices := make(map[int]*score.TimedVoice)
	var filterVoices []string
	for v := 1; v <= 3; v++ {
		voice := s.Voices[v]
		if voice == nil {
			continue
		}
		instr := s.Instruments[voice.Instrument]
		if instr == nil {
			diag.errorf("VOICE %d references undefined instrument: %s", v, voice.Instrument)
			continue
		}
		if instr.Filter != 0 {
			filterVoices = append(filterVoices, fmt.Sprintf("VOICE %d=%s", v, instr.Filter))
		}
		checkInstrument(instr, s.Tables, &diag)

		r := &voiceResolver{voice: v, instr: instr, swing: s.Swing, length: score.L8, diag: &diag}
		events, ok := r.resolve(voice.Items)
		if !ok {
			continue
		}
		voices[v] = &score.TimedVoice{Index: v, Instrument: instr, Events: events}
	}

	if len(filterVoices) > 1 {
		diag.warnf("Multiple FILTER modes across voices: %s. SID filter is global; last update wins.",
			strings.Join(filterVoices, ", "))
	}

	if diag.HasErrors() {
		return nil, diag, &Error{Diagnostics: diag}
	}

	system := s.System
	if system == "" {
		system = score.PAL
	}
	return &score.TimedScore{
		Title:         s.Title,
		Author:        s.Author,
		Released:      s.Released,
		Tempo:         s.Tempo,
		TicksPerWhole: score.TicksPerWhole,
		Swing:         s.Swing,
		System:        system,
		Tables:        s.Tables,
		Voices:        voices,
	}, diag, nil
}

func sortedVoiceIndexes(m map[int]*score.Voice) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

type tableRef struct {
	keyword string
	kind    string
	name    string
	want    score.TableType
}

func checkInstrument(instr *score.Instrument, tables map[string]*score.Table, diag *Diagnostics) {
	refs := []tableRef{
		{"PWSEQ", "PW", instr.PWTable, score.TablePW},
		{"WAVESEQ", "wave", instr.WaveTable, score.TableWave},
		{"GATESEQ", "gate", instr.GateTable, score.TableGate},
		{"PITCHSEQ", "pitch", instr.PitchTable, score.TablePitch},
		{"FILTERSEQ", "filter", instr.FilterTable, score.TableFilter},
	}
	for _, ref := range refs {
		if ref.name == "" {
			continue
		}
		t := tables[ref.name]
		switch {
		case t == nil:
			diag.errorf("Instrument '%s': %s references undefined TABLE: %s", instr.Name, ref.keyword, ref.name)
		case t.Type != ref.want:
			diag.errorf("Instrument '%s': %s references non-%s TABLE: %s", instr.Name, ref.keyword, ref.kind, ref.name)
		}
	}

	hasPW := instr.PW != nil || instr.PWMin != nil || instr.PWMax != nil || instr.PWSweep != 0 || instr.PWTable != ""
	if hasPW && !instr.Wave.Has(score.WavePulse) {
		diag.warnf("Instrument '%s': PW/PWM set but wave is %s (ignored by SID).", instr.Name, instr.Wave)
	}
	hasFilter := instr.Cutoff != nil || instr.Resonance != nil || instr.FilterTable != ""
	if hasFilter && instr.Filter == 0 {
		diag.warnf("Instrument '%s': FILTER is OFF but filter parameters are set (ignored).", instr.Name)
	}
}

// voiceResolver carries the walk state of one voice.
type voiceResolver struct {
	voice      int
	instr      *score.Instrument
	diag       *Diagnostics
	length     score.Length
	swing      score.Swing
	swingPhase int
	inLegato   bool
}

func flatten(items []score.VoiceItem, out []score.VoiceItem) []score.VoiceItem {
	for _, it := range items {
		if rep, ok := it.(score.Repeat); ok {
			for k := 0; k < rep.Times; k++ {
				out = flatten(rep.Items, out)
			}
			continue
		}
		out = append(out, it)
	}
	return out
}

// resolve walks one item list. It stops at the first structural error of the
// voice and reports ok=false.
func (r *voiceResolver) resolve(items []score.VoiceItem) ([]score.TimedEvent, bool) {
	flat := flatten(items, nil)
	var out []score.TimedEvent
	lastWasNote := false

	for i := 0; i < len(flat); i++ {
		switch it := flat[i].(type) {
		case score.SetLength:
			if !it.Length.Valid() {
				r.diag.errorf("Unsupported length L%d (VOICE %d)", int(it.Length), r.voice)
				return nil, false
			}
			r.length = it.Length

		case score.SetSwing:
			r.swing = it.Swing
			r.swingPhase = 0

		case score.LegatoScope:
			if r.inLegato {
				r.diag.errorf("Nested (leg) scopes not allowed (VOICE %d)", r.voice)
				return nil, false
			}
			r.inLegato = true
			inner, ok := r.resolve(it.Items)
			r.inLegato = false
			if !ok {
				return nil, false
			}
			out = append(out, inner...)
			lastWasNote = len(out) > 0 && out[len(out)-1].Kind == score.EventNote

		case score.Tuplet:
			events, ok := r.tuplet(it, lastWasNote)
			if !ok {
				return nil, false
			}
			out = append(out, events...)
			lastWasNote = events[len(events)-1].Sounding()

		case score.Tie:
			if len(out) == 0 || out[len(out)-1].Kind != score.EventNote {
				r.diag.errorf("Tie '&' without previous NOTE in VOICE %d", r.voice)
				return nil, false
			}
			var next score.Note
			ok := i+1 < len(flat)
			if ok {
				next, ok = flat[i+1].(score.Note)
			}
			if !ok {
				r.diag.errorf("Tie '&' must be followed by NOTE in VOICE %d", r.voice)
				return nil, false
			}
			prev := &out[len(out)-1]
			if prev.Pitch != next.Pitch {
				r.diag.errorf("Tie '&' pitch mismatch in VOICE %d", r.voice)
				return nil, false
			}
			add, ok := r.duration(next.Length, next.Dotted, false)
			if !ok {
				return nil, false
			}
			*prev = score.NoteEvent(prev.Pitch, prev.Ticks+add, score.GateHold)
			i++
			lastWasNote = true

		case score.Note:
			if r.instr.Wave.Has(score.WaveNoise) {
				r.diag.warnf("NOTE in NOISE voice (VOICE %d): pitch may be ignored by backend", r.voice)
			}
			ticks, ok := r.duration(it.Length, it.Dotted, true)
			if !ok {
				return nil, false
			}
			out = append(out, score.NoteEvent(it.Pitch, ticks, r.gate(lastWasNote)))
			lastWasNote = true
			r.advanceSwing(it.Length)

		case score.Rest:
			ticks, ok := r.duration(it.Length, it.Dotted, true)
			if !ok {
				return nil, false
			}
			out = append(out, score.RestEvent(ticks))
			lastWasNote = false
			r.advanceSwing(it.Length)

		case score.Hit:
			if !r.instr.Wave.Has(score.WaveNoise) {
				r.diag.errorf("'X' in non-NOISE instrument (VOICE %d)", r.voice)
				return nil, false
			}
			ticks, ok := r.duration(it.Length, it.Dotted, true)
			if !ok {
				return nil, false
			}
			out = append(out, score.NoiseEvent(ticks, r.gate(lastWasNote)))
			lastWasNote = true
			r.advanceSwing(it.Length)

		default:
			r.diag.errorf("Unsupported item %T (VOICE %d)", it, r.voice)
			return nil, false
		}
	}
	return out, true
}

// tuplet spreads two default-length units over three logical events, giving
// remainder ticks to the earliest ones. Swing does not apply and the swing
// phase does not advance.
func (r *voiceResolver) tuplet(tup score.Tuplet, lastWasNote bool) ([]score.TimedEvent, bool) {
	var logical []score.TimedEvent
	items := tup.Items
	for i := 0; i < len(items); i++ {
		switch it := items[i].(type) {
		case score.Tie:
			// a tie inside a tuplet folds the following note into the previous one
			i++
		case score.Note:
			logical = append(logical, score.TimedEvent{Kind: score.EventNote, Pitch: it.Pitch})
		case score.Rest:
			logical = append(logical, score.TimedEvent{Kind: score.EventRest})
		case score.Hit:
			if !r.instr.Wave.Has(score.WaveNoise) {
				r.diag.errorf("'X' in non-NOISE instrument (VOICE %d)", r.voice)
				return nil, false
			}
			logical = append(logical, score.TimedEvent{Kind: score.EventNoise})
		default:
			r.diag.errorf("Unsupported item %T in tuplet (VOICE %d)", it, r.voice)
			return nil, false
		}
	}
	if len(logical) != 3 {
		r.diag.errorf("Tuplet must contain 3 events, got %d (VOICE %d)", len(logical), r.voice)
		return nil, false
	}

	total := 2 * r.length.Ticks()
	each := total / 3
	rem := total - each*3
	out := make([]score.TimedEvent, 0, 3)
	for k, ev := range logical {
		ticks := each
		if k < rem {
			ticks++
		}
		switch ev.Kind {
		case score.EventNote:
			out = append(out, score.NoteEvent(ev.Pitch, ticks, r.gate(lastWasNote)))
		case score.EventRest:
			out = append(out, score.RestEvent(ticks))
		case score.EventNoise:
			out = append(out, score.NoiseEvent(ticks, r.gate(lastWasNote)))
		}
		lastWasNote = ev.Sounding()
	}
	return out, true
}

func (r *voiceResolver) gate(lastWasNote bool) score.GateMode {
	if (r.inLegato || r.instr.Gate == score.Legato) && lastWasNote {
		return score.GateHold
	}
	return score.GateRetrigger
}

func (r *voiceResolver) effectiveLength(l score.Length) score.Length {
	if l == 0 {
		return r.length
	}
	return l
}

func (r *voiceResolver) duration(explicit score.Length, dotted, applySwing bool) (int, bool) {
	l := r.effectiveLength(explicit)
	if !l.Valid() {
		r.diag.errorf("Unsupported length L%d (VOICE %d)", int(l), r.voice)
		return 0, false
	}
	ticks := l.Ticks()
	if dotted {
		ticks += ticks / 2
	}
	if applySwing && l == score.L8 && r.swing.Enabled() {
		if dotted {
			r.diag.warnf("Dotted 8th with swing: swing ignored for this event (VOICE %d)", r.voice)
			return max(1, ticks), true
		}
		first := int(math.Round(float64(swingPairTicks) * float64(r.swing) / 100))
		if r.swingPhase == 0 {
			ticks = first
		} else {
			ticks = swingPairTicks - first
		}
	}
	return max(1, ticks), true
}

func (r *voiceResolver) advanceSwing(explicit score.Length) {
	if r.effectiveLength(explicit) == score.L8 && r.swing.Enabled() {
		r.swingPhase ^= 1
	}
}
