// Package scorefile reads a score value from its JSON interchange form.
//
// The document mirrors the score model one to one:
//
//	{
//	  "title": "Demo", "tempo": 120, "system": "PAL", "swing": 60,
//	  "tables": {"arp": {"type": "wave", "loop": true,
//	             "steps": [{"wave": "PULSE", "note_rel": 12, "frames": 2}]}},
//	  "instruments": {"lead": {"wave": "PULSE", "adsr": [0, 9, 8, 4]}},
//	  "voices": {"1": {"instrument": "lead", "items": [
//	    {"note": "C4", "len": 8}, {"tie": true}, {"note": "C4"},
//	    {"rest": true, "len": 4, "dot": true}]}}
//	}
//
// Each item object selects exactly one kind: note, rest, hit, set_len,
// swing, tie, legato, tuplet or repeat.
package scorefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cbegin/sidscore-go/internal/score"
)

type document struct {
	Title       string                   `json:"title"`
	Author      string                   `json:"author"`
	Released    string                   `json:"released"`
	Tempo       int                      `json:"tempo"`
	Time        string                   `json:"time"`
	System      string                   `json:"system"`
	Swing       int                      `json:"swing"`
	Tables      map[string]tableDTO      `json:"tables"`
	Instruments map[string]instrumentDTO `json:"instruments"`
	Voices      map[string]voiceDTO      `json:"voices"`
}

type tableDTO struct {
	Type  string    `json:"type"`
	Loop  bool      `json:"loop"`
	Steps []stepDTO `json:"steps"`
}

type stepDTO struct {
	Value   int    `json:"value"`
	Wave    string `json:"wave"`
	Frames  int    `json:"frames"`
	Hold    bool   `json:"hold"`
	NoteAbs string `json:"note_abs"`
	NoteRel *int   `json:"note_rel"`
	Gate    *bool  `json:"gate"`
	Ring    *bool  `json:"ring"`
	Sync    *bool  `json:"sync"`
	Reset   bool   `json:"reset"`
}

type instrumentDTO struct {
	Wave        string `json:"wave"`
	ADSR        []int  `json:"adsr"`
	PW          *int   `json:"pw"`
	PWMin       *int   `json:"pw_min"`
	PWMax       *int   `json:"pw_max"`
	PWSweep     int    `json:"pw_sweep"`
	WaveTable   string `json:"wave_table"`
	PWTable     string `json:"pw_table"`
	GateTable   string `json:"gate_table"`
	PitchTable  string `json:"pitch_table"`
	Filter      string `json:"filter"`
	Cutoff      *int   `json:"cutoff"`
	Resonance   *int   `json:"resonance"`
	FilterTable string `json:"filter_table"`
	Gate        string `json:"gate"`
	GateMin     int    `json:"gate_min"`
	Sync        bool   `json:"sync"`
	Ring        bool   `json:"ring"`
}

type voiceDTO struct {
	Instrument string    `json:"instrument"`
	Items      []itemDTO `json:"items"`
}

type itemDTO struct {
	Note   string     `json:"note"`
	Rest   bool       `json:"rest"`
	Hit    bool       `json:"hit"`
	Len    int        `json:"len"`
	Dot    bool       `json:"dot"`
	SetLen int        `json:"set_len"`
	Swing  *int       `json:"swing"`
	Tie    bool       `json:"tie"`
	Legato []itemDTO  `json:"legato"`
	Tuplet []itemDTO  `json:"tuplet"`
	Repeat *repeatDTO `json:"repeat"`
}

type repeatDTO struct {
	Times int       `json:"times"`
	Items []itemDTO `json:"items"`
}

// Load reads and converts the score at path.
func Load(path string) (*score.Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read score %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load score %s", path)
	}
	return s, nil
}

func Parse(data []byte) (*score.Score, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one document. Unknown fields are rejected.
func Decode(r io.Reader) (*score.Score, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode score")
	}
	return doc.toScore()
}

func (d *document) toScore() (*score.Score, error) {
	s := &score.Score{
		Title:       d.Title,
		Author:      d.Author,
		Released:    d.Released,
		Tempo:       d.Tempo,
		Tables:      map[string]*score.Table{},
		Instruments: map[string]*score.Instrument{},
		Voices:      map[int]*score.Voice{},
	}
	switch strings.ToUpper(strings.TrimSpace(d.System)) {
	case "", "PAL":
		s.System = score.PAL
	case "NTSC":
		s.System = score.NTSC
	default:
		return nil, fmt.Errorf("unknown system %q", d.System)
	}
	if d.Swing < 0 || d.Swing >= 100 {
		return nil, fmt.Errorf("swing %d out of range 0..99", d.Swing)
	}
	s.Swing = score.Swing(d.Swing)
	if d.Time != "" {
		ts, err := parseTimeSig(d.Time)
		if err != nil {
			return nil, err
		}
		s.TimeSig = ts
	}

	for _, name := range sortedKeys(d.Tables) {
		t, err := d.Tables[name].toTable(name)
		if err != nil {
			return nil, err
		}
		s.Tables[name] = t
	}
	for _, name := range sortedKeys(d.Instruments) {
		instr, err := d.Instruments[name].toInstrument(name)
		if err != nil {
			return nil, err
		}
		s.Instruments[name] = instr
	}
	for _, key := range sortedKeys(d.Voices) {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("voice key %q is not a number", key)
		}
		v := d.Voices[key]
		items, err := toItems(v.Items, fmt.Sprintf("voice %d", idx))
		if err != nil {
			return nil, err
		}
		s.Voices[idx] = &score.Voice{Index: idx, Instrument: v.Instrument, Items: items}
	}
	return s, nil
}

func parseTimeSig(raw string) (*score.TimeSig, error) {
	num, den, ok := strings.Cut(raw, "/")
	if !ok {
		return nil, fmt.Errorf("invalid time signature %q", raw)
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(num))
	m, err2 := strconv.Atoi(strings.TrimSpace(den))
	if err1 != nil || err2 != nil || n <= 0 || m <= 0 {
		return nil, fmt.Errorf("invalid time signature %q", raw)
	}
	return &score.TimeSig{Numerator: n, Denominator: m}, nil
}

func parseTableType(raw string) (score.TableType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PW", "PWM":
		return score.TablePW, nil
	case "WAVE":
		return score.TableWave, nil
	case "GATE":
		return score.TableGate, nil
	case "PITCH":
		return score.TablePitch, nil
	case "FILTER":
		return score.TableFilter, nil
	}
	return 0, fmt.Errorf("unknown table type %q", raw)
}

func (t tableDTO) toTable(name string) (*score.Table, error) {
	typ, err := parseTableType(t.Type)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	out := &score.Table{Name: name, Type: typ, Loop: t.Loop}
	for i, st := range t.Steps {
		step, err := st.toStep(typ)
		if err != nil {
			return nil, fmt.Errorf("table %s step %d: %w", name, i+1, err)
		}
		out.Steps = append(out.Steps, step)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	return out, nil
}

func (st stepDTO) toStep(typ score.TableType) (score.TableStep, error) {
	step := score.TableStep{
		Value:  st.Value,
		Frames: st.Frames,
		Hold:   st.Hold,
		Gate:   triState(st.Gate),
		Ring:   triState(st.Ring),
		Sync:   triState(st.Sync),
		Reset:  st.Reset,
	}
	if typ != score.TableWave {
		if st.Wave != "" || st.NoteAbs != "" || st.NoteRel != nil || st.Gate != nil || st.Ring != nil || st.Sync != nil || st.Reset {
			return step, fmt.Errorf("wave step fields in a %s table", typ)
		}
		return step, nil
	}
	if st.Wave != "" {
		w, err := score.ParseWave(st.Wave)
		if err != nil {
			return step, err
		}
		step.WaveSet = true
		step.Value = int(w)
	}
	switch {
	case st.NoteAbs != "" && st.NoteRel != nil:
		return step, fmt.Errorf("note_abs and note_rel are exclusive")
	case st.NoteAbs != "":
		n, err := parseNoteNumber(st.NoteAbs)
		if err != nil {
			return step, err
		}
		step.NoteMode = score.NoteAbs
		step.Note = n
	case st.NoteRel != nil:
		step.NoteMode = score.NoteRel
		step.Note = *st.NoteRel
	}
	return step, nil
}

// parseNoteNumber accepts a pitch name or a MIDI note number.
func parseNoteNumber(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 || n > 127 {
			return 0, fmt.Errorf("note %d out of range 0..127", n)
		}
		return n, nil
	}
	return score.ParsePitch(raw)
}

func triState(b *bool) score.TriState {
	switch {
	case b == nil:
		return score.Unset
	case *b:
		return score.On
	default:
		return score.Off
	}
}

func (in instrumentDTO) toInstrument(name string) (*score.Instrument, error) {
	wrap := func(err error) error { return fmt.Errorf("instrument %s: %w", name, err) }

	wave, err := score.ParseWave(in.Wave)
	if err != nil {
		return nil, wrap(err)
	}
	if len(in.ADSR) != 4 {
		return nil, wrap(fmt.Errorf("adsr needs 4 values, got %d", len(in.ADSR)))
	}
	for _, v := range in.ADSR {
		if v < 0 || v > 15 {
			return nil, wrap(fmt.Errorf("adsr value %d out of range 0..15", v))
		}
	}
	filter, err := score.ParseFilterMode(in.Filter)
	if err != nil {
		return nil, wrap(err)
	}
	var gate score.Articulation
	switch strings.ToLower(strings.TrimSpace(in.Gate)) {
	case "", "retrig", "retrigger":
		gate = score.Retrigger
	case "legato":
		gate = score.Legato
	default:
		return nil, wrap(fmt.Errorf("unknown gate mode %q", in.Gate))
	}
	if in.GateMin < 0 {
		return nil, wrap(fmt.Errorf("gate_min must not be negative"))
	}
	return &score.Instrument{
		Name:        name,
		Wave:        wave,
		ADSR:        score.ADSR{Attack: in.ADSR[0], Decay: in.ADSR[1], Sustain: in.ADSR[2], Release: in.ADSR[3]},
		PW:          in.PW,
		PWMin:       in.PWMin,
		PWMax:       in.PWMax,
		PWSweep:     in.PWSweep,
		WaveTable:   in.WaveTable,
		PWTable:     in.PWTable,
		GateTable:   in.GateTable,
		PitchTable:  in.PitchTable,
		Filter:      filter,
		Cutoff:      in.Cutoff,
		Resonance:   in.Resonance,
		FilterTable: in.FilterTable,
		Gate:        gate,
		GateMin:     in.GateMin,
		Sync:        in.Sync,
		Ring:        in.Ring,
	}, nil
}

func toItems(in []itemDTO, where string) ([]score.VoiceItem, error) {
	out := make([]score.VoiceItem, 0, len(in))
	for i, it := range in {
		item, err := it.toItem(fmt.Sprintf("%s item %d", where, i+1))
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (it itemDTO) kinds() []string {
	var k []string
	if it.Note != "" {
		k = append(k, "note")
	}
	if it.Rest {
		k = append(k, "rest")
	}
	if it.Hit {
		k = append(k, "hit")
	}
	if it.SetLen != 0 {
		k = append(k, "set_len")
	}
	if it.Swing != nil {
		k = append(k, "swing")
	}
	if it.Tie {
		k = append(k, "tie")
	}
	if it.Legato != nil {
		k = append(k, "legato")
	}
	if it.Tuplet != nil {
		k = append(k, "tuplet")
	}
	if it.Repeat != nil {
		k = append(k, "repeat")
	}
	return k
}

func (it itemDTO) length(where string) (score.Length, error) {
	if it.Len == 0 {
		return 0, nil
	}
	l, err := score.ParseLength(it.Len)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", where, err)
	}
	return l, nil
}

func (it itemDTO) toItem(where string) (score.VoiceItem, error) {
	kinds := it.kinds()
	if len(kinds) != 1 {
		return nil, fmt.Errorf("%s: want exactly one item kind, got %v", where, kinds)
	}
	switch kinds[0] {
	case "note":
		pitch, err := score.ParsePitch(it.Note)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		l, err := it.length(where)
		if err != nil {
			return nil, err
		}
		return score.Note{Pitch: pitch, Length: l, Dotted: it.Dot}, nil
	case "rest":
		l, err := it.length(where)
		if err != nil {
			return nil, err
		}
		return score.Rest{Length: l, Dotted: it.Dot}, nil
	case "hit":
		l, err := it.length(where)
		if err != nil {
			return nil, err
		}
		return score.Hit{Length: l, Dotted: it.Dot}, nil
	case "set_len":
		l, err := score.ParseLength(it.SetLen)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		return score.SetLength{Length: l}, nil
	case "swing":
		if *it.Swing < 0 || *it.Swing >= 100 {
			return nil, fmt.Errorf("%s: swing %d out of range 0..99", where, *it.Swing)
		}
		return score.SetSwing{Swing: score.Swing(*it.Swing)}, nil
	case "tie":
		return score.Tie{}, nil
	case "legato":
		items, err := toItems(it.Legato, where+" legato")
		if err != nil {
			return nil, err
		}
		return score.LegatoScope{Items: items}, nil
	case "tuplet":
		items, err := toItems(it.Tuplet, where+" tuplet")
		if err != nil {
			return nil, err
		}
		return score.Tuplet{Items: items}, nil
	default:
		if it.Repeat.Times < 1 {
			return nil, fmt.Errorf("%s: repeat count %d must be at least 1", where, it.Repeat.Times)
		}
		items, err := toItems(it.Repeat.Items, where+" repeat")
		if err != nil {
			return nil, err
		}
		return score.Repeat{Times: it.Repeat.Times, Items: items}, nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
