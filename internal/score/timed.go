package score

// EventKind tags a timed event.
type EventKind int

const (
	EventNote EventKind = iota
	EventRest
	EventNoise
)

func (k EventKind) String() string {
	switch k {
	case EventNote:
		return "NOTE"
	case EventRest:
		return "REST"
	default:
		return "NOISE"
	}
}

// GateMode says whether a sounding event starts a fresh attack.
type GateMode int

const (
	GateNone GateMode = iota
	GateRetrigger
	GateHold
)

func (g GateMode) String() string {
	switch g {
	case GateRetrigger:
		return "RETRIG"
	case GateHold:
		return "HOLD"
	default:
		return "-"
	}
}

// TimedEvent is a resolved event. Ticks is always at least 1.
type TimedEvent struct {
	Kind  EventKind
	Pitch int
	Ticks int
	Gate  GateMode
}

func NoteEvent(pitch, ticks int, gate GateMode) TimedEvent {
	return TimedEvent{Kind: EventNote, Pitch: pitch, Ticks: ticks, Gate: gate}
}

func RestEvent(ticks int) TimedEvent {
	return TimedEvent{Kind: EventRest, Ticks: ticks}
}

func NoiseEvent(ticks int, gate GateMode) TimedEvent {
	return TimedEvent{Kind: EventNoise, Ticks: ticks, Gate: gate}
}

// Sounding reports whether the event gates the envelope.
func (e TimedEvent) Sounding() bool {
	return e.Kind == EventNote || e.Kind == EventNoise
}

type TimedVoice struct {
	Index      int
	Instrument *Instrument
	Events     []TimedEvent
}

// TotalTicks sums the voice's event durations.
func (v *TimedVoice) TotalTicks() int {
	total := 0
	for _, ev := range v.Events {
		total += ev.Ticks
	}
	return total
}

// TimedScore is the resolver output. It carries everything playback and
// export need and nothing of the resolver's internal state.
type TimedScore struct {
	Title    string
	Author   string
	Released string

	Tempo         int
	TicksPerWhole int
	Swing         Swing
	System        VideoSystem
	Tables        map[string]*Table
	Voices        map[int]*TimedVoice
}

// Voice returns the voice at index 1..3, or nil when the score has none.
func (s *TimedScore) Voice(index int) *TimedVoice {
	if s == nil || s.Voices == nil {
		return nil
	}
	return s.Voices[index]
}

// Table looks up a control table by name; empty names resolve to nil.
func (s *TimedScore) Table(name string) *Table {
	if name == "" || s.Tables == nil {
		return nil
	}
	return s.Tables[name]
}
