package score

import "fmt"

// MaxTableSteps is the largest step count a control table may hold.
const MaxTableSteps = 63

type TableType int

const (
	TablePW TableType = iota
	TableWave
	TableGate
	TablePitch
	TableFilter
)

func (t TableType) String() string {
	switch t {
	case TablePW:
		return "PW"
	case TableWave:
		return "WAVE"
	case TableGate:
		return "GATE"
	case TablePitch:
		return "PITCH"
	case TableFilter:
		return "FILTER"
	default:
		return fmt.Sprintf("TableType(%d)", int(t))
	}
}

// NoteMode selects how a wave table step changes the sounding note.
type NoteMode int

const (
	NoteNone NoteMode = iota
	NoteAbs
	NoteRel
)

// TriState is an optional boolean side effect.
type TriState int

const (
	Unset TriState = iota
	Off
	On
)

// TableStep is one control table row. Value is interpreted by the table type:
// pulse width, waveform mask, gate level, semitone offset or filter cutoff.
type TableStep struct {
	Value  int
	Frames int
	Hold   bool

	WaveSet  bool
	NoteMode NoteMode
	Note     int
	Gate     TriState
	Ring     TriState
	Sync     TriState
	Reset    bool
}

type Table struct {
	Name  string
	Type  TableType
	Steps []TableStep
	Loop  bool
}

// Validate checks the structural table invariants: a bounded step count and
// at most one hold or loop marker, placed after the final step.
func (t *Table) Validate() error {
	if len(t.Steps) > MaxTableSteps {
		return fmt.Errorf("table %q has %d steps (max %d)", t.Name, len(t.Steps), MaxTableSteps)
	}
	for i, st := range t.Steps {
		if st.Hold && i != len(t.Steps)-1 {
			return fmt.Errorf("table %q: hold only allowed on the last step", t.Name)
		}
		if st.Frames < 0 {
			return fmt.Errorf("table %q: step %d has negative duration", t.Name, i+1)
		}
	}
	if t.Loop && len(t.Steps) > 0 && t.Steps[len(t.Steps)-1].Hold {
		return fmt.Errorf("table %q: hold and loop are exclusive", t.Name)
	}
	return nil
}
