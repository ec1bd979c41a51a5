package score

import "fmt"

// Length is a note length denominator. Zero means the voice default.
type Length int

const (
	L1  Length = 1
	L2  Length = 2
	L4  Length = 4
	L8  Length = 8
	L16 Length = 16
	L32 Length = 32
	L64 Length = 64
)

func (l Length) Valid() bool {
	switch l {
	case L1, L2, L4, L8, L16, L32, L64:
		return true
	}
	return false
}

// Ticks returns the undotted duration of the length.
func (l Length) Ticks() int {
	if !l.Valid() {
		return 0
	}
	return TicksPerWhole / int(l)
}

func ParseLength(denom int) (Length, error) {
	l := Length(denom)
	if !l.Valid() {
		return 0, fmt.Errorf("unsupported length L%d", denom)
	}
	return l, nil
}

// VoiceItem is one element of a voice's item sequence.
type VoiceItem interface {
	voiceItem()
}

type Note struct {
	Pitch  int
	Length Length
	Dotted bool
}

type Rest struct {
	Length Length
	Dotted bool
}

// Hit is a noise hit. Only legal on noise instruments.
type Hit struct {
	Length Length
	Dotted bool
}

type SetLength struct {
	Length Length
}

type SetSwing struct {
	Swing Swing
}

// Tie joins the previous note with the following one.
type Tie struct{}

type LegatoScope struct {
	Items []VoiceItem
}

// Tuplet fits three logical events into two default-length units.
type Tuplet struct {
	Items []VoiceItem
}

type Repeat struct {
	Times int
	Items []VoiceItem
}

func (Note) voiceItem()        {}
func (Rest) voiceItem()        {}
func (Hit) voiceItem()         {}
func (SetLength) voiceItem()   {}
func (SetSwing) voiceItem()    {}
func (Tie) voiceItem()         {}
func (LegatoScope) voiceItem() {}
func (Tuplet) voiceItem()      {}
func (Repeat) voiceItem()      {}
