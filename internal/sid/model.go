package sid

import (
	"fmt"
	"strings"
)

// Model selects the chip revision.
type Model int

const (
	MOS6581 Model = iota
	MOS8580
)

func (m Model) String() string {
	if m == MOS8580 {
		return "MOS8580"
	}
	return "MOS6581"
}

// ParseModel accepts "6581", "mos6581", "8580" or "mos8580". An empty string
// selects the 6581.
func ParseModel(raw string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "6581", "mos6581":
		return MOS6581, nil
	case "8580", "mos8580":
		return MOS8580, nil
	default:
		return MOS6581, fmt.Errorf("unknown SID model: %s", raw)
	}
}

// PSIDFlags returns the model bits of a PSID header flags word.
func (m Model) PSIDFlags() int {
	if m == MOS8580 {
		return 0x20
	}
	return 0x10
}
