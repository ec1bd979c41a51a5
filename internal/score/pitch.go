package score

import (
	"fmt"
	"strconv"
	"strings"
)

var letterSemitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// MIDI returns the note number of a letter, accidental and octave. C4 is 60.
func MIDI(letter byte, accidental, octave int) (int, error) {
	base, ok := letterSemitones[letter]
	if !ok {
		return 0, fmt.Errorf("invalid note letter %q", letter)
	}
	m := (octave+1)*12 + base + accidental
	if m < 0 || m > 127 {
		return 0, fmt.Errorf("pitch out of range: %d", m)
	}
	return m, nil
}

// ParsePitch parses names like "C4", "F#3" or "Bb2".
func ParsePitch(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid pitch %q", s)
	}
	letter := s[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	rest := s[1:]
	acc := 0
	switch rest[0] {
	case '#', '+':
		acc = 1
		rest = rest[1:]
	case 'b':
		if len(rest) > 1 {
			acc = -1
			rest = rest[1:]
		}
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid pitch %q: %w", s, err)
	}
	return MIDI(letter, acc, octave)
}
