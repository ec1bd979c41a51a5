package resolver

import (
	"fmt"
	"strings"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "ERROR"
	}
	return "WARNING"
}

type Diagnostic struct {
	Severity Severity
	Text     string
}

func (d Diagnostic) String() string {
	return d.Severity.String() + ": " + d.Text
}

// Diagnostics accumulates resolver messages in emission order.
type Diagnostics []Diagnostic

func (d *Diagnostics) warnf(format string, args ...any) {
	*d = append(*d, Diagnostic{Severity: SeverityWarning, Text: fmt.Sprintf(format, args...)})
}

func (d *Diagnostics) errorf(format string, args ...any) {
	*d = append(*d, Diagnostic{Severity: SeverityError, Text: fmt.Sprintf(format, args...)})
}

func (d Diagnostics) HasErrors() bool {
	for _, m := range d {
		if m.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (d Diagnostics) filter(sev Severity) Diagnostics {
	var out Diagnostics
	for _, m := range d {
		if m.Severity == sev {
			out = append(out, m)
		}
	}
	return out
}

func (d Diagnostics) Warnings() Diagnostics { return d.filter(SeverityWarning) }
func (d Diagnostics) Errors() Diagnostics   { return d.filter(SeverityError) }

// Error reports every error diagnostic of a failed resolution at once.
type Error struct {
	Diagnostics Diagnostics
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("resolve failed:")
	for _, m := range e.Diagnostics.Errors() {
		sb.WriteString("\n  ERROR: ")
		sb.WriteString(m.Text)
	}
	return sb.String()
}
