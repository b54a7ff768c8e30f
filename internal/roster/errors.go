package roster

import "fmt"

// ParseError reports a roster line that matched a known record pattern but
// carried a malformed or missing required field. Lines that match nothing
// are skipped and never produce a ParseError.
type ParseError struct {
	// Line is the 1-based line number in the source document, 0 when the
	// line was parsed standalone.
	Line int
	// Text is the offending line.
	Text string
	// Field names the malformed field, empty when the whole line is at fault.
	Field string
	// Reason describes what was wrong.
	Reason string
}

func (e *ParseError) Error() string {
	msg := "roster: " + e.Reason
	if e.Field != "" {
		msg = "roster: bad " + e.Field + ": " + e.Reason
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d: %q)", e.Line, e.Text)
	} else if e.Text != "" {
		msg += fmt.Sprintf(" (%q)", e.Text)
	}
	return msg
}

// StructureError reports a document that does not look like a roster at
// all (too short, missing check-in/check-out markers). It is distinct from
// ParseError so callers can tell "wrong document" from "corrupt line".
type StructureError struct {
	Reason string
}

func (e *StructureError) Error() string {
	return "roster: " + e.Reason
}
