package model

import "fmt"

// ParseError signals a malformed reference-data token during schedule
// construction. Construction aborts; there is no partial table.
type ParseError struct {
	Field  string // record field the token came from, e.g. "period_days"
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s token %q: %s", e.Field, e.Token, e.Reason)
}

// UndefinedStageError signals that no stage interval covers the requested
// day-after-sowing. The cycle aborts; the engine never substitutes a default
// stage.
type UndefinedStageError struct {
	Day int
}

func (e *UndefinedStageError) Error() string {
	return fmt.Sprintf("no growth stage defined for day %d after sowing", e.Day)
}

// ValidationError signals a reading or forecast outside its documented range.
// The input is treated as corrupt, never clamped or guessed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
