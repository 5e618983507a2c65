package coverage

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRange is wrapped by every *MalformedRangeError.
	ErrMalformedRange = errors.New("coverage: malformed range")

	// ErrInvariantViolation is wrapped by every *InvariantError. Seeing it
	// means a bug in this package, not bad input.
	ErrInvariantViolation = errors.New("coverage: partition invariant violated")
)

// MalformedRangeError describes a range that cannot be placed in the
// partition: it is inverted or negative, or it partially overlaps an existing
// segment without being contained by it.
type MalformedRangeError struct {
	ScriptID string
	URL      string
	Function string
	Index    int // position of the range in the function's range list, -1 if unknown
	Range    Range

	// Conflict is the segment the range partially overlaps. Zero when the
	// range is invalid on its own.
	Conflict Segment
	Reason   string
}

func (e *MalformedRangeError) Error() string {
	msg := fmt.Sprintf("coverage: malformed range %s: %s", e.Range, e.Reason)
	if e.Conflict != (Segment{}) {
		msg += fmt.Sprintf(" (conflicts with %s)", e.Conflict)
	}
	if e.ScriptID != "" || e.URL != "" {
		msg += fmt.Sprintf(" in script %s %s", e.ScriptID, e.URL)
	}
	if e.Function != "" {
		msg += fmt.Sprintf(" function %q", e.Function)
	}
	if e.Index >= 0 {
		msg += fmt.Sprintf(" range #%d", e.Index)
	}
	return msg
}

func (e *MalformedRangeError) Unwrap() error { return ErrMalformedRange }

// InvariantError reports a finished partition that is not sorted, overlaps,
// holds an empty segment or has a hole inside a top-level range.
type InvariantError struct {
	Index   int // index of the offending segment
	Segment Segment
	Reason  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("coverage: invariant violated at segment #%d %s: %s", e.Index, e.Segment, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }
