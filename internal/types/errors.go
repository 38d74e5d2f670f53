package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is wrapped by every MalformedInputError.
	ErrMalformedInput = errors.New("malformed input")

	// ErrTrialJoin is wrapped by every TrialJoinError.
	ErrTrialJoin = errors.New("trial join failure")
)

// MalformedInputError reports a file that does not match its expected layout.
// Line is 1-based; zero means the problem is not tied to a single line.
type MalformedInputError struct {
	File   string
	Line   int
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

func (e *MalformedInputError) Unwrap() error {
	return ErrMalformedInput
}

// Malformed builds a MalformedInputError with a formatted reason.
func Malformed(file string, line int, format string, args ...any) error {
	return &MalformedInputError{File: file, Line: line, Reason: fmt.Sprintf(format, args...)}
}

// TrialJoinError reports an ensemble output whose trial id has no parameter row.
type TrialJoinError struct {
	File    string
	TrialID int
}

func (e *TrialJoinError) Error() string {
	return fmt.Sprintf("%s: trial %d has no row in the parameter table", e.File, e.TrialID)
}

func (e *TrialJoinError) Unwrap() error {
	return ErrTrialJoin
}
