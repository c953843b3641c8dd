package cuelist

import "errors"

var (
	// ErrUnknownCue is returned by Trigger for a cue the scene does not have.
	ErrUnknownCue = errors.New("cuelist: unknown cue")

	// ErrInvalidCue is returned when a configured cue cannot be compiled.
	ErrInvalidCue = errors.New("cuelist: invalid cue")
)
