package schedule

import "errors"

var (
	// ErrInvalidSchedule is returned for a malformed schedule entry.
	ErrInvalidSchedule = errors.New("schedule: invalid entry")

	// ErrUnknownScene is returned when an entry names a scene that is not
	// registered.
	ErrUnknownScene = errors.New("schedule: unknown scene")
)
