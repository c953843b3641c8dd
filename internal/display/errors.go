package display

import "errors"

// Domain errors for the display package.
var (
	// ErrReset is returned to position waiters released by Reset.
	ErrReset = errors.New("display: waiters reset")

	// ErrInvalidMedia is returned when a media path is empty.
	ErrInvalidMedia = errors.New("display: invalid media")

	// ErrInvalidPosition is returned for negative positions.
	ErrInvalidPosition = errors.New("display: invalid position")

	// ErrUnavailable is returned when the MQTT transport is missing.
	ErrUnavailable = errors.New("display: bridge unavailable")
)
