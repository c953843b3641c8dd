package lighting

import "errors"

// Domain errors for the lighting package.
var (
	// ErrInvalidState is returned when a light state is out of range.
	ErrInvalidState = errors.New("lighting: invalid state")

	// ErrUnknownMode is returned when a state report names an unknown mode.
	ErrUnknownMode = errors.New("lighting: unknown mode")

	// ErrUnavailable is returned when the MQTT transport is missing.
	ErrUnavailable = errors.New("lighting: bridge unavailable")
)
