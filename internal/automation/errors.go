package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, automation.ErrSceneNotFound) {
//	    // unknown scene id
//	}
var (
	// ErrSceneNotFound is returned when a scene ID or name does not exist.
	ErrSceneNotFound = errors.New("scene: not found")

	// ErrIllegalOperation is returned for invalid state transitions: starting
	// a started scene, executing a task twice, submitting from a stopped
	// scene, or re-entering the executor's interrupt sequence.
	ErrIllegalOperation = errors.New("scene: illegal operation")

	// ErrInvalidCapability is returned when a Stage is used after its
	// action has settled.
	ErrInvalidCapability = errors.New("stage: invalid capability")

	// ErrDeviceUnavailable is returned when a Stage has no backend for the
	// requested device.
	ErrDeviceUnavailable = errors.New("stage: device unavailable")

	// ErrInvalidScene is returned when a scene registration is invalid.
	ErrInvalidScene = errors.New("scene: invalid")

	// ErrInvalidAction is returned when an action is built with missing parts.
	ErrInvalidAction = errors.New("scene: invalid action")

	// ErrInterrupted is the cancellation cause seen by interrupted work.
	ErrInterrupted = errors.New("action: interrupted")
)
