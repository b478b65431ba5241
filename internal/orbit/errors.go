package orbit

import "errors"

var (
	// ErrNoMainProfile indicates an integrator built without the main halo table.
	ErrNoMainProfile = errors.New("orbit: main halo profile required")

	// ErrInvalidStep indicates a non-positive or NaN time step.
	ErrInvalidStep = errors.New("orbit: time step must be positive")

	// ErrNotResuming indicates Resume called outside the resuming phase.
	ErrNotResuming = errors.New("orbit: integrator is not resuming")

	// ErrCheckpointSize indicates a flattened checkpoint of the wrong length.
	ErrCheckpointSize = errors.New("orbit: malformed checkpoint")
)
