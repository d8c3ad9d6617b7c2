package physics

import "errors"

var (
	ErrInvalidWorldConfig = errors.New("invalid physics world config")
	ErrInvalidGeometry    = errors.New("invalid actor geometry")
	ErrInvalidTimestep    = errors.New("invalid timestep")
	ErrActorNotFound      = errors.New("actor not found")
	ErrActorLimit         = errors.New("actor limit reached")
	ErrNotKinematic       = errors.New("actor is not kinematic")
	// ErrStepInFlight is returned by mutations issued between Simulate and
	// FetchResults.
	ErrStepInFlight = errors.New("physics step in flight")
	ErrWorldClosed  = errors.New("physics world closed")
)
