package mapping

import "errors"

var (
	// ErrMapperUnavailable is transient: the tick that hit it is skipped.
	ErrMapperUnavailable  = errors.New("coordinate mapper unavailable")
	ErrResolutionMismatch = errors.New("frame resolution mismatch")
)
