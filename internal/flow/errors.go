package flow

import "errors"

var (
	// ErrNoPreviousFrame is returned on the very first frame. No field is
	// produced and callers must not advect with one.
	ErrNoPreviousFrame   = errors.New("no previous frame for flow")
	ErrDimensionMismatch = errors.New("flow frames differ in size")
	ErrEmptyFrame        = errors.New("flow frame is empty")
)
