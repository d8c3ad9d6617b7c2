package sensor

import "errors"

var (
	// ErrFrameNotReady means no new frame arrived since the last acquisition.
	// The tick is skipped.
	ErrFrameNotReady   = errors.New("sensor frame not ready")
	ErrIncompleteFrame = errors.New("sensor frame incomplete")
	ErrSourceClosed    = errors.New("sensor source closed")
)
