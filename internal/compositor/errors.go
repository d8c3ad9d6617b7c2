package compositor

import "errors"

var (
	ErrBackgroundLoad = errors.New("background image could not be loaded")
	ErrMissingStage   = errors.New("compositor stage not configured")
)
