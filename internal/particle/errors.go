package particle

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid particle config")
	ErrNilWorld      = errors.New("particle manager needs a physics world")
)
