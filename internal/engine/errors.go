package engine

import "errors"

var ErrMissingDependency = errors.New("engine dependency missing")
