package render

import "errors"

var (
	ErrHubClosed = errors.New("render hub closed")
	ErrNoScreen  = errors.New("terminal screen unavailable")
)
