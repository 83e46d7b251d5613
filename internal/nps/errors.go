package nps

import "errors"

// Protocol errors
var (
	ErrNotPerRelay = errors.New("action is not sent per relay")
	ErrEmptyStatus = errors.New("device returned no status table")
)
