package relay

import "errors"

// Input validation errors
var (
	ErrInvalidRelay    = errors.New("invalid relay")
	ErrInvalidCount    = errors.New("invalid relay count")
	ErrInvalidSelector = errors.New("invalid relay selector")
)
