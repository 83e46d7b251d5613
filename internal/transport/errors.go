package transport

import "errors"

// Connection errors
var (
	ErrConnection       = errors.New("failed to connect")
	ErrUnknownTransport = errors.New("unknown transport")
)

// Session errors
var (
	ErrTimeout = errors.New("timed out waiting for prompt")
	ErrClosed  = errors.New("session closed")
)
