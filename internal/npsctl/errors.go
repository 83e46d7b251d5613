package npsctl

import (
	"errors"

	"github.com/larsks/npsctl/internal/relay"
)

// Request errors
var (
	ErrUsage         = errors.New("usage error")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsUsageError reports whether err was caused by bad input rather than by
// the device or the network.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrUsage) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, relay.ErrInvalidRelay) ||
		errors.Is(err, relay.ErrInvalidSelector) ||
		errors.Is(err, relay.ErrInvalidCount)
}
