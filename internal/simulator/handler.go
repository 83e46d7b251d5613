package simulator

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/larsks/npsctl/internal/cli"
	"github.com/larsks/npsctl/internal/logsetup"
	"github.com/rs/zerolog"
)

// Handler runs the simulator as a service
type Handler struct {
	stderr io.Writer
	ready  chan<- net.Addr
}

// NewHandler creates a simulator handler
func NewHandler() *Handler {
	return &Handler{stderr: os.Stderr}
}

// Start listens on the configured address and serves until ctx is cancelled
func (h *Handler) Start(ctx context.Context, c cli.Configurable) error {
	cfg, ok := c.(*Config)
	if !ok {
		return fmt.Errorf("unexpected config type %T", c)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	logger := logsetup.NewWithLevel(h.stderr, level)

	device := NewDevice(cfg.RelayCount,
		WithPassword(cfg.Password),
		WithPrompt(cfg.Prompt),
		WithEcho(cfg.Echo),
		WithLogger(logger),
	)

	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}

	logger.Info().Str("address", l.Addr().String()).Int("relays", device.CountRelays()).Msg("simulator listening")
	if h.ready != nil {
		h.ready <- l.Addr()
	}

	return device.Serve(ctx, l)
}
