package npsctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/larsks/npsctl/internal/mqtt"
	"github.com/larsks/npsctl/internal/nps"
	"github.com/larsks/npsctl/internal/relay"
	"github.com/larsks/npsctl/internal/transport"
	"github.com/rs/zerolog"
)

const mqttDisconnectQuiesce = 250

// Publisher announces relay activity
type Publisher interface {
	PublishRelayState(prefix string, relay int, state string) error
	PublishRelayEvent(prefix string, relay int, action string) error
}

// Handler runs one request against the device
type Handler struct {
	config    *Config
	stdout    io.Writer
	logger    zerolog.Logger
	publisher Publisher
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithStdout sets where relay states are printed
func WithStdout(w io.Writer) HandlerOption {
	return func(h *Handler) {
		h.stdout = w
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithPublisher publishes through p instead of connecting to the
// configured MQTT server
func WithPublisher(p Publisher) HandlerOption {
	return func(h *Handler) {
		h.publisher = p
	}
}

// NewHandler creates a handler for cfg
func NewHandler(cfg *Config, opts ...HandlerOption) *Handler {
	h := &Handler{
		config: cfg,
		stdout: os.Stdout,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run connects to the device, logs in and carries out req. The connection
// is closed before Run returns.
func (h *Handler) Run(ctx context.Context, req Request) error {
	sess, err := transport.Dial(ctx, h.config.Transport, h.config.TransportOptions(h.logger))
	if err != nil {
		return err
	}
	defer sess.Close() //nolint:errcheck

	client := nps.NewClient(sess,
		nps.WithTimeout(h.config.Timeout),
		nps.WithRelayCount(h.config.RelayCount),
		nps.WithLogger(h.logger),
	)

	if err := client.Login(ctx, h.config.Password); err != nil {
		return err
	}

	if req.Action == relay.ActionStatus {
		return h.status(ctx, client, req.Selector)
	}
	return h.do(ctx, client, req)
}

func (h *Handler) do(ctx context.Context, client *nps.Client, req Request) error {
	if err := client.Do(ctx, req.Action, req.Selector); err != nil {
		return err
	}

	relays, err := req.Selector.Expand(h.config.RelayCount)
	if err != nil {
		return err
	}

	h.publish(func(p Publisher) error {
		for _, n := range relays {
			if err := p.PublishRelayEvent(h.config.MQTTTopic, n, req.Action.String()); err != nil {
				return err
			}
		}
		return nil
	})

	return nil
}

func (h *Handler) status(ctx context.Context, client *nps.Client, sel relay.Selector) error {
	statuses, err := client.Status(ctx, sel)
	if err != nil {
		return err
	}

	for _, st := range statuses {
		if st.State == nps.StateUnknown {
			h.logger.Warn().Int("relay", st.Relay).Msg("relay not listed in status table")
			continue
		}
		if _, err := fmt.Fprintln(h.stdout, st.State); err != nil {
			return fmt.Errorf("failed to write status: %w", err)
		}
	}

	h.publish(func(p Publisher) error {
		for _, st := range statuses {
			if st.State == nps.StateUnknown {
				continue
			}
			if err := p.PublishRelayState(h.config.MQTTTopic, st.Relay, string(st.State)); err != nil {
				return err
			}
		}
		return nil
	})

	return nil
}

// publish runs fn against the configured publisher. Publishing is best
// effort: the device has already acted, so failures are only logged.
func (h *Handler) publish(fn func(Publisher) error) {
	p := h.publisher
	if p == nil {
		if h.config.MQTTServer == "" {
			return
		}

		client, err := mqtt.NewClient(mqtt.Config{
			ServerURL:      h.config.MQTTServer,
			ClientID:       fmt.Sprintf("npsctl-%d", os.Getpid()),
			ConnectTimeout: h.config.DialTimeout,
			Logger:         h.logger,
		})
		if err != nil {
			h.logger.Warn().Err(err).Msg("not publishing relay activity")
			return
		}
		defer client.Disconnect(mqttDisconnectQuiesce)
		p = client
	}

	if err := fn(p); err != nil {
		h.logger.Warn().Err(err).Msg("failed to publish relay activity")
	}
}
