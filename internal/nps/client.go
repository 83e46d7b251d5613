package nps

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/larsks/npsctl/internal/prompt"
	"github.com/larsks/npsctl/internal/relay"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// DefaultTimeout bounds every wait for a prompt
const DefaultTimeout = 10 * time.Second

// A device answering /S with nothing but prompts this many times in a row
// is treated as broken.
const maxEmptyStatusReads = 3

// Session is the transport the client drives
type Session interface {
	Write(p []byte) error
	WriteSecret(p []byte) error
	ReadUntilAny(ctx context.Context, prompts prompt.Set, timeout time.Duration) (int, []byte, error)
}

// Client speaks the NPS command language over a Session. Every command is
// a full round trip: the client writes one line and waits for the next
// prompt before sending anything else.
type Client struct {
	session    Session
	prompts    prompt.Set
	timeout    time.Duration
	relayCount int
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithPrompts replaces the set of prompts that end a response
func WithPrompts(prompts prompt.Set) Option {
	return func(c *Client) {
		c.prompts = prompts
	}
}

// WithTimeout sets how long to wait for each prompt
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRelayCount sets how many relays "all" covers
func WithRelayCount(count int) Option {
	return func(c *Client) {
		c.relayCount = count
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client on an open session
func NewClient(session Session, opts ...Option) *Client {
	c := &Client{
		session:    session,
		prompts:    prompt.Default(),
		timeout:    DefaultTimeout,
		relayCount: relay.MaxRelay,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login sends the password, if there is one, and then waits for the first
// prompt. The wait happens even without a password because some devices
// print a banner and prompt unprompted; it also discards any echo.
func (c *Client) Login(ctx context.Context, password string) error {
	if password != "" {
		if err := c.session.WriteSecret([]byte(password + Terminator)); err != nil {
			return fmt.Errorf("failed to send password: %w", err)
		}
	}

	idx, _, err := c.session.ReadUntilAny(ctx, c.prompts, c.timeout)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	c.logger.Debug().Str("prompt", c.prompts.String(idx)).Msg("synchronized with device")
	return nil
}

// Do applies action to every selected relay, one round trip per relay.
// All commands are built before the first one is sent, so an invalid
// selection never reaches the device. A failure part way through an "all"
// selection leaves the earlier relays switched.
func (c *Client) Do(ctx context.Context, action relay.Action, sel relay.Selector) error {
	relays, err := sel.Expand(c.relayCount)
	if err != nil {
		return err
	}

	commands := make([]string, len(relays))
	for i, n := range relays {
		cmd, err := BuildCommand(action, n)
		if err != nil {
			return err
		}
		commands[i] = cmd
	}

	for i, cmd := range commands {
		c.logger.Debug().Str("action", action.String()).Int("relay", relays[i]).Msg("sending command")
		if _, err := c.roundTrip(ctx, cmd); err != nil {
			return fmt.Errorf("failed to %s relay %d: %w", action, relays[i], err)
		}
	}

	return nil
}

// Status queries the relay table once and returns the entries covered by
// sel, ordered by relay number. A single relay missing from the table is
// returned with StateUnknown; "all" returns whatever the device lists.
func (c *Client) Status(ctx context.Context, sel relay.Selector) ([]RelayStatus, error) {
	if _, err := sel.Expand(c.relayCount); err != nil {
		return nil, err
	}

	table, err := c.readStatusTable(ctx)
	if err != nil {
		return nil, err
	}

	statuses := lo.Filter(ParseStatusTable(table), func(st RelayStatus, _ int) bool {
		return sel.Matches(st.Relay)
	})

	if len(statuses) == 0 && !sel.IsAll() {
		c.logger.Debug().Int("relay", sel.Index()).Msg("relay not found in status table")
		return []RelayStatus{{Relay: sel.Index(), State: StateUnknown}}, nil
	}

	slices.SortStableFunc(statuses, func(a, b RelayStatus) int {
		return cmp.Compare(a.Relay, b.Relay)
	})
	return statuses, nil
}

func (c *Client) readStatusTable(ctx context.Context) (string, error) {
	if err := c.session.Write([]byte(StatusQuery())); err != nil {
		return "", fmt.Errorf("failed to send status query: %w", err)
	}

	for range maxEmptyStatusReads {
		_, body, err := c.session.ReadUntilAny(ctx, c.prompts, c.timeout)
		if err != nil {
			return "", fmt.Errorf("failed to read status: %w", err)
		}

		text := stripEcho(string(body), statusCommand)
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
		c.logger.Debug().Msg("empty response to status query, reading again")
	}

	return "", ErrEmptyStatus
}

func (c *Client) roundTrip(ctx context.Context, cmd string) ([]byte, error) {
	if err := c.session.Write([]byte(cmd)); err != nil {
		return nil, err
	}

	_, body, err := c.session.ReadUntilAny(ctx, c.prompts, c.timeout)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// stripEcho drops the device's echo of cmd from the start of a response.
func stripEcho(text, cmd string) string {
	trimmed := strings.TrimLeft(text, "\r\n")
	first, rest, found := strings.Cut(trimmed, "\n")
	if strings.TrimSpace(first) == cmd {
		if !found {
			return ""
		}
		return rest
	}
	return text
}
