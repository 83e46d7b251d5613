package simulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	defaultPrompt  = "NPS> "
	maxLoginTries  = 3
	passwordPrompt = "Enter Password: "
)

// Device is a virtual NPS power switch. It speaks the same line protocol as
// the real device and keeps its relay states in memory.
type Device struct {
	states   []bool
	password string
	prompt   string
	echo     bool
	logger   zerolog.Logger

	received []string
	mutex    sync.RWMutex
}

// Option configures a Device
type Option func(*Device)

// WithPassword makes the device ask for a password before the first prompt
func WithPassword(password string) Option {
	return func(d *Device) {
		d.password = password
	}
}

// WithPrompt sets the prompt printed after every response
func WithPrompt(prompt string) Option {
	return func(d *Device) {
		d.prompt = prompt
	}
}

// WithEcho controls whether command lines are echoed back
func WithEcho(echo bool) Option {
	return func(d *Device) {
		d.echo = echo
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// NewDevice creates a device with relayCount relays, all off
func NewDevice(relayCount int, opts ...Option) *Device {
	d := &Device{
		states: make([]bool, relayCount),
		prompt: defaultPrompt,
		echo:   true,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CountRelays returns the number of relays
func (d *Device) CountRelays() int {
	return len(d.states)
}

// State returns the state of relay n (1-based)
func (d *Device) State(n int) (bool, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if n < 1 || n > len(d.states) {
		return false, fmt.Errorf("invalid relay %d", n)
	}
	return d.states[n-1], nil
}

// SetState sets the state of relay n (1-based)
func (d *Device) SetState(n int, on bool) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if n < 1 || n > len(d.states) {
		return fmt.Errorf("invalid relay %d", n)
	}
	d.states[n-1] = on
	return nil
}

// States returns a copy of all relay states
func (d *Device) States() []bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return append([]bool(nil), d.states...)
}

// Received returns every command line the device has accepted, in order
func (d *Device) Received() []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return append([]string(nil), d.received...)
}

// Serve accepts connections on l until ctx is cancelled
func (d *Device) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		l.Close() //nolint:errcheck
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		// Idle sessions block in a read; closing the conn releases them.
		closeConn := context.AfterFunc(ctx, func() {
			conn.Close() //nolint:errcheck
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer closeConn()
			if err := d.ServeConn(conn); err != nil && ctx.Err() == nil {
				d.logger.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("session ended with error")
			}
		}()
	}
}

// ServeConn runs one telnet session and closes conn when it ends
func (d *Device) ServeConn(conn io.ReadWriteCloser) error {
	defer conn.Close() //nolint:errcheck

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	send := func(format string, args ...any) error {
		fmt.Fprintf(w, format, args...) //nolint:errcheck
		return w.Flush()
	}

	if err := send("\r\nNetwork Power Switch (simulated)\r\n"); err != nil {
		return err
	}

	if d.password != "" {
		ok, err := d.login(r, send)
		if err != nil || !ok {
			return err
		}
	}

	if err := send("%s", d.prompt); err != nil {
		return err
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		if d.echo {
			if err := send("%s\r\n", line); err != nil {
				return err
			}
		}

		if err := send("%s%s", d.handle(line), d.prompt); err != nil {
			return err
		}
	}
}

func (d *Device) login(r *bufio.Reader, send func(string, ...any) error) (bool, error) {
	for range maxLoginTries {
		if err := send("%s", passwordPrompt); err != nil {
			return false, err
		}

		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			return false, err
		}

		if strings.TrimRight(line, "\r\n") == d.password {
			return true, nil
		}
		if err := send("\r\nInvalid Password\r\n"); err != nil {
			return false, err
		}
	}

	d.logger.Info().Msg("too many failed logins")
	return false, nil
}

// handle executes one command line and returns the response text
func (d *Device) handle(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	d.mutex.Lock()
	d.received = append(d.received, line)
	d.mutex.Unlock()

	verb := strings.ToLower(fields[0])
	switch {
	case verb == "/s" && len(fields) == 1:
		return d.statusTable()
	case (verb == "/on" || verb == "/off" || verb == "/boot") && len(fields) == 2:
		relays, ok := d.resolve(fields[1])
		if !ok {
			return "\r\nInvalid Plug\r\n"
		}
		for _, n := range relays {
			d.apply(verb, n)
		}
		return ""
	default:
		return "\r\nInvalid command\r\n"
	}
}

// resolve maps a plug argument ("*" or a number) to relay numbers
func (d *Device) resolve(arg string) ([]int, bool) {
	if arg == "*" {
		relays := make([]int, d.CountRelays())
		for i := range relays {
			relays[i] = i + 1
		}
		return relays, true
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > d.CountRelays() {
		return nil, false
	}
	return []int{n}, true
}

func (d *Device) apply(verb string, n int) {
	switch verb {
	case "/on":
		d.logger.Debug().Int("relay", n).Msg("turning on relay")
		d.SetState(n, true) //nolint:errcheck
	case "/off":
		d.logger.Debug().Int("relay", n).Msg("turning off relay")
		d.SetState(n, false) //nolint:errcheck
	case "/boot":
		// Reboot ends with the relay on.
		d.logger.Debug().Int("relay", n).Msg("rebooting relay")
		d.SetState(n, false) //nolint:errcheck
		d.SetState(n, true)  //nolint:errcheck
	}
}

func (d *Device) statusTable() string {
	var b strings.Builder

	b.WriteString("\r\n")
	b.WriteString(" Plug | Name             | Status | Boot Delay | Default |\r\n")
	b.WriteString("------+------------------+--------+------------+---------+\r\n")
	for i, on := range d.States() {
		state := "OFF"
		if on {
			state = "ON"
		}
		fmt.Fprintf(&b, "   %d  | %-16s |  %-4s  |   0.5 Secs |   ON    |\r\n", i+1, "(undefined)", state)
	}
	b.WriteString("\r\n")

	return b.String()
}

// String returns a string representation
func (d *Device) String() string {
	return fmt.Sprintf("simulated NPS with %d relays", d.CountRelays())
}
