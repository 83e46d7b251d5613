package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ziutek/telnet"
)

const (
	// DefaultTelnetPort is used when an address carries no port
	DefaultTelnetPort = 23

	defaultDialTimeout = 10 * time.Second
)

// TelnetDialer connects to a device over telnet. Option negotiation is
// handled by the telnet package, which refuses everything the device offers.
type TelnetDialer struct{}

// Dial opens a telnet connection to opts.Address
func (d *TelnetDialer) Dial(ctx context.Context, opts Options) (Conn, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	dialer := &net.Dialer{Timeout: timeout}
	nc, err := dialer.DialContext(ctx, "tcp", opts.Address)
	if err != nil {
		return nil, err
	}

	conn, err := telnet.NewConn(nc)
	if err != nil {
		nc.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to start telnet session: %w", err)
	}

	// Commands carry their own CRLF terminators.
	conn.SetUnixWriteMode(false)
	return conn, nil
}

// ValidateOptions checks that an address was provided
func (d *TelnetDialer) ValidateOptions(opts Options) error {
	if opts.Address == "" {
		return fmt.Errorf("telnet transport requires a host")
	}
	if _, _, err := net.SplitHostPort(opts.Address); err != nil {
		return fmt.Errorf("invalid telnet address %q: %w", opts.Address, err)
	}
	return nil
}

// TelnetAddress returns host:port, using port only when host does not
// already name one.
func TelnetAddress(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	if port <= 0 {
		port = DefaultTelnetPort
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(port))
}

func init() {
	MustRegister("telnet", &TelnetDialer{})
}
