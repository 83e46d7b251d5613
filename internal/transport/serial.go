package transport

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the factory setting of the NPS console port
const DefaultBaudRate = 9600

// SerialDialer connects to a device through its RS-232 console port
type SerialDialer struct{}

// Dial opens opts.Device at opts.BaudRate, 8N1
func (d *SerialDialer) Dial(ctx context.Context, opts Options) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baud := opts.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(opts.Device, mode)
	if err != nil {
		return nil, err
	}

	return &serialConn{port: port}, nil
}

// ValidateOptions checks that a device path was provided
func (d *SerialDialer) ValidateOptions(opts Options) error {
	if opts.Device == "" {
		return fmt.Errorf("serial transport requires a device")
	}
	if opts.BaudRate < 0 {
		return fmt.Errorf("invalid baud rate %d", opts.BaudRate)
	}
	return nil
}

// serialConn maps read deadlines onto the port's read timeout. A port read
// that times out returns (0, nil), which the session treats as "keep waiting
// until the deadline".
type serialConn struct {
	port     serial.Port
	mu       sync.Mutex
	deadline time.Time
}

func (c *serialConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	deadline := c.deadline
	c.mu.Unlock()

	timeout := serial.NoTimeout
	if !deadline.IsZero() {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
	}

	if err := c.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	return c.port.Read(p)
}

func (c *serialConn) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

func (c *serialConn) Close() error {
	return c.port.Close()
}

func (c *serialConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func init() {
	MustRegister("serial", &SerialDialer{})
}
