package transport

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	conn Conn
	err  error
	opts Options
}

func (d *fakeDialer) Dial(ctx context.Context, opts Options) (Conn, error) {
	d.opts = opts
	return d.conn, d.err
}

func (d *fakeDialer) ValidateOptions(opts Options) error {
	if opts.Address == "" {
		return errors.New("address required")
	}
	return nil
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("fake", &fakeDialer{}))
	assert.Error(t, r.Register("fake", &fakeDialer{}))
	assert.Panics(t, func() { r.MustRegister("fake", &fakeDialer{}) })
}

func TestRegistry_Dial(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close() //nolint:errcheck

	r := NewRegistry()
	d := &fakeDialer{conn: local}
	r.MustRegister("fake", d)

	s, err := r.Dial(context.Background(), "fake", Options{Address: "pdu:23", Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "pdu:23", d.opts.Address)
	assert.NoError(t, s.Close())
}

func TestRegistry_DialFailureIsConnectionError(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("fake", &fakeDialer{err: errors.New("connection refused")})

	_, err := r.Dial(context.Background(), "fake", Options{Address: "pdu:23"})
	require.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "pdu:23")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRegistry_UnknownTransport(t *testing.T) {
	r := NewRegistry()

	_, err := r.Dial(context.Background(), "carrier-pigeon", Options{})
	assert.ErrorIs(t, err, ErrUnknownTransport)

	err = r.ValidateOptions("carrier-pigeon", Options{})
	assert.ErrorIs(t, err, ErrUnknownTransport)
}

func TestRegistry_ValidateOptions(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("fake", &fakeDialer{})

	assert.Error(t, r.ValidateOptions("fake", Options{}))
	assert.NoError(t, r.ValidateOptions("fake", Options{Address: "pdu:23"}))
}

func TestDefaultRegistry_BuiltinTransports(t *testing.T) {
	assert.Equal(t, []string{"serial", "telnet"}, ListTransports())
}

func TestTelnetDialer_RefusedIsConnectionError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = Dial(context.Background(), "telnet", Options{Address: addr})
	assert.ErrorIs(t, err, ErrConnection)
}

func TestTelnetDialer_ValidateOptions(t *testing.T) {
	d := &TelnetDialer{}
	assert.Error(t, d.ValidateOptions(Options{}))
	assert.Error(t, d.ValidateOptions(Options{Address: "no-port"}))
	assert.NoError(t, d.ValidateOptions(Options{Address: "pdu:23"}))
}

func TestSerialDialer_ValidateOptions(t *testing.T) {
	d := &SerialDialer{}
	assert.Error(t, d.ValidateOptions(Options{}))
	assert.Error(t, d.ValidateOptions(Options{Device: "/dev/ttyUSB0", BaudRate: -1}))
	assert.NoError(t, d.ValidateOptions(Options{Device: "/dev/ttyUSB0"}))
}

func TestTelnetAddress(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{host: "pdu", port: 23, want: "pdu:23"},
		{host: "pdu", port: 0, want: "pdu:23"},
		{host: "pdu:2323", port: 23, want: "pdu:2323"},
		{host: "10.0.0.5", port: 2000, want: "10.0.0.5:2000"},
		{host: "::1", port: 23, want: "[::1]:23"},
		{host: "[::1]", port: 23, want: "[::1]:23"},
		{host: "[::1]:2323", port: 23, want: "[::1]:2323"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, TelnetAddress(tt.host, tt.port))
		})
	}
}
