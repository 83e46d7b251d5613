package simulator

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/larsks/npsctl/internal/nps"
	"github.com/larsks/npsctl/internal/prompt"
	"github.com/larsks/npsctl/internal/relay"
	"github.com/larsks/npsctl/internal/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connect serves d on a loopback listener and returns a raw TCP session to it.
func connect(t *testing.T, d *Device) *transport.Session {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.Serve(ctx, l) //nolint:errcheck

	conn, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)

	s := transport.NewSession(conn, zerolog.Nop())
	t.Cleanup(func() {
		s.Close() //nolint:errcheck
	})
	return s
}

func TestDevice_State(t *testing.T) {
	d := NewDevice(4)

	assert.Equal(t, 4, d.CountRelays())
	assert.Equal(t, []bool{false, false, false, false}, d.States())

	require.NoError(t, d.SetState(2, true))
	on, err := d.State(2)
	require.NoError(t, err)
	assert.True(t, on)

	assert.Error(t, d.SetState(0, true))
	assert.Error(t, d.SetState(5, true))
	_, err = d.State(5)
	assert.Error(t, err)
}

func TestDevice_Handle(t *testing.T) {
	d := NewDevice(8)

	assert.Equal(t, "", d.handle("/On 3"))
	assert.Equal(t, []bool{false, false, true, false, false, false, false, false}, d.States())

	assert.Equal(t, "", d.handle("/on *"))
	assert.Equal(t, []bool{true, true, true, true, true, true, true, true}, d.States())

	assert.Equal(t, "", d.handle("/Off 1"))
	assert.Equal(t, "", d.handle("/Boot 2"))
	on, _ := d.State(2)
	assert.True(t, on)

	assert.Contains(t, d.handle("/On 9"), "Invalid Plug")
	assert.Contains(t, d.handle("/Frob"), "Invalid command")
	assert.Equal(t, "", d.handle("   "))

	assert.Equal(t, []string{"/On 3", "/on *", "/Off 1", "/Boot 2", "/On 9", "/Frob"}, d.Received())
}

func TestDevice_StatusTableParses(t *testing.T) {
	d := NewDevice(8)
	for n := 1; n <= 8; n += 2 {
		require.NoError(t, d.SetState(n, true))
	}

	statuses := nps.ParseStatusTable(d.statusTable())
	require.Len(t, statuses, 8)
	for i, st := range statuses {
		assert.Equal(t, i+1, st.Relay)
		if i%2 == 0 {
			assert.Equal(t, nps.StateOn, st.State)
		} else {
			assert.Equal(t, nps.StateOff, st.State)
		}
	}
}

func TestDevice_SessionWithPassword(t *testing.T) {
	d := NewDevice(8, WithPassword("secret"))
	c := nps.NewClient(connect(t, d), nps.WithTimeout(2*time.Second))
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "secret"))

	sel, err := relay.Single(5)
	require.NoError(t, err)
	require.NoError(t, c.Do(ctx, relay.ActionOn, sel))

	statuses, err := c.Status(ctx, sel)
	require.NoError(t, err)
	assert.Equal(t, []nps.RelayStatus{{Relay: 5, State: nps.StateOn}}, statuses)
	assert.Equal(t, []string{"/On 5", "/S"}, d.Received())
}

func TestDevice_WrongPassword(t *testing.T) {
	d := NewDevice(8, WithPassword("secret"))
	c := nps.NewClient(connect(t, d), nps.WithTimeout(200*time.Millisecond))

	err := c.Login(context.Background(), "wrong")
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestDevice_AlternatePrompt(t *testing.T) {
	d := NewDevice(8, WithPrompt("IPS> "), WithEcho(false))
	s := connect(t, d)

	idx, _, err := s.ReadUntilAny(context.Background(), prompt.Default(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestDevice_Serve(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	d := NewDevice(8)
	go func() {
		done <- d.Serve(ctx, l)
	}()

	sess, err := transport.Dial(ctx, "telnet", transport.Options{Address: l.Addr().String(), Logger: zerolog.Nop()})
	require.NoError(t, err)

	c := nps.NewClient(sess, nps.WithTimeout(2*time.Second))
	require.NoError(t, c.Login(ctx, ""))
	require.NoError(t, c.Do(ctx, relay.ActionOn, relay.All()))
	require.NoError(t, sess.Close())

	assert.Equal(t, []bool{true, true, true, true, true, true, true, true}, d.States())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestDevice_ServeReturnsWithIdleClients(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	d := NewDevice(8, WithPassword("secret"))
	go func() {
		done <- d.Serve(ctx, l)
	}()

	// One session sits at the command prompt, the other at the password prompt.
	atPrompt, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	idle := transport.NewSession(atPrompt, zerolog.Nop())
	defer idle.Close() //nolint:errcheck
	c := nps.NewClient(idle, nps.WithTimeout(2*time.Second))
	require.NoError(t, c.Login(ctx, "secret"))

	atLogin, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	waiting := transport.NewSession(atLogin, zerolog.Nop())
	defer waiting.Close() //nolint:errcheck
	_, _, err = waiting.ReadUntilAny(ctx, prompt.Set{passwordPrompt}, 2*time.Second)
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return while sessions were open")
	}

	_, _, err = idle.ReadUntilAny(context.Background(), prompt.Default(), 2*time.Second)
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestDevice_String(t *testing.T) {
	assert.Equal(t, "simulated NPS with 8 relays", NewDevice(8).String())
}
