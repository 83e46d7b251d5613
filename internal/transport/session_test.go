package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/larsks/npsctl/internal/prompt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		remote.Close() //nolint:errcheck
		local.Close()  //nolint:errcheck
	})
	return NewSession(local, zerolog.Nop()), remote
}

// feed writes each chunk to the remote end of a pipe in order.
func feed(t *testing.T, remote net.Conn, chunks ...string) {
	t.Helper()
	go func() {
		for _, c := range chunks {
			if _, err := remote.Write([]byte(c)); err != nil {
				return
			}
		}
	}()
}

func TestSession_ReadUntilAny(t *testing.T) {
	s, remote := newPipeSession(t)
	feed(t, remote, "Network Power Switch\r\nIPS> ")

	idx, preceding, err := s.ReadUntilAny(context.Background(), prompt.Default(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "Network Power Switch\r\n", string(preceding))
}

func TestSession_ReadUntilAny_SplitPrompt(t *testing.T) {
	s, remote := newPipeSession(t)
	feed(t, remote, "table line\r\nN", "B", "B> ")

	idx, preceding, err := s.ReadUntilAny(context.Background(), prompt.Default(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "table line\r\n", string(preceding))
}

func TestSession_ReadUntilAny_KeepsTrailingData(t *testing.T) {
	s, remote := newPipeSession(t)
	feed(t, remote, "one\r\nNPS> two\r\nNPS> ")

	_, first, err := s.ReadUntilAny(context.Background(), prompt.Default(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "one\r\n", string(first))

	_, second, err := s.ReadUntilAny(context.Background(), prompt.Default(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "two\r\n", string(second))
}

func TestSession_ReadUntilAny_Timeout(t *testing.T) {
	s, remote := newPipeSession(t)
	feed(t, remote, "Password: ")

	start := time.Now()
	_, _, err := s.ReadUntilAny(context.Background(), prompt.Default(), 100*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSession_ReadUntilAny_ContextDeadline(t *testing.T) {
	s, _ := newPipeSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := s.ReadUntilAny(ctx, prompt.Default(), time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded), "unexpected error: %v", err)
}

func TestSession_ReadUntilAny_Cancel(t *testing.T) {
	s, _ := newPipeSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, _, err := s.ReadUntilAny(ctx, prompt.Default(), time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSession_ReadUntilAny_DeviceHangsUp(t *testing.T) {
	s, remote := newPipeSession(t)
	go func() {
		remote.Write([]byte("bye")) //nolint:errcheck
		remote.Close()              //nolint:errcheck
	}()

	_, _, err := s.ReadUntilAny(context.Background(), prompt.Default(), time.Second)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSession_ReadUntilAny_EmptyPromptSet(t *testing.T) {
	s, _ := newPipeSession(t)
	_, _, err := s.ReadUntilAny(context.Background(), prompt.Set{}, time.Second)
	assert.Error(t, err)
}

func TestSession_Write(t *testing.T) {
	s, remote := newPipeSession(t)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := io.ReadAtLeast(remote, buf, len("/On 4\r\n"))
		got <- string(buf[:n])
	}()

	require.NoError(t, s.Write([]byte("/On 4\r\n")))
	assert.Equal(t, "/On 4\r\n", <-got)
}

func TestSession_WriteSecretIsNotTraced(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close() //nolint:errcheck

	var trace bytes.Buffer
	s := NewSession(local, zerolog.New(&trace).Level(zerolog.DebugLevel))
	defer s.Close() //nolint:errcheck

	go io.Copy(io.Discard, remote) //nolint:errcheck

	require.NoError(t, s.WriteSecret([]byte("hunter2\r\n")))
	require.NoError(t, s.Write([]byte("/S\r\n")))

	assert.NotContains(t, trace.String(), "hunter2")
	assert.Contains(t, trace.String(), "<redacted>")
	assert.Contains(t, trace.String(), "/S")
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s, _ := newPipeSession(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Write([]byte("x")), ErrClosed)
	_, _, err := s.ReadUntilAny(context.Background(), prompt.Default(), time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}
