package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/larsks/npsctl/internal/prompt"
	"github.com/rs/zerolog"
)

const readChunkSize = 1024

// Conn is the byte stream a Session runs on.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// Session owns a connection to a device and provides prompt-synchronized
// reads. It is not safe for concurrent use.
type Session struct {
	conn   Conn
	logger zerolog.Logger
	buf    []byte
	closed bool
}

// NewSession creates a session on an established connection.
func NewSession(conn Conn, logger zerolog.Logger) *Session {
	return &Session{
		conn:   conn,
		logger: logger,
	}
}

// Write sends p verbatim.
func (s *Session) Write(p []byte) error {
	return s.write(p, false)
}

// WriteSecret sends p verbatim but keeps it out of the trace log.
func (s *Session) WriteSecret(p []byte) error {
	return s.write(p, true)
}

func (s *Session) write(p []byte, secret bool) error {
	if s.closed {
		return ErrClosed
	}

	ev := s.logger.Debug()
	if secret {
		ev.Str("data", "<redacted>").Msg("TX")
	} else {
		ev.Str("data", string(p)).Msg("TX")
	}

	n, err := s.conn.Write(p)
	if err != nil {
		return fmt.Errorf("failed to write to device: %w", err)
	}
	if n < len(p) {
		return fmt.Errorf("failed to write to device: %w", io.ErrShortWrite)
	}
	return nil
}

// ReadUntilAny reads from the device until one of prompts appears, and
// returns the index of that prompt along with everything received before
// it. Data that arrives after the prompt is kept for the next call.
//
// The wait is bounded by timeout and by any deadline on ctx.
func (s *Session) ReadUntilAny(ctx context.Context, prompts prompt.Set, timeout time.Duration) (int, []byte, error) {
	if s.closed {
		return -1, nil, ErrClosed
	}
	if len(prompts) == 0 {
		return -1, nil, fmt.Errorf("no prompts to wait for")
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return -1, nil, fmt.Errorf("failed to set read deadline: %w", err)
	}
	defer s.conn.SetReadDeadline(time.Time{}) //nolint:errcheck

	// Unblock a pending read if the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now()) //nolint:errcheck
	})
	defer stop()

	chunk := make([]byte, readChunkSize)
	searched := 0
	var readErr error

	for {
		if m, ok := prompts.MatchFrom(s.buf, searched); ok {
			preceding := bytes.Clone(s.buf[:m.Start])
			s.buf = append(s.buf[:0], s.buf[m.End:]...)
			s.logger.Debug().
				Str("prompt", prompts.String(m.Index)).
				Str("data", string(preceding)).
				Msg("RX")
			return m.Index, preceding, nil
		}
		searched = len(s.buf)

		if err := ctx.Err(); err != nil {
			return -1, nil, err
		}
		if readErr != nil {
			return -1, nil, s.readError(readErr, timeout, prompts)
		}
		if !time.Now().Before(deadline) {
			return -1, nil, s.timeoutError(timeout, prompts)
		}

		n, err := s.conn.Read(chunk)
		s.buf = append(s.buf, chunk[:n]...)
		readErr = err
	}
}

func (s *Session) readError(err error, timeout time.Duration, prompts prompt.Set) error {
	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return s.timeoutError(timeout, prompts)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		s.logger.Debug().Int("pending", len(s.buf)).Msg("connection closed by device")
		return fmt.Errorf("%w: connection closed by device", ErrClosed)
	default:
		return fmt.Errorf("failed to read from device: %w", err)
	}
}

func (s *Session) timeoutError(timeout time.Duration, prompts prompt.Set) error {
	s.logger.Debug().Str("pending", string(s.buf)).Msg("no prompt before deadline")
	return fmt.Errorf("%w after %s (expected one of %q)", ErrTimeout, timeout, []string(prompts))
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug().Msg("closing session")
	return s.conn.Close()
}
