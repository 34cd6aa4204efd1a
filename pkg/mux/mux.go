// Package mux runs several channels over one duplex stream using yamux.
// The dialing side opens channels and the accepting side accepts them.
// The first channel of every session is the control channel carrying gob
// encoded msg.Message values.
package mux

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/yamux"

	"dominicbreuker/tlsduplex/pkg/mux/msg"
)

// Session is one side of a multiplexed stream.
type Session struct {
	mux *yamux.Session
	ctl net.Conn

	enc *gob.Encoder
	dec *gob.Decoder

	timeout time.Duration

	mu sync.Mutex
}

// Open starts the dialing side on conn and opens the control channel.
// timeout bounds every control operation; 0 disables it.
func Open(ctx context.Context, conn io.ReadWriteCloser, timeout time.Duration) (*Session, error) {
	m, err := yamux.Client(conn, config())
	if err != nil {
		return nil, fmt.Errorf("yamux.Client(conn): %w", err)
	}

	s := &Session{mux: m, timeout: timeout}
	s.ctl, err = s.OpenChannelContext(ctx)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("OpenChannelContext() for ctl: %w", err)
	}
	s.enc = gob.NewEncoder(s.ctl)
	s.dec = gob.NewDecoder(s.ctl)

	return s, nil
}

// Accept starts the accepting side on conn and accepts the control channel.
func Accept(ctx context.Context, conn io.ReadWriteCloser, timeout time.Duration) (*Session, error) {
	m, err := yamux.Server(conn, config())
	if err != nil {
		return nil, fmt.Errorf("yamux.Server(conn): %w", err)
	}

	s := &Session{mux: m, timeout: timeout}
	s.ctl, err = s.AcceptChannelContext(ctx)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("AcceptChannelContext() for ctl: %w", err)
	}
	s.enc = gob.NewEncoder(s.ctl)
	s.dec = gob.NewDecoder(s.ctl)

	return s, nil
}

// Close closes every channel and the session. The underlying stream is
// closed too.
func (s *Session) Close() error {
	if s.ctl != nil {
		s.ctl.Close() // best effort
	}
	return s.mux.Close()
}

// IsClosed reports whether the session has shut down.
func (s *Session) IsClosed() bool {
	return s.mux.IsClosed()
}

// NumChannels returns the number of open channels, control channel included.
func (s *Session) NumChannels() int {
	return s.mux.NumStreams()
}

// OpenChannelContext opens a new channel, honouring ctx and the session
// timeout.
func (s *Session) OpenChannelContext(ctx context.Context) (net.Conn, error) {
	return s.withTimeout(ctx, func() (net.Conn, error) {
		c, err := s.mux.Open()
		if err != nil {
			return nil, fmt.Errorf("session.Open(): %w", err)
		}
		return c, nil
	})
}

// AcceptChannelContext waits for the peer to open a channel.
func (s *Session) AcceptChannelContext(ctx context.Context) (net.Conn, error) {
	return s.withTimeout(ctx, func() (net.Conn, error) {
		c, err := s.mux.Accept()
		if err != nil {
			return nil, fmt.Errorf("session.Accept(): %w", err)
		}
		return c, nil
	})
}

func (s *Session) withTimeout(ctx context.Context, op func() (net.Conn, error)) (net.Conn, error) {
	if _, has := ctx.Deadline(); !has && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type result struct {
		c   net.Conn
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		c, err := op()
		resCh <- result{c, err}
	}()

	select {
	case <-ctx.Done():
		// a channel that shows up late is not handed to anyone
		go func() {
			if r := <-resCh; r.c != nil {
				r.c.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-resCh:
		return r.c, r.err
	}
}

// Send encodes m on the control channel.
func (s *Session) Send(m msg.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout > 0 {
		_ = s.ctl.SetWriteDeadline(time.Now().Add(s.timeout))
		defer s.ctl.SetWriteDeadline(time.Time{})
	}

	if err := s.enc.Encode(&m); err != nil {
		return fmt.Errorf("sending msg: %w", err)
	}
	return nil
}

// Receive decodes the next message from the control channel.
func (s *Session) Receive() (msg.Message, error) {
	if s.timeout > 0 {
		_ = s.ctl.SetReadDeadline(time.Now().Add(s.timeout))
		defer s.ctl.SetReadDeadline(time.Time{})
	}

	var m msg.Message
	if err := s.dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("receiving msg: %w", err)
	}
	return m, nil
}

// Greet sends hello and returns the peer's Hello.
func (s *Session) Greet(hello msg.Hello) (msg.Hello, error) {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Send(hello) }()

	m, err := s.Receive()
	if sendErr := <-errCh; sendErr != nil {
		return msg.Hello{}, sendErr
	}
	if err != nil {
		return msg.Hello{}, err
	}

	peer, ok := m.(msg.Hello)
	if !ok {
		return msg.Hello{}, fmt.Errorf("unexpected message %s, want Hello", m.MsgType())
	}
	return peer, nil
}

func config() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.LogOutput = nil
	cfg.Logger = log.New(io.Discard, "", log.LstdFlags) // discard all console logging in yamux
	return cfg
}
