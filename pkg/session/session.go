// Package session turns a transport connection into a configured duplex
// stream. It is shared by the client and the server.
package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/duplex"
	"dominicbreuker/tlsduplex/pkg/spawn"
)

// New wraps conn in a stream bound by bind and applies the timeouts,
// watermarks and spawner of sCfg. The stream owns conn. If New fails, conn
// is closed.
func New(conn net.Conn, bind duplex.Binder, cfg *config.Shared, sCfg *config.Stream) (*duplex.Stream, error) {
	opts := []duplex.Option{duplex.WithLogger(cfg.Logger)}
	if sCfg.HasWatermarks() {
		opts = append(opts, duplex.WithWatermarks(sCfg.HighWatermark, sCfg.LowWatermark))
	}

	spawner := sCfg.Spawner
	if spawner == nil {
		spawner = spawn.Goroutine
	}

	s, err := duplex.NewConn(bind, conn, spawner, opts...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("duplex.NewConn(): %w", err)
	}

	if err := s.SetReadTimeout(sCfg.ReadTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("SetReadTimeout(%s): %w", sCfg.ReadTimeout, err)
	}
	if err := s.SetWriteTimeout(sCfg.WriteTimeout); err != nil {
		s.Close()
		return nil, fmt.Errorf("SetWriteTimeout(%s): %w", sCfg.WriteTimeout, err)
	}

	return s, nil
}

// Handshake runs the stream handshake, giving up after timeout. A timeout
// <= 0 waits for ctx only. The stream is closed if the handshake fails.
func Handshake(ctx context.Context, s *duplex.Stream, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.HandshakeContext(ctx); err != nil {
		s.Close()
		return fmt.Errorf("HandshakeContext(): %w", err)
	}

	return nil
}
