// Package engine binds protocol engines to a duplex stream.
package engine

import (
	"context"
	"crypto/tls"
	"net"

	"dominicbreuker/tlsduplex/pkg/duplex"
)

// TLS is a crypto/tls connection used as a duplex engine.
type TLS struct {
	conn *tls.Conn
}

// TLSClient binds a TLS client using cfg.
func TLSClient(cfg *tls.Config) duplex.Binder {
	return func(conn net.Conn) duplex.Engine {
		return &TLS{conn: tls.Client(conn, cfg)}
	}
}

// TLSServer binds a TLS server using cfg.
func TLSServer(cfg *tls.Config) duplex.Binder {
	return func(conn net.Conn) duplex.Engine {
		return &TLS{conn: tls.Server(conn, cfg)}
	}
}

func (e *TLS) Read(p []byte) (int, error) {
	return e.conn.Read(p)
}

func (e *TLS) Write(p []byte) (int, error) {
	return e.conn.Write(p)
}

// Flush is a no-op. crypto/tls writes every record through immediately.
func (e *TLS) Flush() error {
	return nil
}

// HandshakeContext runs the TLS handshake.
func (e *TLS) HandshakeContext(ctx context.Context) error {
	return e.conn.HandshakeContext(ctx)
}

// ConnectionState returns the negotiated TLS parameters.
func (e *TLS) ConnectionState() tls.ConnectionState {
	return e.conn.ConnectionState()
}
