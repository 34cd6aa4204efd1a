package engine

import (
	"net"

	"dominicbreuker/tlsduplex/pkg/duplex"
)

// Plain passes bytes through unchanged.
type Plain struct {
	conn net.Conn
}

// NewPlain binds a passthrough engine.
func NewPlain() duplex.Binder {
	return func(conn net.Conn) duplex.Engine {
		return &Plain{conn: conn}
	}
}

func (e *Plain) Read(p []byte) (int, error)  { return e.conn.Read(p) }
func (e *Plain) Write(p []byte) (int, error) { return e.conn.Write(p) }
func (e *Plain) Flush() error                { return nil }
