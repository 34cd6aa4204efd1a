// Package transport defines how connections are dialed and served.
//
// Each transport (tcp, ws, udp) provides a Dialer and a Listener:
//   - TCP: plain net.Conn with keep-alive, dial/listen functions injectable
//     through config.Dependencies
//   - WebSocket: ws and wss over coder/websocket, binary messages wrapped
//     as net.Conn; wss uses an ephemeral certificate
//   - UDP: KCP sessions in stream mode, packet listener injectable
//
// Listeners hand every accepted connection to a Handler on its own
// goroutine. The number of connections handled at once is bounded by a
// semaphore; connections beyond that are closed right away.
package transport

import (
	"context"
	"net"

	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/semaphore"
)

// Handler is a function that processes an incoming connection.
// It should handle the connection and return when done.
// The connection will be closed after the handler returns.
type Handler func(net.Conn) error

// Dialer establishes outbound connections.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

// Listener serves inbound connections until closed.
type Listener interface {
	Serve(handle Handler) error
	Close() error
}

// Dispatch runs handle on conn in a new goroutine if sem has a free slot,
// and closes conn otherwise. conn is closed and the slot released once
// handle returns. A nil sem never rejects.
func Dispatch(conn net.Conn, handle Handler, sem *semaphore.Semaphore, logger *log.Logger) {
	if sem != nil && !sem.TryAcquire() {
		logger.VerboseMsg("Rejecting %s: connection limit reached\n", conn.RemoteAddr())
		_ = conn.Close()
		return
	}

	go func() {
		defer sem.Release()
		defer func() { _ = conn.Close() }()
		// Prevent a panic from leaking the slot.
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorMsg("Handler panic: %v\n", r)
			}
		}()

		if err := handle(conn); err != nil {
			logger.ErrorMsg("Handling connection from %s: %s\n", conn.RemoteAddr(), err)
		}
	}()
}
