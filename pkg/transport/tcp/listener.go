package tcp

import (
	"errors"
	"fmt"
	"net"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/semaphore"
	"dominicbreuker/tlsduplex/pkg/transport"
)

// Listener implements transport.Listener for TCP.
type Listener struct {
	nl  net.Listener
	sem *semaphore.Semaphore
	log *log.Logger
}

// NewListener listens on addr. At most sem's capacity connections are
// handled at once; a nil sem removes the limit.
func NewListener(addr string, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	nl, err := config.GetTCPListenerFunc(deps)("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %w", addr, err)
	}

	return &Listener{
		nl:  nl,
		sem: sem,
		log: logger,
	}, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

// Serve accepts connections until the listener is closed. Closing the
// listener is a clean shutdown and returns nil.
func (l *Listener) Serve(handle transport.Handler) error {
	for {
		conn, err := l.nl.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("Accept(): %w", err)
		}

		l.log.InfoMsg("New TCP connection from %s\n", conn.RemoteAddr())
		transport.Dispatch(conn, handle, l.sem, l.log)
	}
}

// Close stops the listener. Connections being handled stay open.
func (l *Listener) Close() error {
	return l.nl.Close()
}
