package udp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	kcp "github.com/xtaci/kcp-go/v5"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/semaphore"
	"dominicbreuker/tlsduplex/pkg/transport"
)

// Listener implements transport.Listener for UDP connections with KCP.
type Listener struct {
	pc          net.PacketConn
	kcpListener *kcp.Listener
	sem         *semaphore.Semaphore
	log         *log.Logger
}

// NewListener creates a new UDP listener with KCP on the specified address.
// The deps parameter is optional and can be nil to use default implementations.
func NewListener(addr string, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (*Listener, error) {
	if _, err := net.ResolveUDPAddr("udp", addr); err != nil {
		return nil, fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}

	pc, err := config.GetPacketListenerFunc(deps)("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen(udp, %s): %w", addr, err)
	}

	// no block cipher and no FEC; the stream's engine encrypts
	kcpListener, err := kcp.ServeConn(nil, 0, 0, pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("kcp.ServeConn(): %w", err)
	}

	return &Listener{
		pc:          pc,
		kcpListener: kcpListener,
		sem:         sem,
		log:         logger,
	}, nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.pc.LocalAddr()
}

// Serve accepts KCP sessions until the listener is closed.
func (l *Listener) Serve(handle transport.Handler) error {
	for {
		sess, err := l.kcpListener.AcceptKCP()
		if err != nil {
			// Treat listener closed as clean shutdown.
			if errors.Is(err, net.ErrClosed) ||
				errors.Is(err, io.ErrClosedPipe) ||
				strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return fmt.Errorf("AcceptKCP(): %w", err)
		}

		configure(sess)
		l.log.InfoMsg("New UDP session from %s\n", sess.RemoteAddr())
		transport.Dispatch(sess, handle, l.sem, l.log)
	}
}

// Close stops the listener and its packet conn, which kcp leaves open.
func (l *Listener) Close() error {
	err := l.kcpListener.Close()
	_ = l.pc.Close()
	return err
}
