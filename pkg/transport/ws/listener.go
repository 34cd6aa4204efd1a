package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/crypto"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/semaphore"
	"dominicbreuker/tlsduplex/pkg/transport"
)

// Listener implements transport.Listener for WebSocket connections. Each
// upgraded request is handled on its HTTP handler goroutine; requests
// beyond the semaphore's capacity get HTTP 503.
type Listener struct {
	ctx context.Context
	nl  net.Listener
	sem *semaphore.Semaphore
	log *log.Logger

	server *http.Server
}

// NewListener listens on addr, with transport-level TLS for wss. Handled
// connections are closed when ctx ends.
func NewListener(ctx context.Context, addr string, useTLS bool, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (*Listener, error) {
	nl, err := createNetListener(addr, useTLS, deps)
	if err != nil {
		return nil, err
	}

	return &Listener{
		ctx: ctx,
		nl:  nl,
		sem: sem,
		log: logger,
		server: &http.Server{
			// Timeouts for long-lived tunnel connections
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// createNetListener creates a TCP listener with optional TLS.
func createNetListener(addr string, useTLS bool, deps *config.Dependencies) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	nl, err := config.GetTCPListenerFunc(deps)("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %w", tcpAddr.String(), err)
	}

	if useTLS {
		tlsListener, err := wrapWithTLS(nl)
		if err != nil {
			nl.Close()
			return nil, fmt.Errorf("wrap with TLS: %w", err)
		}
		nl = tlsListener
	}

	return nl, nil
}

// wrapWithTLS wraps a listener with TLS using an ephemeral certificate.
func wrapWithTLS(nl net.Listener) (net.Listener, error) {
	_, cert, err := crypto.GenerateCertificates("")
	if err != nil {
		return nil, fmt.Errorf("crypto.GenerateCertificates(): %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}

	return tls.NewListener(nl, tlsCfg), nil
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.nl.Addr()
}

// Serve runs an HTTP server that upgrades every request to a WebSocket
// and passes it to handle. It returns nil once the listener is closed.
func (l *Listener) Serve(handle transport.Handler) error {
	l.server.Handler = l.upgradeHandler(handle)

	err := l.server.Serve(l.nl)
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return fmt.Errorf("http.Server.Serve(): %w", err)
}

func (l *Listener) upgradeHandler(handle transport.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.sem.TryAcquire() {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		defer l.sem.Release()

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"bin"},
		})
		if err != nil {
			l.log.ErrorMsg("websocket.Accept(): %s\n", err)
			return
		}

		conn := websocket.NetConn(l.ctx, c, websocket.MessageBinary)
		l.log.InfoMsg("New WS connection from %s\n", r.RemoteAddr)
		defer func() { _ = conn.Close() }()

		// Prevent panic from leaking resources
		defer func() {
			if r := recover(); r != nil {
				l.log.ErrorMsg("Handler panic: %v\n", r)
			}
		}()

		if err := handle(conn); err != nil {
			l.log.ErrorMsg("handle websocket.NetConn: %s\n", err)
		}
	}
}

// Close stops accepting and closes the listener.
func (l *Listener) Close() error {
	err := l.server.Close()
	_ = l.nl.Close()
	return err
}
