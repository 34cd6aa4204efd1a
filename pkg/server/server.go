// Package server accepts connections and hands each one to a handler as a
// handshaken duplex stream.
package server

import (
	"context"
	"fmt"
	"net"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/duplex"
	"dominicbreuker/tlsduplex/pkg/engine"
	"dominicbreuker/tlsduplex/pkg/format"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/semaphore"
	"dominicbreuker/tlsduplex/pkg/session"
	"dominicbreuker/tlsduplex/pkg/transport"
	"dominicbreuker/tlsduplex/pkg/transport/tcp"
	"dominicbreuker/tlsduplex/pkg/transport/udp"
	"dominicbreuker/tlsduplex/pkg/transport/ws"
)

// DefaultMaxConns is used when config.Shared.MaxConns is 0.
const DefaultMaxConns = 100

// Handler serves one stream. The stream is closed when it returns.
type Handler func(*duplex.Stream) error

// listener is a transport.Listener bound to a local address.
type listener interface {
	transport.Listener
	Addr() net.Addr
}

type dependencies struct {
	newTCPListener func(addr string, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (listener, error)
	newWSListener  func(ctx context.Context, addr string, useTLS bool, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (listener, error)
	newUDPListener func(addr string, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (listener, error)
	newBinder      func(cfg *config.Shared) (duplex.Binder, error)
}

func defaultDependencies() *dependencies {
	return &dependencies{
		newTCPListener: func(addr string, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (listener, error) {
			return tcp.NewListener(addr, deps, sem, logger)
		},
		newWSListener: func(ctx context.Context, addr string, useTLS bool, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (listener, error) {
			return ws.NewListener(ctx, addr, useTLS, deps, sem, logger)
		},
		newUDPListener: func(addr string, deps *config.Dependencies, sem *semaphore.Semaphore, logger *log.Logger) (listener, error) {
			return udp.NewListener(addr, deps, sem, logger)
		},
		newBinder: engine.ForServer,
	}
}

// Server ...
type Server struct {
	ctx    context.Context
	cfg    *config.Shared
	sCfg   *config.Stream
	bind   duplex.Binder
	l      listener
	handle Handler
}

// New binds the listener for cfg and prepares the engine. Certificates are
// generated here, once, and not per connection.
func New(ctx context.Context, cfg *config.Shared, sCfg *config.Stream, handle Handler) (*Server, error) {
	return newServer(ctx, cfg, sCfg, handle, defaultDependencies())
}

func newServer(ctx context.Context, cfg *config.Shared, sCfg *config.Stream, handle Handler, deps *dependencies) (*Server, error) {
	bind, err := deps.newBinder(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine.ForServer(): %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns == 0 {
		maxConns = DefaultMaxConns
	}
	sem := semaphore.New(maxConns, 0)

	addr := format.Addr(cfg.Host, cfg.Port)

	var l listener
	switch cfg.Protocol {
	case config.ProtoWS, config.ProtoWSS:
		l, err = deps.newWSListener(ctx, addr, cfg.Protocol == config.ProtoWSS, cfg.Deps, sem, cfg.Logger)
	case config.ProtoUDP:
		l, err = deps.newUDPListener(addr, cfg.Deps, sem, cfg.Logger)
	default:
		l, err = deps.newTCPListener(addr, cfg.Deps, sem, cfg.Logger)
	}
	if err != nil {
		return nil, fmt.Errorf("NewListener(%s): %w", addr, err)
	}

	return &Server{
		ctx:    ctx,
		cfg:    cfg,
		sCfg:   sCfg,
		bind:   bind,
		l:      l,
		handle: handle,
	}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.l.Addr()
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() error {
	s.cfg.Logger.InfoMsg("Listening on %s (%s)\n", s.l.Addr(), s.cfg.Protocol)
	return s.l.Serve(s.serveConn)
}

// Close stops accepting. Streams already handed to the handler stay open.
func (s *Server) Close() error {
	return s.l.Close()
}

func (s *Server) serveConn(conn net.Conn) error {
	remote := conn.RemoteAddr()

	stream, err := session.New(conn, s.bind, s.cfg, s.sCfg)
	if err != nil {
		return fmt.Errorf("session.New(): %w", err)
	}
	defer stream.Close()

	if err := session.Handshake(s.ctx, stream, s.cfg.Timeout); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	s.cfg.Logger.InfoMsg("New connection from %s\n", remote)
	defer s.cfg.Logger.InfoMsg("Connection from %s closed\n", remote)

	return s.handle(stream)
}
