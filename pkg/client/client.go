// Package client dials a listener and returns a handshaken duplex stream.
package client

import (
	"context"
	"fmt"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/duplex"
	"dominicbreuker/tlsduplex/pkg/engine"
	"dominicbreuker/tlsduplex/pkg/format"
	"dominicbreuker/tlsduplex/pkg/session"
	"dominicbreuker/tlsduplex/pkg/transport"
	"dominicbreuker/tlsduplex/pkg/transport/tcp"
	"dominicbreuker/tlsduplex/pkg/transport/udp"
	"dominicbreuker/tlsduplex/pkg/transport/ws"
)

// dependencies holds the constructors Dial uses, so tests can swap them.
type dependencies struct {
	newTCPDialer func(addr string, deps *config.Dependencies) (transport.Dialer, error)
	newWSDialer  func(ctx context.Context, url string) transport.Dialer
	newUDPDialer func(addr string, deps *config.Dependencies) (transport.Dialer, error)
	newBinder    func(cfg *config.Shared) (duplex.Binder, error)
}

func defaultDependencies() *dependencies {
	return &dependencies{
		newTCPDialer: func(addr string, deps *config.Dependencies) (transport.Dialer, error) {
			return tcp.NewDialer(addr, deps)
		},
		newWSDialer: func(ctx context.Context, url string) transport.Dialer {
			return ws.NewDialer(ctx, url)
		},
		newUDPDialer: func(addr string, deps *config.Dependencies) (transport.Dialer, error) {
			return udp.NewDialer(addr, deps)
		},
		newBinder: engine.ForClient,
	}
}

// Dial connects to cfg.Host:cfg.Port over cfg.Protocol and returns a stream
// whose handshake has completed. cfg.Timeout bounds the dial and the
// handshake separately. ctx bounds the lifetime of WebSocket connections.
func Dial(ctx context.Context, cfg *config.Shared, sCfg *config.Stream) (*duplex.Stream, error) {
	return dial(ctx, cfg, sCfg, defaultDependencies())
}

func dial(ctx context.Context, cfg *config.Shared, sCfg *config.Stream, deps *dependencies) (*duplex.Stream, error) {
	addr := format.Addr(cfg.Host, cfg.Port)

	bind, err := deps.newBinder(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine.ForClient(): %w", err)
	}

	d, err := createDialer(ctx, cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("NewDialer: %w", err)
	}

	cfg.Logger.InfoMsg("Connecting to %s\n", addr)

	dialCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	conn, err := d.Dial(dialCtx)
	if err != nil {
		return nil, fmt.Errorf("Dial(): %w", err)
	}

	stream, err := session.New(conn, bind, cfg, sCfg)
	if err != nil {
		return nil, fmt.Errorf("session.New(): %w", err)
	}

	if err := session.Handshake(ctx, stream, cfg.Timeout); err != nil {
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}

	cfg.Logger.VerboseMsg("Session with %s established (%s)\n", stream.RemoteAddr(), cfg.Security())
	return stream, nil
}

func createDialer(ctx context.Context, cfg *config.Shared, deps *dependencies) (transport.Dialer, error) {
	addr := format.Addr(cfg.Host, cfg.Port)

	switch cfg.Protocol {
	case config.ProtoWS, config.ProtoWSS:
		return deps.newWSDialer(ctx, format.URL(cfg.Protocol.String(), cfg.Host, cfg.Port)), nil
	case config.ProtoUDP:
		return deps.newUDPDialer(addr, cfg.Deps)
	default:
		return deps.newTCPDialer(addr, cfg.Deps)
	}
}
