package entrypoint

import (
	"context"
	"net"

	"dominicbreuker/tlsduplex/pkg/client"
	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/duplex"
	"dominicbreuker/tlsduplex/pkg/server"
)

// dialFunc establishes a handshaken stream, see client.Dial.
type dialFunc func(ctx context.Context, cfg *config.Shared, sCfg *config.Stream) (*duplex.Stream, error)

// serverInterface defines the interface for a server that can serve and be closed.
type serverInterface interface {
	Serve() error
	Close() error
}

// serverFactory is a function type for creating servers.
type serverFactory func(ctx context.Context, cfg *config.Shared, sCfg *config.Stream, handle server.Handler) (serverInterface, error)

// realServerFactory returns the actual server factory used in production.
func realServerFactory() serverFactory {
	return func(ctx context.Context, cfg *config.Shared, sCfg *config.Stream, handle server.Handler) (serverInterface, error) {
		return server.New(ctx, cfg, sCfg, handle)
	}
}

// sessionHandler runs one session on conn. dialer tells which side of the
// connection this is.
type sessionHandler func(ctx context.Context, cfg *config.Shared, sCfg *config.Stream, conn net.Conn, dialer bool) error

var _ dialFunc = client.Dial
var _ sessionHandler = Handle
