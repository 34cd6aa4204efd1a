package entrypoint

import (
	"context"
	"fmt"
	"net"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/mux"
	"dominicbreuker/tlsduplex/pkg/mux/msg"
	"dominicbreuker/tlsduplex/pkg/pipeio"
)

// ProtocolVersion is exchanged in the mux Hello. Peers with a different
// version are refused.
const ProtocolVersion = "1"

// Handle pipes the session on conn to stdio. With cfg.Mux the data flows
// through a yamux channel after both sides exchanged a Hello.
func Handle(ctx context.Context, cfg *config.Shared, sCfg *config.Stream, conn net.Conn, dialer bool) error {
	data := conn

	if cfg.Mux {
		sess, ch, err := openMux(ctx, cfg, conn, dialer)
		if err != nil {
			return err
		}
		defer sess.Close()
		data = ch
	}

	if sCfg.LogFile != "" {
		var err error
		data, err = log.NewLoggedConn(data, sCfg.LogFile)
		if err != nil {
			return fmt.Errorf("enabling logging to %s: %w", sCfg.LogFile, err)
		}
	}

	stdio := pipeio.NewStdio(config.GetStdinFunc(cfg.Deps)(), config.GetStdoutFunc(cfg.Deps)())
	pipeio.Pipe(ctx, stdio, data, func(err error) {
		cfg.Logger.VerboseMsg("Pipe(stdio, conn): %s\n", err)
	})

	return nil
}

func openMux(ctx context.Context, cfg *config.Shared, conn net.Conn, dialer bool) (*mux.Session, net.Conn, error) {
	var sess *mux.Session
	var err error
	if dialer {
		sess, err = mux.Open(ctx, conn, cfg.Timeout)
	} else {
		sess, err = mux.Accept(ctx, conn, cfg.Timeout)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("starting mux session: %w", err)
	}

	peer, err := sess.Greet(msg.Hello{Version: ProtocolVersion, Security: string(cfg.Security())})
	if err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("Greet(): %w", err)
	}
	if peer.Version != ProtocolVersion {
		sess.Close()
		return nil, nil, fmt.Errorf("peer speaks protocol version %s, want %s", peer.Version, ProtocolVersion)
	}
	cfg.Logger.VerboseMsg("Mux session up, peer security %s\n", peer.Security)

	var ch net.Conn
	if dialer {
		ch, err = sess.OpenChannelContext(ctx)
	} else {
		ch, err = sess.AcceptChannelContext(ctx)
	}
	if err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("opening data channel: %w", err)
	}

	return sess, ch, nil
}
