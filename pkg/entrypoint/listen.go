package entrypoint

import (
	"context"
	"fmt"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/duplex"
)

// Listen serves streams on the address described by cfg, piping each one
// to stdio, until ctx is cancelled. Only one session owns stdio, so unless
// cfg.MaxConns says otherwise further connections are turned away while a
// session runs.
func Listen(ctx context.Context, cfg *config.Shared, sCfg *config.Stream) error {
	return listen(ctx, cfg, sCfg, realServerFactory(), Handle)
}

func listen(
	ctx context.Context,
	cfg *config.Shared,
	sCfg *config.Stream,
	newServer serverFactory,
	handle sessionHandler,
) error {
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 1
	}

	sCfg, closePool, err := withSpawner(ctx, cfg, sCfg)
	if err != nil {
		return fmt.Errorf("creating pump pool: %w", err)
	}
	defer closePool()

	s, err := newServer(ctx, cfg, sCfg, func(stream *duplex.Stream) error {
		return handle(ctx, cfg, sCfg, stream, false)
	})
	if err != nil {
		return fmt.Errorf("server.New(): %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cfg.Logger.VerboseMsg("Listen: context cancelled, closing listener\n")
			_ = s.Close()
		case <-done:
		}
	}()

	if err := s.Serve(); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}
