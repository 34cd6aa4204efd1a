// Package entrypoint runs the connect and listen commands: it establishes
// streams and pipes them to stdio.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dominicbreuker/tlsduplex/pkg/client"
	"dominicbreuker/tlsduplex/pkg/config"
)

// Connect dials the listener described by cfg and pipes the session to
// stdio until either side ends it or ctx is cancelled.
func Connect(ctx context.Context, cfg *config.Shared, sCfg *config.Stream) error {
	return connect(ctx, cfg, sCfg, client.Dial, Handle)
}

func connect(
	parent context.Context,
	cfg *config.Shared,
	sCfg *config.Stream,
	dial dialFunc,
	handle sessionHandler,
) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sCfg, closePool, err := withSpawner(ctx, cfg, sCfg)
	if err != nil {
		return fmt.Errorf("creating pump pool: %w", err)
	}
	defer closePool()

	stream, err := dial(ctx, cfg, sCfg)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	var closeOnce sync.Once
	closeStream := func() { closeOnce.Do(func() { _ = stream.Close() }) }
	defer closeStream()

	cfg.Logger.InfoMsg("Connected to %s\n", stream.RemoteAddr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- handle(ctx, cfg, sCfg, stream, true)
	}()

	select {
	case <-ctx.Done():
		cfg.Logger.VerboseMsg("Connect: context cancelled, closing stream\n")
		closeStream()
		err := <-errCh
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("handling after cancel: %w", err)

	case err := <-errCh:
		if err == nil {
			return nil
		}
		return fmt.Errorf("handling: %w", err)
	}
}
