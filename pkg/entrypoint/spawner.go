package entrypoint

import (
	"context"
	"fmt"

	"github.com/brickingsoft/rxp"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/semaphore"
	"dominicbreuker/tlsduplex/pkg/spawn"
)

// withSpawner returns a copy of sCfg whose Spawner honours sCfg.PoolSize,
// and a function releasing the pool. A PoolSize of 0 starts one goroutine
// per pump.
func withSpawner(ctx context.Context, cfg *config.Shared, sCfg *config.Stream) (*config.Stream, func(), error) {
	out := *sCfg
	if out.Spawner != nil || out.PoolSize == 0 {
		return &out, func() {}, nil
	}

	exec, err := rxp.New(
		rxp.WithMaxGoroutines(out.PoolSize),
		rxp.WithCloseTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("rxp.New(): %w", err)
	}
	out.Spawner = spawn.Bounded(ctx, semaphore.New(out.PoolSize, cfg.Timeout), spawn.Pool(ctx, exec))

	return &out, func() {
		if err := exec.Close(); err != nil {
			cfg.Logger.VerboseMsg("closing pump pool: %s\n", err)
		}
	}, nil
}
