// Package spawn provides the capability a duplex stream uses to start its two
// pump loops. A Spawner runs a task asynchronously or reports why it could not.
package spawn

import (
	"context"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"

	"dominicbreuker/tlsduplex/pkg/semaphore"
)

// ErrSpawn is the root of every error returned by the spawners of this package.
var ErrSpawn = errors.Define("spawn failed")

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "spawn"
	errMetaOpKey  = "op"
)

// IsSpawnError reports whether err came from a spawner of this package.
func IsSpawnError(err error) bool {
	return errors.Is(err, ErrSpawn)
}

// Spawner runs task asynchronously. It returns an error if the task was not
// started, in which case it must never run.
type Spawner func(task func()) error

// taskFunc adapts a plain func to rxp.Task.
type taskFunc func()

func (f taskFunc) Handle(context.Context) { f() }

// Goroutine runs every task on a fresh goroutine. It never fails.
func Goroutine(task func()) error {
	go task()
	return nil
}

// Pool runs tasks on an rxp executor pool. Tasks are long-lived pump loops,
// so the pool must allow at least two goroutines per stream.
func Pool(ctx context.Context, exec rxp.Executors) Spawner {
	return func(task func()) error {
		if err := exec.Execute(ctx, taskFunc(task)); err != nil {
			return errors.From(
				ErrSpawn,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaOpKey, "pool"),
				errors.WithWrap(err),
			)
		}
		return nil
	}
}

// Bounded holds a semaphore slot for the lifetime of each task and delegates
// the actual start to next. A nil next means Goroutine.
func Bounded(ctx context.Context, sem *semaphore.Semaphore, next Spawner) Spawner {
	if next == nil {
		next = Goroutine
	}

	return func(task func()) error {
		if err := sem.Acquire(ctx); err != nil {
			return errors.From(
				ErrSpawn,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaOpKey, "acquire"),
				errors.WithWrap(err),
			)
		}

		err := next(func() {
			defer sem.Release()
			task()
		})
		if err != nil {
			sem.Release()
			return err
		}
		return nil
	}
}
