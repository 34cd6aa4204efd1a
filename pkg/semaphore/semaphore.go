// Package semaphore provides a timeout-aware counting semaphore. It bounds
// the number of pump goroutines and of concurrently served streams.
package semaphore

import (
	"context"
	"fmt"
	"time"
)

// Semaphore is a counting semaphore backed by a buffered channel.
// A nil *Semaphore never blocks.
type Semaphore struct {
	slots   chan struct{}
	timeout time.Duration
}

// New creates a semaphore with n free slots. Acquire gives up after timeout;
// a timeout <= 0 only honours the context.
func New(n int, timeout time.Duration) *Semaphore {
	slots := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		slots <- struct{}{}
	}
	return &Semaphore{slots: slots, timeout: timeout}
}

// Acquire takes a slot, waiting at most the configured timeout.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}

	waitCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case <-s.slots:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("timeout acquiring slot after %v", s.timeout)
	}
}

// TryAcquire takes a slot if one is free right now.
func (s *Semaphore) TryAcquire() bool {
	if s == nil {
		return true
	}

	select {
	case <-s.slots:
		return true
	default:
		return false
	}
}

// Release returns a slot.
func (s *Semaphore) Release() {
	if s == nil {
		return
	}
	s.slots <- struct{}{}
}

// Available returns the number of free slots.
func (s *Semaphore) Available() int {
	if s == nil {
		return 0
	}
	return len(s.slots)
}
