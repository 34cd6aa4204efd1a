// Package queue provides a bounded, thread-safe FIFO of byte chunks with two
// watermarks and a terminal "dead" state.
//
// The high watermark caps memory: Push blocks while the queue holds that many
// chunks. The low watermark is smaller and lets a writer wait until the
// backlog of bulk data has drained far enough that protocol control messages
// are not stuck behind it.
//
// An empty chunk is a valid element. The read pump uses it as an end-of-data
// sentinel.
package queue

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dominicbreuker/tlsduplex/pkg/ioerr"
)

const (
	// DefaultHighWatermark is the maximum number of chunks held by a queue.
	DefaultHighWatermark = 8096

	// DefaultLowWatermark is the length a writer waits for before handing
	// new application data to the engine.
	DefaultLowWatermark = 4096
)

// Queue is a double-watermarked FIFO of byte chunks.
// Once killed it stays dead and every blocked caller is released.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte

	dead atomic.Bool

	high int
	low  int
}

// New returns a queue with the default watermarks.
func New() *Queue {
	q, _ := NewWithWatermarks(DefaultHighWatermark, DefaultLowWatermark)
	return q
}

// NewWithWatermarks returns a queue with custom watermarks.
// It requires 0 <= low < high.
func NewWithWatermarks(high, low int) (*Queue, error) {
	if low < 0 || low >= high {
		return nil, fmt.Errorf("invalid watermarks: need 0 <= low < high, got low=%d high=%d", low, high)
	}

	q := &Queue{high: high, low: low}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// Kill marks the queue dead and wakes all waiters. It is idempotent.
func (q *Queue) Kill() {
	q.dead.Store(true)

	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Dead reports whether the queue has been killed.
func (q *Queue) Dead() bool {
	return q.dead.Load()
}

// Len returns the number of chunks currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// HighWatermark returns the high watermark.
func (q *Queue) HighWatermark() int {
	return q.high
}

// LowWatermark returns the low watermark.
func (q *Queue) LowWatermark() int {
	return q.low
}

// Push appends chunk once fewer than HighWatermark chunks are queued.
// It has no timeout and fails only when the queue is or becomes dead.
func (q *Queue) Push(chunk []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.waitLocked(func() bool { return len(q.chunks) < q.high }, 0); err != nil {
		return err
	}
	if q.dead.Load() {
		return ioerr.ErrBrokenPipe
	}

	q.chunks = append(q.chunks, chunk)
	q.cond.Broadcast()
	return nil
}

// Pop blocks until a chunk is available and removes it. Chunks still queued
// when the queue dies are handed out before Pop fails.
func (q *Queue) Pop() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.waitLocked(q.nonEmptyLocked, 0); err != nil {
		return nil, err
	}
	return q.removeHeadLocked(), nil
}

// TryPop removes the oldest chunk without blocking. It returns ok=false if
// the queue is empty but alive.
func (q *Queue) TryPop() (chunk []byte, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) > 0 {
		return q.removeHeadLocked(), true, nil
	}
	if q.dead.Load() {
		return nil, false, ioerr.ErrBrokenPipe
	}
	return nil, false, nil
}

// Front blocks until a chunk is available and returns it without removing
// it. Together with Advance it lets a single consumer keep a chunk counted in
// Len until it has been fully processed.
func (q *Queue) Front() ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.waitLocked(q.nonEmptyLocked, 0); err != nil {
		return nil, err
	}
	return q.chunks[0], nil
}

// Advance removes the oldest chunk, if any, and wakes waiters.
func (q *Queue) Advance() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.chunks) > 0 {
		q.removeHeadLocked()
	}
}

// AwaitPop releases held, which the caller must hold, and blocks until the
// queue is non-empty, dead or the timeout elapses. Nothing is consumed.
// The queue lock is taken before held is released so no push can be missed
// in between. A timeout <= 0 waits forever.
func (q *Queue) AwaitPop(held sync.Locker, timeout time.Duration) error {
	q.mu.Lock()
	held.Unlock()
	defer q.mu.Unlock()

	return q.waitLocked(q.nonEmptyLocked, timeout)
}

// FlushLow blocks until at most LowWatermark chunks are queued.
// A timeout <= 0 waits forever.
func (q *Queue) FlushLow(timeout time.Duration) error {
	return q.flushCount(q.low, timeout)
}

// FlushZero blocks until the queue is empty.
func (q *Queue) FlushZero() error {
	return q.flushCount(0, 0)
}

func (q *Queue) flushCount(count int, timeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.waitLocked(func() bool { return len(q.chunks) <= count }, timeout); err != nil {
		return err
	}
	if q.dead.Load() {
		return ioerr.ErrBrokenPipe
	}
	return nil
}

func (q *Queue) nonEmptyLocked() bool {
	return len(q.chunks) > 0
}

func (q *Queue) removeHeadLocked() []byte {
	head := q.chunks[0]
	q.chunks[0] = nil
	q.chunks = q.chunks[1:]
	if len(q.chunks) == 0 {
		q.chunks = nil
	}
	q.cond.Broadcast()
	return head
}

// waitLocked waits on the condition until ready returns true. It fails with
// ErrBrokenPipe if the queue is dead while not ready, and with ErrTimedOut
// once the timeout has elapsed. The deadline is fixed when the wait starts.
func (q *Queue) waitLocked(ready func() bool, timeout time.Duration) error {
	var exp *expiration
	if timeout > 0 {
		exp = newExpiration(q.cond, timeout)
		defer exp.stop()
	}

	for !ready() {
		if q.dead.Load() {
			return ioerr.ErrBrokenPipe
		}
		if exp != nil && exp.expired {
			return ioerr.ErrTimedOut
		}
		q.cond.Wait()
	}
	return nil
}
