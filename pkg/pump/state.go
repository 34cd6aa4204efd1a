// Package pump moves bytes between a blocking transport and a bounded queue
// on a background task.
//
// A read pump fills its queue from an io.Reader and a write pump drains its
// queue into an io.Writer. The consumer and producer sides are cheap,
// queue-backed io.Reader and io.Writer values that an engine can drive
// without ever blocking on the transport itself.
package pump

import (
	"fmt"
	"sync/atomic"

	"dominicbreuker/tlsduplex/pkg/ioerr"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/queue"
)

// ChunkSize is the size of a single transport read.
const ChunkSize = 64 * 1024

// errCell holds the first terminal error of a pump. Later sets are ignored.
type errCell struct {
	p atomic.Pointer[error]
}

func (c *errCell) set(err error) bool {
	return c.p.CompareAndSwap(nil, &err)
}

func (c *errCell) get() error {
	if p := c.p.Load(); p != nil {
		return *p
	}
	return nil
}

// state is shared between a pump loop and its queue-facing side.
type state struct {
	name  string
	queue *queue.Queue
	err   errCell
	log   *log.Logger
}

func newState(name string, q *queue.Queue, logger *log.Logger) *state {
	if q == nil {
		q = queue.New()
	}
	return &state{name: name, queue: q, log: logger}
}

// fail records BrokenPipe unless an error is already recorded, kills the
// queue and returns the recorded error. All callers therefore observe the
// same terminal error.
func (s *state) fail() error {
	s.err.set(ioerr.ErrBrokenPipe)
	s.queue.Kill()
	return s.err.get()
}

// terminalErr is called once the queue is dead. It records ErrBrokenPipe
// if nothing else was recorded, so the answer never changes afterwards.
func (s *state) terminalErr() error {
	s.err.set(ioerr.ErrBrokenPipe)
	return s.err.get()
}

// finish must be deferred by every pump loop.
func (s *state) finish() {
	if r := recover(); r != nil {
		err := fmt.Errorf("%s pump panic: %v", s.name, r)
		s.err.set(err)
		s.log.ErrorMsg("%v\n", err)
	}
	s.queue.Kill()

	if err := s.err.get(); err != nil {
		s.log.VerboseMsg("%s pump stopped: %v\n", s.name, err)
	} else {
		s.log.VerboseMsg("%s pump stopped\n", s.name)
	}
}
