package pump

import (
	"errors"
	"io"
	"sync/atomic"

	"dominicbreuker/tlsduplex/pkg/ioerr"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/queue"
	"dominicbreuker/tlsduplex/pkg/spawn"
)

// Reader is the consumer side of a read pump.
// Read must not be called concurrently; Close and SetNonBlocking may.
type Reader struct {
	st *state

	nonBlock atomic.Bool
	pending  []byte
	eof      bool
}

// NewReader starts a read pump on r through spawner. A nil q gets a queue
// with the default watermarks. If the spawner fails the queue is killed
// and the spawner error is returned.
func NewReader(r io.Reader, q *queue.Queue, spawner spawn.Spawner, logger *log.Logger) (*Reader, error) {
	st := newState("read", q, logger)
	if err := spawner(func() { st.readLoop(r) }); err != nil {
		st.err.set(err)
		st.queue.Kill()
		return nil, err
	}
	return &Reader{st: st}, nil
}

func (s *state) readLoop(r io.Reader) {
	defer s.finish()

	buf := make([]byte, ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if perr := s.queue.Push(chunk); perr != nil {
				s.err.set(perr)
				return
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if perr := s.queue.Push([]byte{}); perr != nil {
				s.err.set(perr)
			}
			return
		default:
			s.err.set(err)
			return
		}
	}
}

// Read serves leftover bytes first, then the next queued chunk. After the
// end-of-data sentinel every call returns (0, io.EOF). In non-blocking mode
// an empty queue yields ioerr.ErrWouldBlock.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.eof {
		return 0, io.EOF
	}

	if len(r.pending) == 0 {
		chunk, err := r.next()
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			r.eof = true
			return 0, io.EOF
		}
		r.pending = chunk
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *Reader) next() ([]byte, error) {
	if r.nonBlock.Load() {
		chunk, ok, err := r.st.queue.TryPop()
		if err != nil {
			return nil, r.st.fail()
		}
		if !ok {
			return nil, ioerr.ErrWouldBlock
		}
		return chunk, nil
	}

	chunk, err := r.st.queue.Pop()
	if err != nil {
		return nil, r.st.fail()
	}
	return chunk, nil
}

// SetNonBlocking toggles non-blocking reads.
func (r *Reader) SetNonBlocking(nonBlock bool) {
	r.nonBlock.Store(nonBlock)
}

// Queue returns the queue filled by the pump.
func (r *Reader) Queue() *queue.Queue {
	return r.st.queue
}

// Err returns the terminal error of the pump, or nil while it is healthy.
func (r *Reader) Err() error {
	return r.st.err.get()
}

// TerminalErr returns the terminal error, or ErrBrokenPipe if the queue
// died without one.
func (r *Reader) TerminalErr() error {
	return r.st.terminalErr()
}

// Close kills the queue. The pump stops at its next queue operation.
func (r *Reader) Close() error {
	r.st.queue.Kill()
	return nil
}
