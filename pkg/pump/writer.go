package pump

import (
	"io"

	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/queue"
	"dominicbreuker/tlsduplex/pkg/spawn"
)

// Writer is the producer side of a write pump. Writes are accepted as soon
// as they are queued; flushing is done on the queue by the owner.
type Writer struct {
	st *state
}

// NewWriter starts a write pump on w through spawner. A nil q gets a queue
// with the default watermarks. If the spawner fails the queue is killed
// and the spawner error is returned.
func NewWriter(w io.Writer, q *queue.Queue, spawner spawn.Spawner, logger *log.Logger) (*Writer, error) {
	st := newState("write", q, logger)
	if err := spawner(func() { st.writeLoop(w) }); err != nil {
		st.err.set(err)
		st.queue.Kill()
		return nil, err
	}
	return &Writer{st: st}, nil
}

// writeLoop keeps each chunk at the head of the queue until it has been
// written completely, so an empty queue means every byte reached w. It stops
// as soon as the queue is killed, even with chunks left.
func (s *state) writeLoop(w io.Writer) {
	defer s.finish()

	for {
		chunk, err := s.queue.Front()
		if err != nil || s.queue.Dead() {
			return
		}
		if err := writeFull(w, chunk); err != nil {
			s.err.set(err)
			return
		}
		s.queue.Advance()
	}
}

func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Write queues a copy of p as one chunk and reports len(p) written.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	chunk := make([]byte, len(p))
	copy(chunk, p)
	if err := w.st.queue.Push(chunk); err != nil {
		return 0, w.st.fail()
	}
	return len(p), nil
}

// Flush is a no-op. Waiting for the transport would stall the engine lock.
func (w *Writer) Flush() error {
	return nil
}

// Queue returns the queue drained by the pump.
func (w *Writer) Queue() *queue.Queue {
	return w.st.queue
}

// Err returns the terminal error of the pump, or nil while it is healthy.
func (w *Writer) Err() error {
	return w.st.err.get()
}

// TerminalErr returns the terminal error, or ErrBrokenPipe if the queue
// died without one.
func (w *Writer) TerminalErr() error {
	return w.st.terminalErr()
}

// Close kills the queue. Chunks not yet written are dropped.
func (w *Writer) Close() error {
	w.st.queue.Kill()
	return nil
}
