// Package duplex provides a full-duplex stream over a protocol engine such as
// crypto/tls.
//
// The engine is bound to an in-memory pipe instead of the transport. Two
// pumps move bytes between that pipe and the transport in the background,
// so one goroutine can block in Read while another writes, even though the
// engine itself is not safe for concurrent use. Read and write timeouts and
// non-blocking reads are implemented by the Stream on the queues and never
// touch the transport.
package duplex

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"dominicbreuker/tlsduplex/pkg/ioerr"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/pump"
	"dominicbreuker/tlsduplex/pkg/queue"
	"dominicbreuker/tlsduplex/pkg/spawn"
)

// Engine is a protocol engine bound to a byte stream. It is only ever used
// by one goroutine at a time.
type Engine interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
}

// Handshaker is implemented by engines that negotiate before exchanging
// application data. The handshake runs in blocking mode on its own
// goroutine while holding the engine.
type Handshaker interface {
	HandshakeContext(ctx context.Context) error
}

// Binder binds a new engine to the stream's pipe.
type Binder func(conn net.Conn) Engine

// Stream is a duplex stream. All methods are safe for concurrent use. Reads
// are serialized with reads and writes with writes, but a read and a write
// can be in progress at the same time.
type Stream struct {
	engine Engine
	pipe   *combinedPipe
	reader *pump.Reader
	writer *pump.Writer
	readQ  *queue.Queue
	writeQ *queue.Queue

	nonBlockingRead atomic.Bool

	readTimeoutMu  poisonMutex
	readTimeout    time.Duration
	writeTimeoutMu poisonMutex
	writeTimeout   time.Duration

	engineMu poisonMutex
	writeMu  poisonMutex
	readMu   poisonMutex

	hsOnce   sync.Once
	hsDone   chan struct{}
	hsErr    error // written before hsDone is closed
	hsCtx    context.Context
	hsCancel context.CancelFunc

	closer    io.Closer
	closeOnce sync.Once
	closeErr  error

	log *log.Logger
}

// New starts the read pump on r and the write pump on w through spawner,
// binds an engine to the pipe between them and returns the stream.
//
// The spawner is called exactly twice, read pump first. If the first call
// fails nothing else is started. If the second fails the read pump is
// killed. In both cases the spawner error is returned.
func New(bind Binder, r io.Reader, w io.Writer, spawner spawn.Spawner, opts ...Option) (*Stream, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	readQ, err := queue.NewWithWatermarks(o.high, o.low)
	if err != nil {
		return nil, fmt.Errorf("queue.NewWithWatermarks(%d, %d): %w", o.high, o.low, err)
	}
	writeQ, _ := queue.NewWithWatermarks(o.high, o.low)

	reader, err := pump.NewReader(r, readQ, spawner, o.logger)
	if err != nil {
		writeQ.Kill()
		return nil, err
	}
	writer, err := pump.NewWriter(w, writeQ, spawner, o.logger)
	if err != nil {
		reader.Close()
		return nil, err
	}

	pipe := newCombinedPipe(reader, writer, r, w)
	hsCtx, hsCancel := context.WithCancel(context.Background())
	s := &Stream{
		engine: bind(pipe),
		pipe:   pipe,
		reader: reader,
		writer: writer,
		readQ:  readQ,
		writeQ: writeQ,
		closer: o.closer,
		log:    o.logger,

		hsDone:   make(chan struct{}),
		hsCtx:    hsCtx,
		hsCancel: hsCancel,
	}
	return s, nil
}

// NewUnpooled is New with one goroutine per pump.
func NewUnpooled(bind Binder, r io.Reader, w io.Writer, opts ...Option) (*Stream, error) {
	return New(bind, r, w, spawn.Goroutine, opts...)
}

// NewConn is New for a transport that is a single net.Conn. Close also
// closes conn.
func NewConn(bind Binder, conn net.Conn, spawner spawn.Spawner, opts ...Option) (*Stream, error) {
	opts = append([]Option{WithTransportCloser(conn)}, opts...)
	return New(bind, conn, conn, spawner, opts...)
}

// Engine returns the bound engine. It must not be used directly while the
// stream is in use.
func (s *Stream) Engine() Engine {
	return s.engine
}

// Handshake is HandshakeContext with a background context.
func (s *Stream) Handshake() error {
	return s.HandshakeContext(context.Background())
}

// HandshakeContext starts the engine handshake if it has not started yet and
// waits for it. If ctx ends first the handshake is aborted, which is final:
// the error is returned by every later call. Read and Write start the
// handshake implicitly.
func (s *Stream) HandshakeContext(ctx context.Context) error {
	s.startHandshake()

	select {
	case <-s.hsDone:
		return s.hsErr
	case <-ctx.Done():
		s.hsCancel()
		<-s.hsDone
		if s.hsErr == nil {
			return nil
		}
		return ctx.Err()
	}
}

func (s *Stream) startHandshake() {
	s.hsOnce.Do(func() {
		hs, ok := s.engine.(Handshaker)
		if !ok {
			close(s.hsDone)
			return
		}
		go s.runHandshake(hs)
	})
}

func (s *Stream) runHandshake(hs Handshaker) {
	defer close(s.hsDone)
	defer func() {
		if r := recover(); r != nil {
			s.hsErr = fmt.Errorf("handshake panicked: %v: %w", r, ioerr.ErrPoisoned)
		}
	}()

	if err := s.engineMu.acquire(); err != nil {
		s.hsErr = err
		return
	}
	defer s.engineMu.release()

	s.hsErr = hs.HandshakeContext(s.hsCtx)
	if s.hsErr != nil {
		s.log.VerboseMsg("handshake failed: %v\n", s.hsErr)
	}
}

// awaitHandshake waits for the implicit handshake like Read and Write wait
// for their queues: up to timeout, or not at all when nonBlock is set. Giving
// up leaves the handshake running.
func (s *Stream) awaitHandshake(timeout time.Duration, nonBlock bool) error {
	s.startHandshake()

	select {
	case <-s.hsDone:
		return s.hsErr
	default:
	}
	if nonBlock {
		return ioerr.ErrWouldBlock
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-s.hsDone:
		return s.hsErr
	case <-expired:
		return ioerr.ErrTimedOut
	}
}

// Write hands p to the engine once the outgoing queue has drained to its low
// watermark. It fails with ioerr.ErrTimedOut if that takes longer than the
// write timeout. Bytes written are queued and not yet on the transport; use
// Flush to wait for them.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.writeMu.acquire(); err != nil {
		return 0, err
	}
	defer s.writeMu.release()

	timeout, err := s.WriteTimeout()
	if err != nil {
		return 0, err
	}
	if err := s.awaitHandshake(timeout, false); err != nil {
		return 0, err
	}
	if err := s.writeQ.FlushLow(timeout); err != nil {
		return 0, s.writeQueueErr(err)
	}

	if err := s.engineMu.acquire(); err != nil {
		return 0, err
	}
	defer s.engineMu.release()

	return s.engine.Write(p)
}

// Flush flushes the engine and waits until every queued byte has been
// written to the transport.
func (s *Stream) Flush() error {
	if err := s.writeMu.acquire(); err != nil {
		return err
	}
	defer s.writeMu.release()

	if err := s.flushEngine(); err != nil {
		return err
	}
	if err := s.writeQ.FlushZero(); err != nil {
		return s.writeQueueErr(err)
	}
	return nil
}

func (s *Stream) flushEngine() error {
	if err := s.engineMu.acquire(); err != nil {
		return err
	}
	defer s.engineMu.release()

	return s.engine.Flush()
}

// writeQueueErr maps a dead outgoing queue to the write pump's error.
func (s *Stream) writeQueueErr(err error) error {
	if ioerr.IsBrokenPipe(err) {
		return s.writer.TerminalErr()
	}
	return err
}

// Read reads plaintext from the engine. Without data it waits up to the
// read timeout and then fails with ioerr.ErrTimedOut, or fails with
// ioerr.ErrWouldBlock right away in non-blocking mode. At the end of the
// stream it returns (0, io.EOF).
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.readMu.acquire(); err != nil {
		return 0, err
	}
	defer s.readMu.release()

	timeout, err := s.ReadTimeout()
	if err != nil {
		return 0, err
	}
	if err := s.awaitHandshake(timeout, s.nonBlockingRead.Load()); err != nil {
		return 0, err
	}

	for {
		if err := s.engineMu.acquire(); err != nil {
			return 0, err
		}

		n, err := s.engineRead(p)
		if err == nil || !ioerr.IsWouldBlock(err) {
			s.engineMu.Unlock()
			return n, err
		}
		if s.nonBlockingRead.Load() {
			s.engineMu.Unlock()
			return 0, ioerr.ErrWouldBlock
		}

		// AwaitPop releases the engine lock once it holds the queue lock.
		if err := s.readQ.AwaitPop(&s.engineMu, timeout); err != nil {
			if ioerr.IsBrokenPipe(err) {
				return 0, s.reader.TerminalErr()
			}
			return 0, err
		}
	}
}

// engineRead must be called with engineMu held. The pipe is non-blocking
// only for the duration of the call.
func (s *Stream) engineRead(p []byte) (int, error) {
	defer s.engineMu.poisonOnPanic()

	s.pipe.setNonBlocking(true)
	defer s.pipe.setNonBlocking(false)

	return s.engine.Read(p)
}

// SetReadTimeout sets how long Read waits for data. d <= 0 waits forever.
func (s *Stream) SetReadTimeout(d time.Duration) error {
	if err := s.readTimeoutMu.acquire(); err != nil {
		return err
	}
	defer s.readTimeoutMu.release()

	s.readTimeout = d
	return nil
}

// ReadTimeout returns the read timeout.
func (s *Stream) ReadTimeout() (time.Duration, error) {
	if err := s.readTimeoutMu.acquire(); err != nil {
		return 0, err
	}
	defer s.readTimeoutMu.release()

	return s.readTimeout, nil
}

// SetWriteTimeout sets how long Write waits for the outgoing queue to
// drain. d <= 0 waits forever.
func (s *Stream) SetWriteTimeout(d time.Duration) error {
	if err := s.writeTimeoutMu.acquire(); err != nil {
		return err
	}
	defer s.writeTimeoutMu.release()

	s.writeTimeout = d
	return nil
}

// WriteTimeout returns the write timeout.
func (s *Stream) WriteTimeout() (time.Duration, error) {
	if err := s.writeTimeoutMu.acquire(); err != nil {
		return 0, err
	}
	defer s.writeTimeoutMu.release()

	return s.writeTimeout, nil
}

// SetReadNonBlock toggles non-blocking reads.
func (s *Stream) SetReadNonBlock(nonBlock bool) error {
	s.nonBlockingRead.Store(nonBlock)
	return nil
}

// ReadNonBlock reports whether reads are non-blocking.
func (s *Stream) ReadNonBlock() bool {
	return s.nonBlockingRead.Load()
}

// Close kills both pumps and closes the transport closer, if any. Queued
// bytes that were not flushed are dropped. A pending handshake is aborted.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.hsCancel()
		s.pipe.Close()
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// LocalAddr returns the transport's local address if it has one.
func (s *Stream) LocalAddr() net.Addr {
	return s.pipe.LocalAddr()
}

// RemoteAddr returns the transport's remote address if it has one.
func (s *Stream) RemoteAddr() net.Addr {
	return s.pipe.RemoteAddr()
}

// SetDeadline sets both timeouts relative to now. The zero time clears them.
func (s *Stream) SetDeadline(t time.Time) error {
	if err := s.SetReadDeadline(t); err != nil {
		return err
	}
	return s.SetWriteDeadline(t)
}

// SetReadDeadline sets the read timeout to time.Until(t).
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.SetReadTimeout(untilDeadline(t))
}

// SetWriteDeadline sets the write timeout to time.Until(t).
func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.SetWriteTimeout(untilDeadline(t))
}

// untilDeadline keeps a deadline in the past from turning into "no timeout".
func untilDeadline(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	if d := time.Until(t); d > 0 {
		return d
	}
	return time.Nanosecond
}
