// Package ioerr defines the error kinds shared by the bounded queues, the
// transport pumps and the duplex stream.
//
// All values are singletons and are compared with errors.Is. WouldBlock and
// TimedOut implement net.Error with Timeout() and Temporary() reporting true,
// which makes engines such as crypto/tls treat them as retryable instead of
// recording them as a fatal connection error.
package ioerr

import (
	"errors"
	"io"
	"os"
)

// Kind classifies an Error.
type Kind int

const (
	// KindBrokenPipe means a pump has terminated. Terminal for its direction.
	KindBrokenPipe Kind = iota + 1
	// KindWouldBlock means no data was ready on a non-blocking attempt.
	KindWouldBlock
	// KindTimedOut means a caller-configured timeout elapsed.
	KindTimedOut
	// KindPoisoned means a lock was released by a panic and internal state
	// can no longer be trusted.
	KindPoisoned
)

var kindNames = [...]string{"unknown", "broken pipe", "would block", "timed out", "poisoned"}

// String returns a human readable name of the kind.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[0]
	}
	return kindNames[k]
}

// Error is the error type of this package.
type Error struct {
	kind Kind
	msg  string
}

var (
	// ErrBrokenPipe is returned once a queue is dead.
	ErrBrokenPipe = &Error{kind: KindBrokenPipe, msg: "broken pipe: dead"}
	// ErrWouldBlock is returned by non-blocking reads when no data is ready.
	ErrWouldBlock = &Error{kind: KindWouldBlock, msg: "operation would block"}
	// ErrTimedOut is returned when a read or write timeout elapses.
	ErrTimedOut = &Error{kind: KindTimedOut, msg: "operation timed out"}
	// ErrPoisoned is returned when a lock was poisoned by a panic.
	ErrPoisoned = &Error{kind: KindPoisoned, msg: "poisoned mutex"}
)

func (e *Error) Error() string {
	return e.msg
}

// Kind returns the kind of the error.
func (e *Error) Kind() Kind {
	return e.kind
}

// Timeout reports whether the error is retryable after waiting.
func (e *Error) Timeout() bool {
	return e.kind == KindWouldBlock || e.kind == KindTimedOut
}

// Temporary reports the same as Timeout. crypto/tls still consults it to
// decide whether a read error is fatal for the connection.
func (e *Error) Temporary() bool {
	return e.Timeout()
}

// Is lets callers match the standard library equivalents.
func (e *Error) Is(target error) bool {
	switch e.kind {
	case KindBrokenPipe:
		return target == io.ErrClosedPipe
	case KindTimedOut:
		return target == os.ErrDeadlineExceeded
	}
	return false
}

// IsBrokenPipe reports whether err is ErrBrokenPipe.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, ErrBrokenPipe)
}

// IsWouldBlock reports whether err is ErrWouldBlock.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}

// IsTimedOut reports whether err is ErrTimedOut.
func IsTimedOut(err error) bool {
	return errors.Is(err, ErrTimedOut)
}

// IsPoisoned reports whether err is ErrPoisoned.
func IsPoisoned(err error) bool {
	return errors.Is(err, ErrPoisoned)
}
