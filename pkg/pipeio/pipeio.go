// Package pipeio copies data between two ReadWriteClosers, typically a
// duplex stream and the terminal.
package pipeio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"

	"github.com/muesli/cancelreader"

	"dominicbreuker/tlsduplex/pkg/ioerr"
)

// Flusher is implemented by destinations that buffer writes, such as a
// duplex stream.
type Flusher interface {
	Flush() error
}

// Pipe copies in both directions until one of them ends or ctx is done.
// Both sides are closed once, before Pipe returns. Errors other than the
// usual end-of-session ones are passed to logfunc.
func Pipe(ctx context.Context, rwc1 io.ReadWriteCloser, rwc2 io.ReadWriteCloser, logfunc func(error)) {
	var o sync.Once
	done := make(chan struct{})

	closeBoth := func() {
		rwc1.Close()
		rwc2.Close()
		close(done)
	}

	go func() {
		if err := copyFlush(rwc1, rwc2); err != nil && !isEndOfSession(err) {
			logfunc(fmt.Errorf("copy(rwc1, rwc2): %w", err))
		}
		o.Do(closeBoth)
	}()

	go func() {
		if err := copyFlush(rwc2, rwc1); err != nil && !isEndOfSession(err) {
			logfunc(fmt.Errorf("copy(rwc2, rwc1): %w", err))
		}
		o.Do(closeBoth)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		o.Do(closeBoth)
	}
}

// copyFlush is io.Copy that flushes dst after every write, so interactive
// input is not held back in dst's buffers.
func copyFlush(dst io.Writer, src io.Reader) error {
	f, ok := dst.(Flusher)
	if !ok {
		_, err := io.Copy(dst, src)
		return err
	}

	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			if err := f.Flush(); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func isEndOfSession(err error) bool {
	return errors.Is(err, cancelreader.ErrCanceled) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) ||
		ioerr.IsBrokenPipe(err)
}
