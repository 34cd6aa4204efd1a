package shared

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"dominicbreuker/tlsduplex/pkg/log"
)

// ShutdownGrace is how long open streams get to close after the first signal.
var ShutdownGrace = 5 * time.Second

func shutdownSignals() []os.Signal {
	sigs := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP)
	}
	return sigs
}

// SetupSignalHandling cancels on the first signal so connect and listen can
// close their streams. A second signal, or the end of ShutdownGrace, exits.
// The returned func stops the handling.
func SetupSignalHandling(cancel context.CancelFunc, logger *log.Logger) (stop func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, shutdownSignals()...)

	// a peer closing the stream must surface as an error, not kill us
	if runtime.GOOS != "windows" {
		signal.Ignore(syscall.SIGPIPE)
	}

	done := make(chan struct{})
	go func() {
		var s os.Signal
		select {
		case s = <-sigCh:
		case <-done:
			return
		}
		logger.InfoMsg("received %s, closing streams\n", s)
		cancel()

		select {
		case <-sigCh:
			if ss, ok := s.(syscall.Signal); ok {
				os.Exit(128 + int(ss))
			}
			os.Exit(1)
		case <-time.After(ShutdownGrace):
			os.Exit(0)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
		})
	}
}
