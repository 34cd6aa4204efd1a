package entrypoint

import (
	"context"
	"net"
	"sync"
	"testing"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/duplex"
	"dominicbreuker/tlsduplex/pkg/engine"
	"dominicbreuker/tlsduplex/pkg/server"
	"dominicbreuker/tlsduplex/pkg/spawn"
)

// fakeServer blocks in Serve until Close is called.
type fakeServer struct {
	mu       sync.Mutex
	closed   bool
	closedCh chan struct{}
	serveErr error
}

func newFakeServer() *fakeServer {
	return &fakeServer{closedCh: make(chan struct{})}
}

func (f *fakeServer) Serve() error {
	if f.serveErr != nil {
		return f.serveErr
	}
	<-f.closedCh
	return nil
}

func (f *fakeServer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.closedCh)
	}
	return nil
}

func (f *fakeServer) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// pipeStream returns a plain stream over one end of net.Pipe and the raw
// other end.
func pipeStream(t *testing.T) (*duplex.Stream, net.Conn) {
	t.Helper()

	c, s := net.Pipe()
	stream, err := duplex.NewConn(engine.NewPlain(), c, spawn.Goroutine)
	if err != nil {
		t.Fatalf("NewConn(): %v", err)
	}
	t.Cleanup(func() {
		stream.Close()
		s.Close()
	})
	return stream, s
}

func fakeServerFactory(srv *fakeServer, got *server.Handler) serverFactory {
	return func(_ context.Context, _ *config.Shared, _ *config.Stream, handle server.Handler) (serverInterface, error) {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		*got = handle
		return srv, nil
	}
}
