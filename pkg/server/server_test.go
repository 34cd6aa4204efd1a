package server

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"dominicbreuker/tlsduplex/mocks"
	"dominicbreuker/tlsduplex/pkg/client"
	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/duplex"
	"dominicbreuker/tlsduplex/pkg/engine"
	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/semaphore"
	"dominicbreuker/tlsduplex/pkg/transport"
)

func echo(s *duplex.Stream) error {
	buf := make([]byte, 1024)
	for {
		n, err := s.Read(buf)
		if n > 0 {
			if err := s.WriteAll(buf[:n]); err != nil {
				return err
			}
			if err := s.Flush(); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// startServer serves handle on the mock network until the test ends.
func startServer(t *testing.T, network *mocks.MockTCPNetwork, cfg *config.Shared, handle Handler) *Server {
	t.Helper()

	cfg.Deps = &config.Dependencies{
		TCPDialer:   network.DialTCP,
		TCPListener: network.ListenTCP,
	}

	s, err := New(context.Background(), cfg, &config.Stream{}, handle)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	go s.Serve()
	t.Cleanup(func() { s.Close() })

	if err := network.WaitForListener(s.Addr().String(), time.Second); err != nil {
		t.Fatalf("WaitForListener(): %v", err)
	}
	return s
}

func TestServer_Echo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ssl  bool
		key  string
	}{
		{"plain", false, ""},
		{"xchacha20", false, "s3cret"},
		{"tls", true, ""},
		{"mtls", true, "s3cret"},
	}

	for i, tc := range tests {
		i, tc := i, tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			network := mocks.NewMockTCPNetwork()
			port := 9100 + i
			startServer(t, network, &config.Shared{
				Protocol: config.ProtoTCP,
				Host:     "127.0.0.1",
				Port:     port,
				SSL:      tc.ssl,
				Key:      tc.key,
				Timeout:  5 * time.Second,
			}, echo)

			cfg := &config.Shared{
				Protocol: config.ProtoTCP,
				Host:     "127.0.0.1",
				Port:     port,
				SSL:      tc.ssl,
				Key:      tc.key,
				Timeout:  5 * time.Second,
				Deps:     &config.Dependencies{TCPDialer: network.DialTCP},
			}
			stream, err := client.Dial(context.Background(), cfg, &config.Stream{ReadTimeout: 5 * time.Second})
			if err != nil {
				t.Fatalf("client.Dial(): %v", err)
			}
			defer stream.Close()

			if err := stream.WriteAll([]byte("hello server")); err != nil {
				t.Fatalf("WriteAll(): %v", err)
			}
			if err := stream.Flush(); err != nil {
				t.Fatalf("Flush(): %v", err)
			}
			got := make([]byte, len("hello server"))
			if err := stream.ReadExact(got); err != nil {
				t.Fatalf("ReadExact(): %v", err)
			}
			if string(got) != "hello server" {
				t.Errorf("echo = %q, want %q", got, "hello server")
			}
		})
	}
}

func TestServer_KeyMismatch(t *testing.T) {
	t.Parallel()

	network := mocks.NewMockTCPNetwork()
	handled := make(chan struct{}, 1)
	startServer(t, network, &config.Shared{
		Protocol: config.ProtoTCP,
		Host:     "127.0.0.1",
		Port:     9200,
		SSL:      true,
		Key:      "server-key",
		Timeout:  5 * time.Second,
	}, func(*duplex.Stream) error {
		handled <- struct{}{}
		return nil
	})

	cfg := &config.Shared{
		Protocol: config.ProtoTCP,
		Host:     "127.0.0.1",
		Port:     9200,
		SSL:      true,
		Key:      "client-key",
		Timeout:  5 * time.Second,
		Deps:     &config.Dependencies{TCPDialer: network.DialTCP},
	}
	if _, err := client.Dial(context.Background(), cfg, &config.Stream{}); err == nil {
		t.Fatal("client.Dial() with a different key succeeded")
	}

	select {
	case <-handled:
		t.Error("handler ran for a connection that failed the handshake")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_CloseStopsServe(t *testing.T) {
	t.Parallel()

	network := mocks.NewMockTCPNetwork()
	cfg := &config.Shared{
		Protocol: config.ProtoTCP,
		Host:     "127.0.0.1",
		Port:     9300,
		Deps:     &config.Dependencies{TCPListener: network.ListenTCP},
	}
	s, err := New(context.Background(), cfg, &config.Stream{}, echo)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	if err := network.WaitForListener(s.Addr().String(), time.Second); err != nil {
		t.Fatalf("WaitForListener(): %v", err)
	}
	s.Close()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() after Close = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after Close")
	}
}

func TestNew_AddressInUse(t *testing.T) {
	t.Parallel()

	network := mocks.NewMockTCPNetwork()
	cfg := &config.Shared{
		Protocol: config.ProtoTCP,
		Host:     "127.0.0.1",
		Port:     9400,
		Deps:     &config.Dependencies{TCPListener: network.ListenTCP},
	}

	first, err := New(context.Background(), cfg, &config.Stream{}, echo)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	defer first.Close()

	if _, err := New(context.Background(), cfg, &config.Stream{}, echo); err == nil {
		t.Error("second New() on the same address succeeded")
	}
}

// fakeListener implements listener for testing.
type fakeListener struct{}

func (fakeListener) Serve(transport.Handler) error { return nil }
func (fakeListener) Close() error                  { return nil }
func (fakeListener) Addr() net.Addr                { return &net.TCPAddr{} }

func TestNew_SelectsListener(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		protocol config.Protocol
		maxConns int
		want     string
		wantCap  int
	}{
		{"tcp", config.ProtoTCP, 0, "tcp", DefaultMaxConns},
		{"ws", config.ProtoWS, 3, "ws", 3},
		{"wss", config.ProtoWSS, 1, "wss", 1},
		{"udp", config.ProtoUDP, 0, "udp", DefaultMaxConns},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var created string
			var capacity int
			deps := &dependencies{
				newTCPListener: func(_ string, _ *config.Dependencies, sem *semaphore.Semaphore, _ *log.Logger) (listener, error) {
					created, capacity = "tcp", sem.Available()
					return fakeListener{}, nil
				},
				newWSListener: func(_ context.Context, _ string, useTLS bool, _ *config.Dependencies, sem *semaphore.Semaphore, _ *log.Logger) (listener, error) {
					created, capacity = "ws", sem.Available()
					if useTLS {
						created = "wss"
					}
					return fakeListener{}, nil
				},
				newUDPListener: func(_ string, _ *config.Dependencies, sem *semaphore.Semaphore, _ *log.Logger) (listener, error) {
					created, capacity = "udp", sem.Available()
					return fakeListener{}, nil
				},
				newBinder: func(*config.Shared) (duplex.Binder, error) { return engine.NewPlain(), nil },
			}

			cfg := &config.Shared{Protocol: tc.protocol, Host: "127.0.0.1", Port: 1, MaxConns: tc.maxConns}
			if _, err := newServer(context.Background(), cfg, &config.Stream{}, echo, deps); err != nil {
				t.Fatalf("newServer(): %v", err)
			}
			if created != tc.want {
				t.Errorf("created %q listener, want %q", created, tc.want)
			}
			if capacity != tc.wantCap {
				t.Errorf("connection limit = %d, want %d", capacity, tc.wantCap)
			}
		})
	}
}

func TestNew_BinderError(t *testing.T) {
	t.Parallel()

	bindErr := errors.New("no certificates")
	deps := defaultDependencies()
	deps.newBinder = func(*config.Shared) (duplex.Binder, error) { return nil, bindErr }

	_, err := newServer(context.Background(), &config.Shared{Protocol: config.ProtoTCP, Host: "127.0.0.1", Port: 1}, &config.Stream{}, echo, deps)
	if !errors.Is(err, bindErr) {
		t.Errorf("newServer() error = %v, want %v", err, bindErr)
	}
}
