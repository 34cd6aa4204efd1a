package ws

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"dominicbreuker/tlsduplex/pkg/semaphore"
)

func TestNewListener(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		tls     bool
		wantErr bool
	}{
		{
			name:    "valid address without TLS",
			addr:    "127.0.0.1:0",
			tls:     false,
			wantErr: false,
		},
		{
			name:    "valid address with TLS",
			addr:    "127.0.0.1:0",
			tls:     true,
			wantErr: false,
		},
		{
			name:    "invalid address",
			addr:    "invalid:abc",
			tls:     false,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			l, err := NewListener(context.Background(), tc.addr, tc.tls, nil, nil, nil)
			if (err != nil) != tc.wantErr {
				t.Errorf("NewListener() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil {
				l.Close()
			}
		})
	}
}

// serveEcho starts a listener that echoes every connection.
func serveEcho(t *testing.T, useTLS bool, sem *semaphore.Semaphore) string {
	t.Helper()

	l, err := NewListener(context.Background(), "127.0.0.1:0", useTLS, nil, sem, nil)
	if err != nil {
		t.Fatalf("NewListener(): %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go l.Serve(func(conn net.Conn) error {
		_, err := io.Copy(conn, conn)
		return err
	})

	scheme := "ws"
	if useTLS {
		scheme = "wss"
	}
	return scheme + "://" + l.Addr().String()
}

func TestListener_ServeEcho(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	for _, useTLS := range []bool{false, true} {
		useTLS := useTLS
		t.Run(map[bool]string{false: "ws", true: "wss"}[useTLS], func(t *testing.T) {
			t.Parallel()

			url := serveEcho(t, useTLS, nil)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn, err := NewDialer(context.Background(), url).Dial(ctx)
			if err != nil {
				t.Fatalf("Dial(%s): %v", url, err)
			}
			defer conn.Close()

			if _, err := conn.Write([]byte("hello")); err != nil {
				t.Fatalf("Write(): %v", err)
			}
			buf := make([]byte, 5)
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if _, err := io.ReadFull(conn, buf); err != nil || string(buf) != "hello" {
				t.Fatalf("ReadFull() = (%q, %v), want hello", buf, err)
			}
		})
	}
}

func TestListener_RejectsWhenFull(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	url := serveEcho(t, false, semaphore.New(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if conn, err := NewDialer(context.Background(), url).Dial(ctx); err == nil {
		conn.Close()
		t.Fatal("Dial() succeeded although no slot was free")
	}
}

func TestListener_CloseStopsServe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	t.Parallel()

	l, err := NewListener(context.Background(), "127.0.0.1:0", false, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewListener(): %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Serve(func(net.Conn) error { return nil }) }()

	time.Sleep(20 * time.Millisecond)
	l.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() after Close = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after Close")
	}
}
