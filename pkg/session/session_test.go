package session

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/crypto"
	"dominicbreuker/tlsduplex/pkg/engine"
	"dominicbreuker/tlsduplex/pkg/ioerr"
)

func TestNew_AppliesStreamConfig(t *testing.T) {
	t.Parallel()

	c, s := net.Pipe()
	defer s.Close()

	var spawned int
	sCfg := &config.Stream{
		ReadTimeout:   150 * time.Millisecond,
		WriteTimeout:  2 * time.Second,
		HighWatermark: 4,
		LowWatermark:  1,
		Spawner: func(task func()) error {
			spawned++
			go task()
			return nil
		},
	}

	stream, err := New(c, engine.NewPlain(), &config.Shared{}, sCfg)
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	defer stream.Close()

	if spawned != 2 {
		t.Errorf("spawner called %d times, want 2", spawned)
	}
	if d, err := stream.ReadTimeout(); err != nil || d != sCfg.ReadTimeout {
		t.Errorf("ReadTimeout() = (%s, %v), want %s", d, err, sCfg.ReadTimeout)
	}
	if d, err := stream.WriteTimeout(); err != nil || d != sCfg.WriteTimeout {
		t.Errorf("WriteTimeout() = (%s, %v), want %s", d, err, sCfg.WriteTimeout)
	}

	_, err = stream.Read(make([]byte, 1))
	if !ioerr.IsTimedOut(err) {
		t.Errorf("Read() on silent peer = %v, want timeout", err)
	}
}

func TestNew_SpawnFailureClosesConn(t *testing.T) {
	t.Parallel()

	c, s := net.Pipe()
	defer s.Close()

	spawnErr := errors.New("no workers")
	sCfg := &config.Stream{
		Spawner: func(func()) error { return spawnErr },
	}

	if _, err := New(c, engine.NewPlain(), &config.Shared{}, sCfg); !errors.Is(err, spawnErr) {
		t.Fatalf("New() error = %v, want %v", err, spawnErr)
	}
	if _, err := s.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("peer Read() = %v, want EOF after conn was closed", err)
	}
}

func TestHandshake(t *testing.T) {
	t.Parallel()

	bundle, err := crypto.NewBundle("")
	if err != nil {
		t.Fatalf("crypto.NewBundle(): %v", err)
	}

	c, s := net.Pipe()
	cfg := &config.Shared{}
	client, err := New(c, engine.TLSClient(bundle.ClientConfig()), cfg, &config.Stream{})
	if err != nil {
		t.Fatalf("New(client): %v", err)
	}
	defer client.Close()
	server, err := New(s, engine.TLSServer(bundle.ServerConfig()), cfg, &config.Stream{})
	if err != nil {
		t.Fatalf("New(server): %v", err)
	}
	defer server.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- Handshake(context.Background(), server, 5*time.Second) }()

	if err := Handshake(context.Background(), client, 5*time.Second); err != nil {
		t.Fatalf("Handshake(client): %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Handshake(server): %v", err)
	}
}

func TestHandshake_Timeout(t *testing.T) {
	t.Parallel()

	bundle, err := crypto.NewBundle("")
	if err != nil {
		t.Fatalf("crypto.NewBundle(): %v", err)
	}

	c, s := net.Pipe()
	defer s.Close()
	go io.Copy(io.Discard, s)

	client, err := New(c, engine.TLSClient(bundle.ClientConfig()), &config.Shared{}, &config.Stream{})
	if err != nil {
		t.Fatalf("New(): %v", err)
	}

	start := time.Now()
	err = Handshake(context.Background(), client, 100*time.Millisecond)
	if err == nil {
		t.Fatal("Handshake() against a silent peer succeeded")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Handshake() took %s, want about 100ms", elapsed)
	}

	// the stream was closed
	if _, err := client.Write([]byte("x")); err == nil {
		t.Error("Write() after failed handshake succeeded")
	}
}
