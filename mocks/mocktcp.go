// Package mocks provides in-memory stand-ins for the network and stdio,
// injected through config.Dependencies in tests.
package mocks

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// MockTCPNetwork simulates a TCP network with net.Pipe connections.
// Listening on port 0 picks a free port.
type MockTCPNetwork struct {
	mu        sync.Mutex
	changed   *sync.Cond
	listeners map[string]*mockTCPListener
	nextPort  int
}

// NewMockTCPNetwork creates a new mock TCP network.
func NewMockTCPNetwork() *MockTCPNetwork {
	m := &MockTCPNetwork{
		listeners: make(map[string]*mockTCPListener),
		nextPort:  40000,
	}
	m.changed = sync.NewCond(&m.mu)
	return m
}

// ListenTCP has the signature of config.TCPListenerFunc.
func (m *MockTCPNetwork) ListenTCP(network string, laddr *net.TCPAddr) (net.Listener, error) {
	if network != "tcp" {
		return nil, fmt.Errorf("unsupported network type: %s", network)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	addr := *laddr
	if addr.IP == nil {
		addr.IP = net.IPv4(127, 0, 0, 1)
	}
	if addr.Port == 0 {
		addr.Port = m.nextPort
		m.nextPort++
	}

	key := addr.String()
	if _, exists := m.listeners[key]; exists {
		return nil, fmt.Errorf("address already in use: %s", key)
	}

	l := &mockTCPListener{
		addr:    &addr,
		conns:   make(chan net.Conn),
		closed:  make(chan struct{}),
		network: m,
	}
	m.listeners[key] = l
	m.changed.Broadcast()

	return l, nil
}

// DialTCP has the signature of config.TCPDialerFunc. It fails if nobody
// accepts within a second.
func (m *MockTCPNetwork) DialTCP(network string, laddr, raddr *net.TCPAddr) (net.Conn, error) {
	if network != "tcp" {
		return nil, fmt.Errorf("unsupported network type: %s", network)
	}

	m.mu.Lock()
	l, exists := m.listeners[raddr.String()]
	if laddr == nil {
		laddr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: m.nextPort}
		m.nextPort++
	}
	m.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("connection refused: no listener on %s", raddr)
	}

	client, server := net.Pipe()
	select {
	case l.conns <- &mockTCPConn{Conn: server, local: raddr, remote: laddr}:
		return &mockTCPConn{Conn: client, local: laddr, remote: raddr}, nil
	case <-l.closed:
	case <-time.After(time.Second):
	}

	client.Close()
	server.Close()
	return nil, fmt.Errorf("connection refused: %s not accepting", raddr)
}

// WaitForListener waits until something listens on addr.
func (m *MockTCPNetwork) WaitForListener(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	wake := time.AfterFunc(timeout, func() {
		m.mu.Lock()
		m.changed.Broadcast()
		m.mu.Unlock()
	})
	defer wake.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if _, exists := m.listeners[addr]; exists {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("timeout waiting for listener on %s", addr)
		}
		m.changed.Wait()
	}
}

// Listeners returns the addresses currently listened on.
func (m *MockTCPNetwork) Listeners() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.listeners))
	for addr := range m.listeners {
		out = append(out, addr)
	}
	return out
}

type mockTCPListener struct {
	addr    *net.TCPAddr
	conns   chan net.Conn
	closed  chan struct{}
	once    sync.Once
	network *MockTCPNetwork
}

// Accept returns net.ErrClosed once the listener is closed.
func (l *mockTCPListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.closed:
		return nil, &net.OpError{Op: "accept", Net: "tcp", Addr: l.addr, Err: net.ErrClosed}
	}
}

func (l *mockTCPListener) Close() error {
	l.once.Do(func() {
		close(l.closed)

		l.network.mu.Lock()
		delete(l.network.listeners, l.addr.String())
		l.network.changed.Broadcast()
		l.network.mu.Unlock()
	})
	return nil
}

func (l *mockTCPListener) Addr() net.Addr {
	return l.addr
}

type mockTCPConn struct {
	net.Conn
	local  *net.TCPAddr
	remote *net.TCPAddr
}

func (c *mockTCPConn) LocalAddr() net.Addr  { return c.local }
func (c *mockTCPConn) RemoteAddr() net.Addr { return c.remote }

var _ net.Listener = (*mockTCPListener)(nil)
var _ net.Conn = (*mockTCPConn)(nil)
