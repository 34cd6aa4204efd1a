// Package tcp provides the TCP transport.
package tcp

import (
	"context"
	"fmt"
	"net"

	"dominicbreuker/tlsduplex/pkg/config"
)

// Dialer implements transport.Dialer for TCP connections.
type Dialer struct {
	tcpAddr *net.TCPAddr
	dialFn  config.TCPDialerFunc
}

// NewDialer creates a new TCP dialer for the specified address.
// The deps parameter is optional and can be nil to use default implementations.
func NewDialer(addr string, deps *config.Dependencies) (*Dialer, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveTCPAddr(tcp, %s): %w", addr, err)
	}

	return &Dialer{
		tcpAddr: tcpAddr,
		dialFn:  config.GetTCPDialerFunc(deps),
	}, nil
}

type dialResult struct {
	conn net.Conn
	err  error
}

// Dial connects to the configured address with keep-alive enabled. If ctx
// ends first, Dial returns ctx.Err() and a late connection is closed.
func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	done := make(chan dialResult, 1)
	go func() {
		conn, err := d.dialFn("tcp", nil, d.tcpAddr)
		done <- dialResult{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("net.DialTCP(tcp, %s): %w", d.tcpAddr.String(), r.err)
		}
		if tcpConn, ok := r.conn.(*net.TCPConn); ok {
			_ = tcpConn.SetKeepAlive(true)
		}
		return r.conn, nil

	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
