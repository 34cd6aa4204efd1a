// Package udp provides the UDP transport, made reliable with KCP sessions
// in stream mode.
package udp

import (
	"context"
	"fmt"
	"net"

	kcp "github.com/xtaci/kcp-go/v5"

	"dominicbreuker/tlsduplex/pkg/config"
)

// Dialer implements transport.Dialer for UDP connections with KCP.
type Dialer struct {
	remoteAddr   *net.UDPAddr
	packetConnFn config.PacketListenerFunc
}

// NewDialer creates a new UDP dialer for the specified address.
// The deps parameter is optional and can be nil to use default implementations.
func NewDialer(addr string, deps *config.Dependencies) (*Dialer, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}

	return &Dialer{
		remoteAddr:   udpAddr,
		packetConnFn: config.GetPacketListenerFunc(deps),
	}, nil
}

// Dial creates a KCP session to the configured address. KCP has no
// handshake, so the first failure shows up on the first read or write.
func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ":0" lets the OS choose an ephemeral port
	pc, err := d.packetConnFn("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("net.ListenPacket(udp, :0): %w", err)
	}

	// no block cipher and no FEC; the stream's engine encrypts
	sess, err := kcp.NewConn(d.remoteAddr.String(), nil, 0, 0, pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("kcp.NewConn(%s): %w", d.remoteAddr.String(), err)
	}
	configure(sess)

	return &sessionConn{UDPSession: sess, pc: pc}, nil
}

// configure tunes a session for interactive traffic:
// SetNoDelay(nodelay, interval ms, fast resend after 2 ACK skips, no congestion control).
func configure(sess *kcp.UDPSession) {
	sess.SetNoDelay(1, 10, 2, 1)
	sess.SetStreamMode(true)
	sess.SetWindowSize(1024, 1024)
}

// sessionConn owns the packet conn of a dialed session, which kcp leaves
// open when the session closes.
type sessionConn struct {
	*kcp.UDPSession
	pc net.PacketConn
}

func (c *sessionConn) Close() error {
	err := c.UDPSession.Close()
	_ = c.pc.Close()
	return err
}
