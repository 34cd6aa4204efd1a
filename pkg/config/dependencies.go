package config

import (
	"io"
	"net"
	"os"
)

// Dependencies replaces the network and stdio primitives used by a session.
// Tests point them at mocks.MockTCPNetwork and mocks.MockStdio. Nil fields
// fall back to the real implementation.
type Dependencies struct {
	TCPDialer      TCPDialerFunc
	TCPListener    TCPListenerFunc
	PacketListener PacketListenerFunc
	Stdin          StdinFunc
	Stdout         StdoutFunc
}

type (
	// TCPDialerFunc has the signature of net.DialTCP, returning net.Conn.
	TCPDialerFunc func(network string, laddr, raddr *net.TCPAddr) (net.Conn, error)
	// TCPListenerFunc has the signature of net.ListenTCP, returning net.Listener.
	TCPListenerFunc func(network string, laddr *net.TCPAddr) (net.Listener, error)
	// PacketListenerFunc has the signature of net.ListenPacket. The udp
	// transport runs KCP sessions on top of it.
	PacketListenerFunc func(network, address string) (net.PacketConn, error)

	StdinFunc  func() io.Reader
	StdoutFunc func() io.Writer
)

func GetTCPDialerFunc(deps *Dependencies) TCPDialerFunc {
	if deps != nil && deps.TCPDialer != nil {
		return deps.TCPDialer
	}
	return func(network string, laddr, raddr *net.TCPAddr) (net.Conn, error) {
		return net.DialTCP(network, laddr, raddr)
	}
}

func GetTCPListenerFunc(deps *Dependencies) TCPListenerFunc {
	if deps != nil && deps.TCPListener != nil {
		return deps.TCPListener
	}
	return func(network string, laddr *net.TCPAddr) (net.Listener, error) {
		return net.ListenTCP(network, laddr)
	}
}

func GetPacketListenerFunc(deps *Dependencies) PacketListenerFunc {
	if deps != nil && deps.PacketListener != nil {
		return deps.PacketListener
	}
	return net.ListenPacket
}

// GetStdinFunc returns the injected stdin, or os.Stdin.
func GetStdinFunc(deps *Dependencies) StdinFunc {
	if deps != nil && deps.Stdin != nil {
		return deps.Stdin
	}
	return func() io.Reader { return os.Stdin }
}

// GetStdoutFunc returns the injected stdout, or os.Stdout.
func GetStdoutFunc(deps *Dependencies) StdoutFunc {
	if deps != nil && deps.Stdout != nil {
		return deps.Stdout
	}
	return func() io.Writer { return os.Stdout }
}
