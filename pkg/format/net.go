// Package format renders addresses for dialing, listening and logging.
package format

import (
	"net"
	"strconv"
)

// Addr joins host and port, bracketing IPv6 hosts.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// URL returns scheme://host:port.
func URL(scheme, host string, port int) string {
	return scheme + "://" + Addr(host, port)
}
