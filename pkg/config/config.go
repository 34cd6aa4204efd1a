// Package config holds the settings shared by the connect and listen
// commands and the dependencies they can be given for testing.
package config

import (
	"time"

	"dominicbreuker/tlsduplex/pkg/log"
)

// Protocol is the transport a stream runs over.
type Protocol int

const (
	ProtoTCP Protocol = iota + 1
	ProtoWS
	ProtoWSS
	ProtoUDP
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoWS:
		return "ws"
	case ProtoWSS:
		return "wss"
	case ProtoUDP:
		return "udp"
	}
	return ""
}

// Security names the engine a configuration selects.
type Security string

const (
	SecurityPlain     Security = "plain"
	SecurityXChaCha20 Security = "xchacha20"
	SecurityTLS       Security = "tls"
	SecurityMutualTLS Security = "mtls"
)

// Shared ...
type Shared struct {
	Protocol Protocol
	Host     string
	Port     int
	SSL      bool
	Key      string
	Verbose  bool

	// Timeout bounds dialing and the handshake.
	Timeout time.Duration

	// MaxConns bounds the connections a listener serves at once.
	MaxConns int

	// Mux runs the session through a yamux control and data channel.
	Mux bool

	Logger *log.Logger
	Deps   *Dependencies
}

var KeySalt = "xV3n8QfLw0pZ7rYc2TgJ5mKd9HsB4uNa" // overwrite with custom value during release build

// Validate checks the protocol, the port and the numeric limits.
func (c *Shared) Validate() []error {
	v := &validator{}

	switch c.Protocol {
	case ProtoTCP, ProtoWS, ProtoWSS, ProtoUDP:
	default:
		v.check(false, "unsupported protocol %d", c.Protocol)
	}
	if err := validatePort(c.Port); err != nil {
		v.check(false, "port: %s", err)
	}

	nonNegative(v, "timeout", c.Timeout)
	nonNegative(v, "max-conns", c.MaxConns)

	return v.errs
}

// GetKey returns the salted key, or "" without a key.
func (c *Shared) GetKey() string {
	if c.Key == "" {
		return ""
	}

	return KeySalt + c.Key
}

// Security returns the engine selected by SSL and Key: TLS with --ssl
// (mutual with --key), XChaCha20 with only --key, plain otherwise.
func (c *Shared) Security() Security {
	switch {
	case c.SSL && c.Key != "":
		return SecurityMutualTLS
	case c.SSL:
		return SecurityTLS
	case c.Key != "":
		return SecurityXChaCha20
	}
	return SecurityPlain
}
