// Package ws provides the WebSocket transport (ws and wss).
package ws

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"

	"github.com/coder/websocket"
)

// Dialer implements transport.Dialer for WebSocket connections.
type Dialer struct {
	// ctx bounds the lifetime of dialed connections, not the dial itself.
	ctx context.Context
	url string
}

// NewDialer creates a dialer for url (ws://host:port or wss://host:port).
// Connections it returns are closed when ctx ends.
func NewDialer(ctx context.Context, url string) *Dialer {
	return &Dialer{
		ctx: ctx,
		url: url,
	}
}

// Dial performs the WebSocket handshake and wraps the connection as a
// net.Conn exchanging binary messages. ctx bounds the handshake.
func (d *Dialer) Dial(ctx context.Context) (net.Conn, error) {
	opts := &websocket.DialOptions{
		Subprotocols: []string{"bin"},
		// For wss, skip verification; the stream's engine authenticates.
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}

	c, _, err := websocket.Dial(ctx, d.url, opts)
	if err != nil {
		return nil, fmt.Errorf("websocket.Dial(%s): %w", d.url, err)
	}
	return websocket.NetConn(d.ctx, c, websocket.MessageBinary), nil
}
