// Package msg defines the messages exchanged on a mux session's control
// channel. Messages are gob encoded.
package msg

import "encoding/gob"

func init() {
	gob.Register(Hello{})
}

// Message is implemented by every control message.
type Message interface {
	MsgType() string
}

// Hello is sent by both sides when a session is established.
type Hello struct {
	Version  string
	Security string
}

// MsgType returns the message type identifier for Hello messages.
func (m Hello) MsgType() string {
	return "Hello"
}
