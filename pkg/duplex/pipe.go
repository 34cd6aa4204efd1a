package duplex

import (
	"net"
	"time"

	"dominicbreuker/tlsduplex/pkg/pump"
)

// combinedPipe is the byte stream an engine is bound to. Reads come from the
// read pump and writes go to the write pump, so no call ever blocks on the
// transport. It implements net.Conn because that is what crypto/tls binds to.
type combinedPipe struct {
	r *pump.Reader
	w *pump.Writer

	local  net.Addr
	remote net.Addr
}

func newCombinedPipe(r *pump.Reader, w *pump.Writer, transport ...interface{}) *combinedPipe {
	p := &combinedPipe{r: r, w: w, local: pipeAddr("pipe"), remote: pipeAddr("pipe")}
	for _, t := range transport {
		if a, ok := t.(interface{ LocalAddr() net.Addr }); ok && a.LocalAddr() != nil {
			p.local = a.LocalAddr()
		}
		if a, ok := t.(interface{ RemoteAddr() net.Addr }); ok && a.RemoteAddr() != nil {
			p.remote = a.RemoteAddr()
		}
	}
	return p
}

func (p *combinedPipe) Read(b []byte) (int, error) {
	return p.r.Read(b)
}

func (p *combinedPipe) Write(b []byte) (int, error) {
	return p.w.Write(b)
}

// Flush is a no-op, see pump.Writer.Flush.
func (p *combinedPipe) Flush() error {
	return p.w.Flush()
}

func (p *combinedPipe) setNonBlocking(nonBlock bool) {
	p.r.SetNonBlocking(nonBlock)
}

// Close kills both queues. Engines call it when they give up on the stream.
func (p *combinedPipe) Close() error {
	p.r.Close()
	p.w.Close()
	return nil
}

func (p *combinedPipe) LocalAddr() net.Addr  { return p.local }
func (p *combinedPipe) RemoteAddr() net.Addr { return p.remote }

// Deadlines are owned by the Stream.
func (p *combinedPipe) SetDeadline(t time.Time) error      { return nil }
func (p *combinedPipe) SetReadDeadline(t time.Time) error  { return nil }
func (p *combinedPipe) SetWriteDeadline(t time.Time) error { return nil }

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }
