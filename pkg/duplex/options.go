package duplex

import (
	"io"

	"dominicbreuker/tlsduplex/pkg/log"
	"dominicbreuker/tlsduplex/pkg/queue"
)

type options struct {
	logger *log.Logger
	high   int
	low    int
	closer io.Closer
}

func defaultOptions() options {
	return options{
		high: queue.DefaultHighWatermark,
		low:  queue.DefaultLowWatermark,
	}
}

// Option configures a Stream.
type Option func(*options)

// WithLogger makes the stream and its pumps log through l.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithWatermarks sets the watermarks of both queues, counted in chunks.
// New fails unless 0 <= low < high.
func WithWatermarks(high, low int) Option {
	return func(o *options) {
		o.high = high
		o.low = low
	}
}

// WithTransportCloser makes Close also close c, which unblocks pumps stuck
// in a transport call.
func WithTransportCloser(c io.Closer) Option {
	return func(o *options) {
		o.closer = c
	}
}
