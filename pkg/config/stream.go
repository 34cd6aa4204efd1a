package config

import (
	"time"

	"dominicbreuker/tlsduplex/pkg/spawn"
)

// Stream configures the duplex stream on top of a connection.
type Stream struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PoolSize bounds the number of concurrent pump tasks. 0 starts one
	// goroutine per pump.
	PoolSize int

	// Watermarks are counted in chunks. Both 0 selects the defaults.
	HighWatermark int
	LowWatermark  int

	LogFile string

	// Spawner starts the pumps of every stream. nil means spawn.Goroutine.
	Spawner spawn.Spawner
}

// Validate ...
func (c *Stream) Validate() []error {
	v := &validator{}

	nonNegative(v, "read-timeout", c.ReadTimeout)
	nonNegative(v, "write-timeout", c.WriteTimeout)
	nonNegative(v, "pool", c.PoolSize)

	if c.HasWatermarks() {
		v.check(c.LowWatermark >= 0 && c.LowWatermark < c.HighWatermark,
			"watermarks must satisfy 0 <= low < high, got low=%d high=%d", c.LowWatermark, c.HighWatermark)
	}

	return v.errs
}

// HasWatermarks reports whether custom watermarks are set.
func (c *Stream) HasWatermarks() bool {
	return c.HighWatermark != 0 || c.LowWatermark != 0
}
