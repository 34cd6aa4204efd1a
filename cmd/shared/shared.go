// Package shared provides common CLI flag definitions and utility functions
// used across the command-line interface.
package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"dominicbreuker/tlsduplex/pkg/config"
	"dominicbreuker/tlsduplex/pkg/log"
)

const categoryCommon = "common"

// SSLFlag is the name of the flag to enable TLS encryption.
const SSLFlag = "ssl"

// KeyFlag is the name of the flag to specify the shared key.
const KeyFlag = "key"

// VerboseFlag is the name of the flag to enable verbose error logging.
const VerboseFlag = "verbose"

// TimeoutFlag is the name of the flag to specify operation timeout in milliseconds.
const TimeoutFlag = "timeout"

// MuxFlag is the name of the flag to run the session over yamux.
const MuxFlag = "mux"

// GetBaseDescription returns the base description text for transport
// arguments used in CLI commands.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify transport like this: tcp://127.0.0.1:123 (supports tcp|ws|wss|udp)",
		"You can omit the host when listening to bind to all interfaces.",
	}, "\n")
}

// GetArgsUsage returns the arguments usage string for CLI commands.
func GetArgsUsage() string {
	return strings.Join([]string{
		"transport",
	}, " ")
}

// GetCommonFlags returns the CLI flags used by both connect and listen.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     SSLFlag,
			Aliases:  []string{"s"},
			Usage:    "Use TLS 1.3 encryption",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.StringFlag{
			Name:     KeyFlag,
			Aliases:  []string{"k"},
			Usage:    "Shared key: mutual authentication with --ssl, XChaCha20 encryption without",
			Category: categoryCommon,
			Value:    "",
			Required: false,
		},
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose error logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.IntFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Operation timeout in milliseconds (dial, handshake, mux control operations)",
			Category: categoryCommon,
			Value:    10000, // 10 seconds default
			Required: false,
		},
		&cli.BoolFlag{
			Name:     MuxFlag,
			Aliases:  []string{"m"},
			Usage:    "Multiplex the session with yamux (both sides must agree)",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
	}
}

const categoryStream = "stream"

// ReadTimeoutFlag is the name of the flag for the stream read timeout.
const ReadTimeoutFlag = "read-timeout"

// WriteTimeoutFlag is the name of the flag for the stream write timeout.
const WriteTimeoutFlag = "write-timeout"

// PoolFlag is the name of the flag bounding the pump pool.
const PoolFlag = "pool"

// HighWatermarkFlag is the name of the flag for the queue high watermark.
const HighWatermarkFlag = "high-watermark"

// LowWatermarkFlag is the name of the flag for the queue low watermark.
const LowWatermarkFlag = "low-watermark"

// LogFileFlag is the name of the flag to specify a session log file.
const LogFileFlag = "log"

// GetStreamFlags returns the CLI flags configuring the duplex stream.
func GetStreamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     ReadTimeoutFlag,
			Usage:    "Fail reads that wait longer than this many milliseconds, 0 waits forever",
			Category: categoryStream,
			Value:    0,
			Required: false,
		},
		&cli.IntFlag{
			Name:     WriteTimeoutFlag,
			Usage:    "Fail writes that wait longer than this many milliseconds for queue space, 0 waits forever",
			Category: categoryStream,
			Value:    0,
			Required: false,
		},
		&cli.IntFlag{
			Name:     PoolFlag,
			Usage:    "Run stream pumps on a bounded worker pool of this size, 0 uses one goroutine per pump",
			Category: categoryStream,
			Value:    0,
			Required: false,
		},
		&cli.IntFlag{
			Name:     HighWatermarkFlag,
			Usage:    "Chunks a stream queue holds before the producer waits, 0 uses the default",
			Category: categoryStream,
			Value:    0,
			Required: false,
		},
		&cli.IntFlag{
			Name:     LowWatermarkFlag,
			Usage:    "Chunks a stream queue drains to before a waiting writer resumes",
			Category: categoryStream,
			Value:    0,
			Required: false,
		},
		&cli.StringFlag{
			Name:     LogFileFlag,
			Aliases:  []string{"l"},
			Usage:    "Append the session plaintext to this file",
			Category: categoryStream,
			Value:    "",
			Required: false,
		},
	}
}

// GetConnectFlags returns the CLI flags specific to connect mode.
// Currently returns an empty slice.
func GetConnectFlags() []cli.Flag {
	return []cli.Flag{}
}

const categoryListen = "listen"

// MaxConnsFlag is the name of the flag bounding concurrent sessions.
const MaxConnsFlag = "max-conns"

// GetListenFlags returns the CLI flags specific to listen mode.
func GetListenFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     MaxConnsFlag,
			Usage:    "Sessions served at once, further connections are closed (default 1)",
			Category: categoryListen,
			Value:    0,
			Required: false,
		},
	}
}

// SharedConfig builds the shared configuration from cmd's common flags.
func SharedConfig(cmd *cli.Command, proto config.Protocol, host string, port int) *config.Shared {
	return &config.Shared{
		Protocol: proto,
		Host:     host,
		Port:     port,
		SSL:      cmd.Bool(SSLFlag),
		Key:      cmd.String(KeyFlag),
		Verbose:  cmd.Bool(VerboseFlag),
		Timeout:  time.Duration(cmd.Int(TimeoutFlag)) * time.Millisecond,
		Mux:      cmd.Bool(MuxFlag),
		Logger:   log.New(cmd.Bool(VerboseFlag)),
	}
}

// StreamConfig builds the stream configuration from cmd's stream flags.
func StreamConfig(cmd *cli.Command) *config.Stream {
	return &config.Stream{
		ReadTimeout:   time.Duration(cmd.Int(ReadTimeoutFlag)) * time.Millisecond,
		WriteTimeout:  time.Duration(cmd.Int(WriteTimeoutFlag)) * time.Millisecond,
		PoolSize:      int(cmd.Int(PoolFlag)),
		HighWatermark: int(cmd.Int(HighWatermarkFlag)),
		LowWatermark:  int(cmd.Int(LowWatermarkFlag)),
		LogFile:       cmd.String(LogFileFlag),
	}
}

// ValidateConfigs logs every validation error and returns an error if
// there was any.
func ValidateConfigs(logger *log.Logger, cfgs ...config.ValidatableConfig) error {
	errs := config.Validate(cfgs...)
	if len(errs) == 0 {
		return nil
	}

	logger.ErrorMsg("Argument validation errors:\n")
	for _, err := range errs {
		logger.ErrorMsg(" - %s\n", err)
	}
	return fmt.Errorf("exiting")
}
