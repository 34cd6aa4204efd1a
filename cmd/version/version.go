package version

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"dominicbreuker/tlsduplex/pkg/entrypoint"
)

// Version is overwritten at build time.
var Version = "unknown"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Program version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return printVersion(os.Stdout, Version)
		},
		Flags: []cli.Flag{},
	}
}

func printVersion(w io.Writer, version string) error {
	_, err := fmt.Fprintf(w, "%s (protocol %s)\n", version, entrypoint.ProtocolVersion)
	return err
}
