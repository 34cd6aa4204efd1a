// Package listen implements the listen command, which waits for a connection
// and pipes the session to stdio.
package listen

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"dominicbreuker/tlsduplex/cmd/shared"
	"dominicbreuker/tlsduplex/pkg/entrypoint"
)

// GetCommand returns the CLI command for listen mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "listen",
		Usage:       "Listen for connections",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() != 1 {
				return fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
			}

			proto, host, port, err := shared.ParseTransport(args.Get(0))
			if err != nil {
				return fmt.Errorf("parsing transport: %s", err)
			}

			cfg := shared.SharedConfig(cmd, proto, host, port)
			cfg.MaxConns = int(cmd.Int(shared.MaxConnsFlag))
			sCfg := shared.StreamConfig(cmd)

			if err := shared.ValidateConfigs(cfg.Logger, cfg, sCfg); err != nil {
				return err
			}

			return entrypoint.Listen(ctx, cfg, sCfg)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetStreamFlags()...)
	flags = append(flags, shared.GetListenFlags()...)

	return flags
}
