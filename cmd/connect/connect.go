// Package connect implements the connect command, which dials a listener
// and pipes the session to stdio.
package connect

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"dominicbreuker/tlsduplex/cmd/shared"
	"dominicbreuker/tlsduplex/pkg/entrypoint"
)

// GetCommand returns the CLI command for connect mode.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "connect",
		Usage:       "Connect to a listener",
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
			if host == "" {
				return fmt.Errorf("parsing transport: %s: specify a host", args.Get(0))
			}

			cfg := shared.SharedConfig(cmd, proto, host, port)
			sCfg := shared.StreamConfig(cmd)

			if err := shared.ValidateConfigs(cfg.Logger, cfg, sCfg); err != nil {
				return err
			}

			return entrypoint.Connect(ctx, cfg, sCfg)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetStreamFlags()...)
	flags = append(flags, shared.GetConnectFlags()...)

	return flags
}
