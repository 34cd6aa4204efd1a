package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"dominicbreuker/tlsduplex/cmd/connect"
	"dominicbreuker/tlsduplex/cmd/listen"
	"dominicbreuker/tlsduplex/cmd/shared"
	"dominicbreuker/tlsduplex/cmd/version"
	"dominicbreuker/tlsduplex/pkg/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := shared.SetupSignalHandling(cancel, log.New(false))
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		stop()
		log.ErrorMsg("%s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "tlsduplex",
		Usage: "full-duplex encrypted pipe between two hosts",
		Commands: []*cli.Command{
			connect.GetCommand(),
			listen.GetCommand(),
			version.GetCommand(),
		},
	}
}
