package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vburojevic/dunehmr/internal/cli"
	"github.com/vburojevic/dunehmr/internal/config"
)

const quickStart = `dunehmr - hot module reload for dune projects

Quick start:
  dune build --watch                    Start the build daemon
  dunehmr watch                         Push updates to the browser on ws://127.0.0.1:24678
  dunehmr ui                            Same, with a live terminal dashboard

For help:
  dunehmr --help                        All commands and flags
  dunehmr schema --format ndjson        Machine-readable output schemas
`

func main() {
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// a broken config file should not keep the tool from starting
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dunehmr: ignoring config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("dunehmr"),
		kong.Description("Bridge the dune build daemon to browser hot module reload"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		cli.KongVars(cfg),
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(1)
	}
}
