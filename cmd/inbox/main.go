package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "inbox",
		Usage:   "disposable e-mail inbox",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML configuration file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override LOG_LEVEL (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			generateCommand,
			statusCommand,
			watchCommand,
			readCommand,
			endCommand,
			notificationsCommand,
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
