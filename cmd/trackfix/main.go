package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jengzang/trackfix/internal/logging"

	// Register the trajectory stages
	_ "github.com/jengzang/trackfix/internal/analysis/foundation"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "trackfix:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "trackfix",
		Usage: "Densify, map-match and merge GPS trajectories",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Verbose logging",
			},
		},
		Before: func(c *cli.Context) error {
			return logging.Init(c.Bool("debug"))
		},
		After: func(c *cli.Context) error {
			logging.Sync()
			return nil
		},
		Commands: []*cli.Command{
			interpolateCommand(),
			refineCommand(),
			combineCommand(),
			despikeCommand(),
			pipelineCommand(),
			roadsCommand(),
		},
	}
}
