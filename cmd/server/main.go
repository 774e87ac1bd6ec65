package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Brownie44l1/mfcc-api/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:  "mfcc-api",
		Usage: "Serve and run audio feature and image classification models",
		Flags: globalFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			loaded, err := loadConfig(configFile, cmd.IsSet("config"))
			if err != nil {
				return ctx, err
			}
			cfg = loaded
			applyLoggingConfig(cmd, cfg)
			return logger.WithContext(ctx, newLogger()), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			serveCmd(),
			extractCmd(),
			predictImageCmd(),
			inspectCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = logger.ParseLevel("debug")
	}
	return logger.ForFormat(os.Stderr, logFormat, level)
}
