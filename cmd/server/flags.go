package main

import "github.com/urfave/cli/v3"

var (
	configFile string
	cfg        Config

	modelPath string
	ortLib    string
	cacheDir  string

	logLevel  string
	logFormat string
	debug     bool
)

const defaultModelPath = "models/mfcc.yaml"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml",
			Value:       configPath(),
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to a model manifest (.yaml, .json) or .onnx graph",
			Value:       defaultModelPath,
			Sources:     cli.EnvVars("MODEL_PATH"),
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "ort-lib",
			Usage:       "path to the onnxruntime shared library",
			Sources:     cli.EnvVars("ONNXRUNTIME_SHARED_LIBRARY_PATH"),
			Destination: &ortLib,
		},
	}
}

func cacheFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "cache-dir",
		Usage:       "directory for the feature cache (disabled when empty)",
		Destination: &cacheDir,
	}
}
