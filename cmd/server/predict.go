package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

func predictImageCmd() *cli.Command {
	return &cli.Command{
		Name:      "predict-image",
		Usage:     "Classify a JPEG or PNG image and print the prediction as JSON",
		ArgsUsage: "<image>",
		Flags:     commonModelFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("predict-image takes exactly one image file")
			}
			applyModelConfig(cmd, cfg)

			data, err := os.ReadFile(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			m, err := loadModel(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			resp, err := m.ClassifyBytes(data)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
