package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func inspectCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "inspect",
		Usage: "Print model information",
		Flags: append(commonModelFlags(),
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print as JSON",
				Destination: &asJSON,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, cfg)
			m, err := loadModel(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			info := m.Info()
			if asJSON {
				return printJSON(info)
			}
			fmt.Printf("name:         %s\n", info.Name)
			fmt.Printf("kind:         %s\n", info.Kind)
			fmt.Printf("fingerprint:  %s\n", info.Fingerprint)
			fmt.Printf("output width: %d\n", info.OutputWidth)
			if info.SampleRate > 0 {
				fmt.Printf("sample rate:  %d\n", info.SampleRate)
				fmt.Printf("n_fft:        %d\n", info.NFFT)
				fmt.Printf("hop length:   %d\n", info.HopLength)
			}
			if len(info.InputShape) > 0 {
				fmt.Printf("input shape:  %v\n", info.InputShape)
				fmt.Printf("output shape: %v\n", info.OutputShape)
				fmt.Printf("image size:   %d\n", info.ImageSize)
				fmt.Printf("classes:      %v\n", info.Classes)
			}
			return nil
		},
	}
}
