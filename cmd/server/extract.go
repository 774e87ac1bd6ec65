package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Brownie44l1/mfcc-api/internal/audiofile"
	"github.com/Brownie44l1/mfcc-api/internal/cache"
	"github.com/Brownie44l1/mfcc-api/internal/extract"
	"github.com/Brownie44l1/mfcc-api/internal/logger"
	"github.com/Brownie44l1/mfcc-api/internal/model"
)

func extractCmd() *cli.Command {
	var (
		output       string
		windowFrames int64
		cacheTTL     time.Duration
	)

	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract features from an audio file (.wav, .mp3) and write them as JSON",
		ArgsUsage: "<audio>",
		Flags: append(commonModelFlags(),
			cacheFlag(),
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output file (stdout when empty)",
				Destination: &output,
			},
			&cli.Int64Flag{
				Name:        "window-frames",
				Usage:       "frames per extraction window",
				Value:       extract.DefaultWindowFrames,
				Destination: &windowFrames,
			},
			&cli.DurationFlag{
				Name:        "cache-ttl",
				Usage:       "lifetime of cached features (0 keeps them forever)",
				Destination: &cacheTTL,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("extract takes exactly one audio file")
			}
			applyModelConfig(cmd, cfg)
			applyCacheConfig(cmd, cfg, &cacheTTL)
			applyWindowConfig(cmd, cfg, &windowFrames)
			audioPath := cmd.Args().First()
			log := logger.FromContext(ctx).With("file", audioPath)

			m, err := loadModel(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			store, err := openCache(ctx, cacheTTL)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			rows, err := extractRows(ctx, m, store, audioPath, int(windowFrames), log)
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := extract.WriteJSON(w, rows); err != nil {
				return fmt.Errorf("failed to write features: %w", err)
			}
			log.Info("features written", "rows", len(rows), "output", outputName(output))
			return nil
		},
	}
}

func extractRows(ctx context.Context, m *model.Module, store *cache.Store, path string, windowFrames int, log logger.Logger) ([][]float32, error) {
	var key string
	if store != nil {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		key, err = cache.Key(m.Fingerprint(), f)
		f.Close()
		if err != nil {
			return nil, err
		}
		entry, ok, err := store.Get(key)
		if err != nil {
			log.Warn("cache lookup failed", "error", err)
		} else if ok {
			log.Info("cache hit", "rows", len(entry.Rows))
			return entry.Rows, nil
		}
	}

	dec, err := audiofile.Open(path)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	info := m.Info()
	started := time.Now()
	res, err := extract.Run(ctx, dec, m, extract.Options{
		WindowFrames:  windowFrames,
		FeatureWindow: info.NFFT,
		FeatureHop:    info.HopLength,
		OnProgress: func(p float32) {
			log.Info("progress", "percent", int(p*100))
		},
		Logger: log,
	})
	if err != nil {
		return nil, err
	}
	log.Info("extraction finished", "segments", res.Segments, "frames", res.FramesRead, "elapsed", time.Since(started))

	if store != nil {
		entry := &cache.Entry{Rows: res.Rows, Segments: res.Segments, SampleRate: res.SampleRate, Channels: res.Channels}
		if err := store.Put(key, entry); err != nil {
			log.Warn("cache store failed", "error", err)
		}
	}
	return res.Rows, nil
}

func outputName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}
