package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/Brownie44l1/mfcc-api/internal/handlers"
	"github.com/Brownie44l1/mfcc-api/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr         string
		maxUploadMB  int64
		windowFrames int64
		cacheTTL     time.Duration
		readTimeout  time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the prediction API over HTTP",
		Flags: append(commonModelFlags(),
			cacheFlag(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       ":8080",
				Destination: &addr,
			},
			&cli.Int64Flag{
				Name:        "max-upload-mb",
				Usage:       "maximum image upload size in MiB (audio uploads get ten times this)",
				Value:       10,
				Destination: &maxUploadMB,
			},
			&cli.Int64Flag{
				Name:        "window-frames",
				Usage:       "frames per extraction window for uploaded audio files",
				Destination: &windowFrames,
			},
			&cli.DurationFlag{
				Name:        "cache-ttl",
				Usage:       "lifetime of cached features (0 keeps them forever)",
				Destination: &cacheTTL,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, cfg)
			applyCacheConfig(cmd, cfg, &cacheTTL)
			applyWindowConfig(cmd, cfg, &windowFrames)
			applyServeConfig(cmd, cfg, &addr, &maxUploadMB)
			log := logger.FromContext(ctx)

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

			handler := handlers.NewHandler(m, handlers.Options{
				Cache:          store,
				MaxUploadBytes: maxUploadMB << 20,
				WindowFrames:   int(windowFrames),
				Logger:         log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			handler.Register(e)

			info := m.Info()
			log.Info("starting server", "address", addr, "model", info.Name, "kind", info.Kind)
			if len(info.Classes) > 0 {
				log.Info("classes", "classes", info.Classes)
			}
			log.Debug("endpoints",
				"health", "GET /health",
				"model", "GET /model",
				"predict", "POST /predict",
				"audio", "POST /predict/audio",
				"audio_file", "POST /predict/audio/file",
				"image", "POST /predict/image",
			)

			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
