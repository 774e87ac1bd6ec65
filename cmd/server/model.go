package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Brownie44l1/mfcc-api/internal/cache"
	"github.com/Brownie44l1/mfcc-api/internal/logger"
	"github.com/Brownie44l1/mfcc-api/internal/model"
)

func loadModel(ctx context.Context) (*model.Module, error) {
	log := logger.FromContext(ctx)
	if ortLib != "" {
		model.SetRuntimeLibrary(ortLib)
	}

	log.Info("loading model", "path", modelPath)
	m, err := model.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model: %w", err)
	}
	info := m.Info()
	log.Info("model loaded", "name", info.Name, "kind", info.Kind, "fingerprint", info.Fingerprint[:12])
	return m, nil
}

// openCache returns nil when no cache directory is configured.
func openCache(ctx context.Context, ttl time.Duration) (*cache.Store, error) {
	if cacheDir == "" {
		return nil, nil
	}
	store, err := cache.Open(cache.Options{Dir: cacheDir, TTL: ttl})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("feature cache opened", "dir", cacheDir, "ttl", ttl)
	return store, nil
}
