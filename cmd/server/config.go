package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the config file (~/.config/mfcc-api/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	Model  string `yaml:"model"`
	OrtLib string `yaml:"ort_lib"`

	// Server
	Addr        string `yaml:"addr"`
	MaxUploadMB *int64 `yaml:"max_upload_mb"`

	// Extraction
	CacheDir     string         `yaml:"cache_dir"`
	CacheTTL     *time.Duration `yaml:"cache_ttl"`
	WindowFrames *int64         `yaml:"window_frames"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mfcc-api", "config.yaml")
}

// loadConfig reads the config file. A missing file at the default
// location yields a zero Config; a missing file the user asked for is
// an error.
func loadConfig(path string, explicit bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return c, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		modelPath = cfg.Model
	}
	if cfg.OrtLib != "" && !c.IsSet("ort-lib") {
		ortLib = cfg.OrtLib
	}
}

func applyCacheConfig(c *cli.Command, cfg Config, ttl *time.Duration) {
	if cfg.CacheDir != "" && !c.IsSet("cache-dir") {
		cacheDir = cfg.CacheDir
	}
	if cfg.CacheTTL != nil && !c.IsSet("cache-ttl") {
		*ttl = *cfg.CacheTTL
	}
}

func applyWindowConfig(c *cli.Command, cfg Config, windowFrames *int64) {
	if cfg.WindowFrames != nil && !c.IsSet("window-frames") {
		*windowFrames = *cfg.WindowFrames
	}
}

// applyServeConfig applies config file defaults to serve command variables.
// The PORT variable sits between an explicit --addr and the config file.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxUploadMB *int64) {
	if !c.IsSet("addr") {
		if port := os.Getenv("PORT"); port != "" {
			*addr = ":" + port
		} else if cfg.Addr != "" {
			*addr = cfg.Addr
		}
	}
	if cfg.MaxUploadMB != nil && !c.IsSet("max-upload-mb") {
		*maxUploadMB = *cfg.MaxUploadMB
	}
}
