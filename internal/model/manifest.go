package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/mfcc-api/internal/mfcc"
)

// Manifest is the model file read by Load.
type Manifest struct {
	Name string      `json:"name" yaml:"name"`
	Kind Kind        `json:"kind" yaml:"kind"`
	MFCC mfcc.Config `json:"mfcc" yaml:"mfcc"`
	ONNX OnnxConfig  `json:"onnx" yaml:"onnx"`
}

// OnnxConfig locates an ONNX graph and describes how images are fed to it.
type OnnxConfig struct {
	Metadata   `yaml:",inline"`
	Path       string    `json:"path" yaml:"path"`
	InputName  string    `json:"input_name" yaml:"input_name"`
	OutputName string    `json:"output_name" yaml:"output_name"`
	Channels   int       `json:"channels" yaml:"channels"`
	Mean       []float32 `json:"mean" yaml:"mean"`
	Std        []float32 `json:"std" yaml:"std"`
}

// readManifest loads a manifest or a bare .onnx graph and returns it with
// its fingerprint.
func readManifest(path string) (Manifest, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".onnx" {
		return manifestForGraph(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, "", fmt.Errorf("failed to read model file: %w", err)
	}
	var m Manifest
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &m)
	case ".json":
		err = json.Unmarshal(raw, &m)
	default:
		return Manifest{}, "", fmt.Errorf("unrecognised model file extension %q", ext)
	}
	if err != nil {
		return Manifest{}, "", fmt.Errorf("failed to parse model file: %w", err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	h := sha256.New()
	h.Write(raw)
	if m.Kind == KindONNX && m.ONNX.Path != "" {
		if !filepath.IsAbs(m.ONNX.Path) {
			m.ONNX.Path = filepath.Join(filepath.Dir(path), m.ONNX.Path)
		}
		graph, err := os.ReadFile(m.ONNX.Path)
		if err != nil {
			return Manifest{}, "", fmt.Errorf("failed to read onnx graph: %w", err)
		}
		h.Write(graph)
	}
	return m, hex.EncodeToString(h.Sum(nil)), nil
}

// manifestForGraph builds a manifest for a bare graph from the
// metadata file next to it: <stem>.json, then model_metadata.json.
func manifestForGraph(graphPath string) (Manifest, string, error) {
	dir := filepath.Dir(graphPath)
	stem := strings.TrimSuffix(filepath.Base(graphPath), filepath.Ext(graphPath))
	candidates := []string{
		filepath.Join(dir, stem+".json"),
		filepath.Join(dir, "model_metadata.json"),
	}

	var metaFile []byte
	var err error
	for _, c := range candidates {
		metaFile, err = os.ReadFile(c)
		if err == nil {
			break
		}
	}
	if err != nil {
		return Manifest{}, "", fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return Manifest{}, "", fmt.Errorf("failed to parse metadata: %w", err)
	}
	graph, err := os.ReadFile(graphPath)
	if err != nil {
		return Manifest{}, "", fmt.Errorf("failed to read onnx graph: %w", err)
	}

	h := sha256.New()
	h.Write(metaFile)
	h.Write(graph)
	m := Manifest{
		Name: stem,
		Kind: KindONNX,
		ONNX: OnnxConfig{Metadata: metadata, Path: graphPath},
	}
	return m, hex.EncodeToString(h.Sum(nil)), nil
}

func (c OnnxConfig) withDefaults() OnnxConfig {
	if c.InputName == "" {
		c.InputName = "input"
	}
	if c.OutputName == "" {
		c.OutputName = "output"
	}
	if c.Channels == 0 {
		c.Channels = 3
	}
	return c
}

func (c OnnxConfig) validate() error {
	if c.Path == "" {
		return fmt.Errorf("onnx.path is required")
	}
	in, err := shapeSize(c.InputShape)
	if err != nil {
		return fmt.Errorf("onnx.input_shape: %w", err)
	}
	if _, err := shapeSize(c.OutputShape); err != nil {
		return fmt.Errorf("onnx.output_shape: %w", err)
	}
	if c.Channels != 1 && c.Channels != 3 {
		return fmt.Errorf("onnx.channels must be 1 or 3, got %d", c.Channels)
	}
	if len(c.Mean) != 0 && len(c.Mean) != c.Channels {
		return fmt.Errorf("onnx.mean has %d values for %d channels", len(c.Mean), c.Channels)
	}
	if len(c.Std) != 0 && len(c.Std) != c.Channels {
		return fmt.Errorf("onnx.std has %d values for %d channels", len(c.Std), c.Channels)
	}
	for _, s := range c.Std {
		if s == 0 {
			return fmt.Errorf("onnx.std contains zero")
		}
	}
	if c.ImageSize < 0 {
		return fmt.Errorf("onnx.image_size must not be negative")
	}
	if c.ImageSize > 0 {
		if want := int64(c.Channels * c.ImageSize * c.ImageSize); in != want {
			return fmt.Errorf("onnx.input_shape holds %d values, image preprocessing yields %d", in, want)
		}
	}
	return nil
}

func shapeSize(shape []int64) (int64, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("empty shape")
	}
	size := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("dimension %d must be positive", d)
		}
		size *= d
	}
	return size, nil
}
