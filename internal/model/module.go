// Package model loads a model file and exposes audio and image prediction
// over it.
//
// A model file is a YAML or JSON manifest naming a backend:
//
//	kind: mfcc        # native MFCC extractor, serves PredictAudio
//	mfcc:
//	  n_mfcc: 2
//
//	kind: onnx        # ONNX Runtime graph, serves PredictImage and Predict
//	onnx:
//	  path: model_embedded.onnx
//	  input_shape: [1, 3, 48, 48]
//	  output_shape: [1, 7]
//	  image_size: 48
//	  classes: [angry, disgust, fear, happy, neutral, sad, surprise]
//
// A bare .onnx path works too when model_metadata.json sits beside it.
package model

import (
	"fmt"
	"image"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/Brownie44l1/mfcc-api/internal/mfcc"
)

// Module is a loaded model. It is safe for concurrent use.
type Module struct {
	manifest    Manifest
	fingerprint string

	mfcc *mfcc.Transform
	onnx *onnxSession

	closeOnce sync.Once
}

// Load reads the model file at path and prepares its backend.
func Load(path string) (*Module, error) {
	manifest, fingerprint, err := readManifest(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	m := &Module{manifest: manifest, fingerprint: fingerprint}
	switch manifest.Kind {
	case KindMFCC:
		t, err := mfcc.New(manifest.MFCC)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
		}
		m.mfcc = t
		m.manifest.MFCC = t.Config()
	case KindONNX:
		cfg := manifest.ONNX.withDefaults()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
		}
		s, err := newOnnxSession(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
		}
		m.onnx = s
		m.manifest.ONNX = cfg
	case "":
		return nil, fmt.Errorf("%w: %s: kind is required", ErrLoad, path)
	default:
		return nil, fmt.Errorf("%w: %s: unknown kind %q", ErrLoad, path, manifest.Kind)
	}
	return m, nil
}

// Info describes the loaded model.
func (m *Module) Info() Info {
	info := Info{
		Name:        m.manifest.Name,
		Kind:        m.manifest.Kind,
		Fingerprint: m.fingerprint,
		OutputWidth: m.OutputWidth(),
	}
	if m.mfcc != nil {
		info.SampleRate = m.manifest.MFCC.SampleRate
		info.NFFT = m.manifest.MFCC.NFFT
		info.HopLength = m.manifest.MFCC.HopLength
	}
	if m.onnx != nil {
		info.InputShape = m.manifest.ONNX.InputShape
		info.OutputShape = m.manifest.ONNX.OutputShape
		info.Classes = m.manifest.ONNX.Classes
		info.ImageSize = m.manifest.ONNX.ImageSize
	}
	return info
}

// Fingerprint identifies the model file contents.
func (m *Module) Fingerprint() string { return m.fingerprint }

// OutputWidth is the number of values per output row: n_mfcc for audio
// models, the output tensor size for ONNX graphs.
func (m *Module) OutputWidth() int {
	if m.mfcc != nil {
		return m.mfcc.Width()
	}
	size, _ := shapeSize(m.manifest.ONNX.OutputShape)
	return int(size)
}

// PredictAudio runs the audio model on a planar buffer holding channels
// runs of length samples each, recorded at sampleRate. The result is
// frame-major with OutputWidth values per frame. Audio shorter than one
// analysis window yields an empty result.
func (m *Module) PredictAudio(buf []float32, length, channels, sampleRate int) ([]float32, error) {
	if length <= 0 || channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: length, channels and sample rate must be positive (got %d, %d, %d)",
			ErrInvalidInput, length, channels, sampleRate)
	}
	if length > len(buf)/channels {
		return nil, fmt.Errorf("%w: buffer holds %d samples, need %d x %d",
			ErrInvalidInput, len(buf), channels, length)
	}
	if m.mfcc == nil {
		return nil, fmt.Errorf("%w: %s model has no audio input", ErrUnsupported, m.manifest.Kind)
	}
	frames, err := m.mfcc.Process(buf, length, channels, sampleRate)
	if err != nil {
		return nil, err
	}
	return mfcc.Flatten(frames), nil
}

// PredictImage preprocesses img for the graph and returns its raw output.
func (m *Module) PredictImage(img image.Image) ([]float32, error) {
	if m.onnx == nil {
		return nil, fmt.Errorf("%w: %s model has no image input", ErrUnsupported, m.manifest.Kind)
	}
	return m.predictImage(img)
}

// PredictImageBytes decodes a JPEG or PNG and runs it like PredictImage.
// Audio models fail with ErrUnsupported before anything is decoded.
func (m *Module) PredictImageBytes(data []byte) ([]float32, error) {
	if m.onnx == nil {
		return nil, fmt.Errorf("%w: %s model has no image input", ErrUnsupported, m.manifest.Kind)
	}
	img, _, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	return m.predictImage(img)
}

// predictImage expects an ONNX backend.
func (m *Module) predictImage(img image.Image) ([]float32, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidInput)
	}
	cfg := m.manifest.ONNX
	if cfg.ImageSize <= 0 {
		return nil, fmt.Errorf("%w: model declares no image_size", ErrUnsupported)
	}
	input := preprocessImage(img, cfg.ImageSize, cfg.Channels, cfg.Mean, cfg.Std)
	return m.onnx.run(input)
}

// Predict runs the graph on an already preprocessed input tensor and
// picks the top class.
func (m *Module) Predict(inputData []float32) (*PredictionResponse, error) {
	if m.onnx == nil {
		return nil, fmt.Errorf("%w: %s model has no tensor input", ErrUnsupported, m.manifest.Kind)
	}
	expectedSize, _ := shapeSize(m.manifest.ONNX.InputShape)
	if int64(len(inputData)) != expectedSize {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidInput, expectedSize, len(inputData))
	}
	out, err := m.onnx.run(inputData)
	if err != nil {
		return nil, err
	}
	return classify(out, m.manifest.ONNX.Classes), nil
}

// Classify is PredictImage followed by the same top class selection as
// Predict.
func (m *Module) Classify(img image.Image) (*PredictionResponse, error) {
	out, err := m.PredictImage(img)
	if err != nil {
		return nil, err
	}
	return classify(out, m.manifest.ONNX.Classes), nil
}

// ClassifyBytes decodes a JPEG or PNG and calls Classify.
func (m *Module) ClassifyBytes(data []byte) (*PredictionResponse, error) {
	out, err := m.PredictImageBytes(data)
	if err != nil {
		return nil, err
	}
	return classify(out, m.manifest.ONNX.Classes), nil
}

// classify maps output values to labels and picks the highest one. Outputs
// beyond the label list are named by index when no labels exist at all.
func classify(outputData []float32, classes []string) *PredictionResponse {
	resp := &PredictionResponse{
		ID:          uuid.NewString(),
		Predictions: make(map[string]float32),
	}
	if len(outputData) == 0 {
		return resp
	}

	labelled := len(classes)
	if labelled == 0 {
		labelled = len(outputData)
	}
	label := func(i int) string {
		if i < len(classes) {
			return classes[i]
		}
		return strconv.Itoa(i)
	}

	maxIdx := 0
	maxVal := outputData[0]
	for i, val := range outputData {
		if i >= labelled {
			break
		}
		resp.Predictions[label(i)] = val
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	resp.Class = label(maxIdx)
	resp.Confidence = maxVal
	return resp
}

// Close releases the ONNX session. It is safe to call more than once.
func (m *Module) Close() error {
	m.closeOnce.Do(func() {
		if m.onnx != nil {
			m.onnx.close()
		}
	})
	return nil
}
