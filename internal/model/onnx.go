package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process wide; sessions share it.
var (
	ortMu      sync.Mutex
	ortRefs    int
	ortLibPath string
)

// SetRuntimeLibrary points onnxruntime_go at a specific shared library.
// It must be called before the first ONNX model is loaded.
func SetRuntimeLibrary(path string) {
	ortMu.Lock()
	defer ortMu.Unlock()
	ortLibPath = path
}

func acquireEnvironment() error {
	ortMu.Lock()
	defer ortMu.Unlock()
	if ortRefs == 0 {
		if ortLibPath != "" {
			ort.SetSharedLibraryPath(ortLibPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	ortRefs++
	return nil
}

func releaseEnvironment() {
	ortMu.Lock()
	defer ortMu.Unlock()
	ortRefs--
	if ortRefs == 0 {
		ort.DestroyEnvironment()
	}
}

// onnxSession owns a session bound to one input and one output tensor.
// Runs are serialized because the tensors are shared.
type onnxSession struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func newOnnxSession(cfg OnnxConfig) (*onnxSession, error) {
	if err := acquireEnvironment(); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.Path,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		releaseEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxSession{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// run copies input into the bound tensor and returns a copy of the output.
func (s *onnxSession) run(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), input)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	out := s.outputTensor.GetData()
	res := make([]float32, len(out))
	copy(res, out)
	return res, nil
}

func (s *onnxSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	releaseEnvironment()
}
