package model

// Kind selects the backend a model file is served by.
type Kind string

const (
	KindMFCC Kind = "mfcc"
	KindONNX Kind = "onnx"
)

// Metadata describes an ONNX graph's tensors and labels. It is the layout
// of the model_metadata.json file shipped next to a bare .onnx graph.
type Metadata struct {
	InputShape  []int64  `json:"input_shape" yaml:"input_shape"`
	OutputShape []int64  `json:"output_shape" yaml:"output_shape"`
	Classes     []string `json:"classes" yaml:"classes"`
	ImageSize   int      `json:"image_size" yaml:"image_size"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	ID          string             `json:"id"`
	Class       string             `json:"class"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions"`
}

// AudioPredictionRequest carries a planar buffer: channel c occupies
// Samples[c*Length : (c+1)*Length].
type AudioPredictionRequest struct {
	Samples    []float32 `json:"samples"`
	Length     int       `json:"length"`
	Channels   int       `json:"channels"`
	SampleRate int       `json:"sample_rate"`
}

type AudioPredictionResponse struct {
	ID       string      `json:"id"`
	Width    int         `json:"width"`
	Frames   int         `json:"frames"`
	Features [][]float32 `json:"features"`
}

// Info summarises a loaded model.
type Info struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	Fingerprint string   `json:"fingerprint"`
	OutputWidth int      `json:"output_width"`
	SampleRate  int      `json:"sample_rate,omitempty"`
	NFFT        int      `json:"n_fft,omitempty"`
	HopLength   int      `json:"hop_length,omitempty"`
	InputShape  []int64  `json:"input_shape,omitempty"`
	OutputShape []int64  `json:"output_shape,omitempty"`
	Classes     []string `json:"classes,omitempty"`
	ImageSize   int      `json:"image_size,omitempty"`
}
