package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/Brownie44l1/mfcc-api/internal/audiofile/audiofiletest"
	"github.com/Brownie44l1/mfcc-api/internal/cache"
	"github.com/Brownie44l1/mfcc-api/internal/model"
)

const tinyManifest = `
kind: mfcc
name: tiny
mfcc:
  sample_rate: 8000
  n_mfcc: 3
  n_fft: 256
  hop_length: 64
  n_mels: 12
`

func loadTiny(t *testing.T) *model.Module {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiny.yaml")
	if err := os.WriteFile(path, []byte(tinyManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := model.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// imageModel stands in for an ONNX classifier.
type imageModel struct{}

func (imageModel) Info() model.Info    { return model.Info{Name: "fer", Kind: model.KindONNX} }
func (imageModel) Fingerprint() string { return "fer" }
func (imageModel) OutputWidth() int    { return 2 }

func (imageModel) PredictAudio([]float32, int, int, int) ([]float32, error) {
	return nil, model.ErrUnsupported
}

func (imageModel) Predict(in []float32) (*model.PredictionResponse, error) {
	if len(in) != 2 {
		return nil, model.ErrInvalidInput
	}
	return &model.PredictionResponse{ID: "x", Class: "happy", Confidence: in[1]}, nil
}

func (imageModel) ClassifyBytes(data []byte) (*model.PredictionResponse, error) {
	if string(data) != "face" {
		return nil, errors.New("runtime exploded")
	}
	return &model.PredictionResponse{ID: "y", Class: "neutral", Confidence: 0.9}, nil
}

func newEcho(m Model, opts Options) *echo.Echo {
	e := echo.New()
	NewHandler(m, opts).Register(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, field, filename string, content []byte) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return w.FormDataContentType(), buf.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndModel(t *testing.T) {
	e := newEcho(loadTiny(t), Options{})

	rec := do(t, e, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}
	health := decode[map[string]string](t, rec)
	if health["status"] != "healthy" || health["kind"] != "mfcc" || health["model"] != "tiny" {
		t.Fatalf("health = %v", health)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}

	rec = do(t, e, http.MethodGet, "/model", "", nil)
	info := decode[model.Info](t, rec)
	if info.OutputWidth != 3 || info.NFFT != 256 || info.HopLength != 64 {
		t.Fatalf("info = %+v", info)
	}
}

func TestPreflight(t *testing.T) {
	e := newEcho(loadTiny(t), Options{})
	rec := do(t, e, http.MethodOptions, "/predict/audio", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Fatal("missing allowed methods")
	}
}

func TestPredictAudio(t *testing.T) {
	e := newEcho(loadTiny(t), Options{})
	samples := make([]float32, 2*512)
	for i := range samples {
		samples[i] = float32(i%16) / 16
	}
	body, _ := json.Marshal(model.AudioPredictionRequest{
		Samples: samples, Length: 512, Channels: 2, SampleRate: 8000,
	})

	rec := do(t, e, http.MethodPost, "/predict/audio", echo.MIMEApplicationJSON, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[model.AudioPredictionResponse](t, rec)
	// 1 + (512-256)/64 frames.
	if resp.Width != 3 || resp.Frames != 5 || len(resp.Features) != 5 || resp.ID == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestPredictAudioErrors(t *testing.T) {
	e := newEcho(loadTiny(t), Options{})
	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"short buffer", `{"samples":[0,1],"length":4,"channels":1,"sample_rate":8000}`, http.StatusBadRequest},
		{"missing rate", `{"samples":[0,1],"length":2,"channels":1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, http.MethodPost, "/predict/audio", echo.MIMEApplicationJSON, []byte(tt.body))
			if rec.Code != tt.code {
				t.Fatalf("status %d, want %d body=%s", rec.Code, tt.code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Fatalf("missing error body: %s", rec.Body.String())
			}
		})
	}
}

func TestPredictAudioFileUsesCache(t *testing.T) {
	store, err := cache.Open(cache.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	e := newEcho(loadTiny(t), Options{Cache: store})

	path := audiofiletest.WriteWAV(t, "clip.wav", 8000, 2, audiofiletest.Stereo(1000, 0.2, -0.2))
	wavBytes, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	ct, body := multipartBody(t, "audio", "clip.wav", wavBytes)
	rec := do(t, e, http.MethodPost, "/predict/audio/file", ct, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	first := decode[AudioFileResponse](t, rec)
	// 1 + (1000-256)/64 frames in a single window.
	if first.Cached || first.Frames != 12 || first.Segments != 1 || first.Channels != 2 || first.SampleRate != 8000 {
		t.Fatalf("first response = %+v", first)
	}

	ct, body = multipartBody(t, "audio", "clip.wav", wavBytes)
	rec = do(t, e, http.MethodPost, "/predict/audio/file", ct, body)
	second := decode[AudioFileResponse](t, rec)
	if !second.Cached || second.Frames != first.Frames {
		t.Fatalf("second response = %+v", second)
	}
}

func TestPredictAudioFileErrors(t *testing.T) {
	e := newEcho(loadTiny(t), Options{})

	ct, body := multipartBody(t, "wrong", "clip.wav", []byte("RIFF"))
	if rec := do(t, e, http.MethodPost, "/predict/audio/file", ct, body); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing field status %d", rec.Code)
	}

	ct, body = multipartBody(t, "audio", "clip.flac", []byte("fLaC"))
	if rec := do(t, e, http.MethodPost, "/predict/audio/file", ct, body); rec.Code != http.StatusBadRequest {
		t.Fatalf("unsupported format status %d", rec.Code)
	}

	ct, body = multipartBody(t, "audio", "clip.wav", []byte("definitely not a wav"))
	if rec := do(t, e, http.MethodPost, "/predict/audio/file", ct, body); rec.Code != http.StatusBadRequest {
		t.Fatalf("corrupt wav status %d", rec.Code)
	}
}

func TestImageOnAudioModel(t *testing.T) {
	e := newEcho(loadTiny(t), Options{})
	ct, body := multipartBody(t, "image", "face.png", []byte("face"))
	rec := do(t, e, http.MethodPost, "/predict/image", ct, body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422 body=%s", rec.Code, rec.Body.String())
	}
}

func TestImageModel(t *testing.T) {
	e := newEcho(imageModel{}, Options{})

	ct, body := multipartBody(t, "image", "face.jpg", []byte("face"))
	rec := do(t, e, http.MethodPost, "/predict/image", ct, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body=%s", rec.Code, rec.Body.String())
	}
	if resp := decode[model.PredictionResponse](t, rec); resp.Class != "neutral" {
		t.Fatalf("response = %+v", resp)
	}

	ct, body = multipartBody(t, "image", "face.jpg", []byte("other"))
	rec = do(t, e, http.MethodPost, "/predict/image", ct, body)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("runtime failure status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "exploded") {
		t.Fatal("internal error leaked to client")
	}

	rec = do(t, e, http.MethodPost, "/predict", echo.MIMEApplicationJSON, []byte(`{"image":[0.1,0.8]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("raw predict status %d", rec.Code)
	}
	rec = do(t, e, http.MethodPost, "/predict", echo.MIMEApplicationJSON, []byte(`{"image":[0.1]}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("raw predict wrong size status %d", rec.Code)
	}

	rec = do(t, e, http.MethodPost, "/predict/audio", echo.MIMEApplicationJSON,
		[]byte(`{"samples":[0],"length":1,"channels":1,"sample_rate":8000}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("audio on image model status %d", rec.Code)
	}
}

func TestUploadLimits(t *testing.T) {
	e := newEcho(imageModel{}, Options{MaxUploadBytes: 1 << 10})
	big := bytes.Repeat([]byte{0xff}, 4<<10)

	ct, body := multipartBody(t, "image", "face.jpg", big)
	rec := do(t, e, http.MethodPost, "/predict/image", ct, body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized image status %d, want 413 body=%s", rec.Code, rec.Body.String())
	}

	ct, body = multipartBody(t, "image", "face.jpg", []byte("face"))
	if rec := do(t, e, http.MethodPost, "/predict/image", ct, body); rec.Code != http.StatusOK {
		t.Fatalf("small image status %d", rec.Code)
	}

	// Audio routes allow ten times the image limit.
	ct, body = multipartBody(t, "audio", "clip.wav", bytes.Repeat([]byte{0}, 20<<10))
	if rec := do(t, e, http.MethodPost, "/predict/audio/file", ct, body); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized audio status %d, want 413", rec.Code)
	}

	raw := `{"image":[` + strings.Repeat("0.5,", 1<<10) + `0.5]}`
	if rec := do(t, e, http.MethodPost, "/predict", echo.MIMEApplicationJSON, []byte(raw)); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized tensor status %d, want 413", rec.Code)
	}
}
