package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/Brownie44l1/mfcc-api/internal/audiofile"
	"github.com/Brownie44l1/mfcc-api/internal/cache"
	"github.com/Brownie44l1/mfcc-api/internal/extract"
	"github.com/Brownie44l1/mfcc-api/internal/logger"
	"github.com/Brownie44l1/mfcc-api/internal/model"
)

// Model is the part of *model.Module the handlers use.
type Model interface {
	Info() model.Info
	Fingerprint() string
	OutputWidth() int
	PredictAudio(buf []float32, length, channels, sampleRate int) ([]float32, error)
	Predict(inputData []float32) (*model.PredictionResponse, error)
	ClassifyBytes(data []byte) (*model.PredictionResponse, error)
}

// Options configures a Handler.
type Options struct {
	// Cache is optional. When set, audio file results are looked up and
	// stored by content hash.
	Cache *cache.Store
	// MaxUploadBytes caps request bodies on the image and tensor routes.
	// Audio routes accept ten times as much. Defaults to 10 MB.
	MaxUploadBytes int64
	// WindowFrames overrides the extraction window.
	WindowFrames int
	Logger       logger.Logger
}

type Handler struct {
	model Model
	opts  Options
	log   logger.Logger
}

func NewHandler(m Model, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{model: m, opts: opts, log: log}
}

// Register mounts the API routes on e.
func (h *Handler) Register(e *echo.Echo) {
	e.Pre(cors)
	e.GET("/health", h.Health)
	e.GET("/model", h.ModelInfo)
	e.POST("/predict", h.Predict)
	e.POST("/predict/audio", h.PredictAudio)
	e.POST("/predict/audio/file", h.PredictAudioFile)
	e.POST("/predict/image", h.PredictFromImage)
}

func cors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		header := c.Response().Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusOK)
		}
		return next(c)
	}
}

func (h *Handler) Health(c *echo.Context) error {
	info := h.model.Info()
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
		"model":  info.Name,
		"kind":   string(info.Kind),
	})
}

func (h *Handler) ModelInfo(c *echo.Context) error {
	return c.JSON(http.StatusOK, h.model.Info())
}

func (h *Handler) Predict(c *echo.Context) error {
	body, err := readBody(c, h.opts.MaxUploadBytes)
	if err != nil {
		return writeBodyError(c, err)
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return writeBadRequest(c, "Invalid JSON")
	}

	result, err := h.model.Predict(req.Image)
	if err != nil {
		return h.writeModelError(c, "prediction", err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) PredictAudio(c *echo.Context) error {
	body, err := readBody(c, h.audioLimit())
	if err != nil {
		return writeBodyError(c, err)
	}

	var req model.AudioPredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return writeBadRequest(c, "Invalid JSON")
	}

	flat, err := h.model.PredictAudio(req.Samples, req.Length, req.Channels, req.SampleRate)
	if err != nil {
		return h.writeModelError(c, "audio prediction", err)
	}
	width := h.model.OutputWidth()
	features := extract.Rows(flat, width)
	return c.JSON(http.StatusOK, model.AudioPredictionResponse{
		ID:       uuid.NewString(),
		Width:    width,
		Frames:   len(features),
		Features: features,
	})
}

// AudioFileResponse is returned by POST /predict/audio/file.
type AudioFileResponse struct {
	ID         string      `json:"id"`
	Width      int         `json:"width"`
	Frames     int         `json:"frames"`
	Segments   int         `json:"segments"`
	SampleRate int         `json:"sample_rate"`
	Channels   int         `json:"channels"`
	Cached     bool        `json:"cached"`
	Features   [][]float32 `json:"features"`
}

func (h *Handler) PredictAudioFile(c *echo.Context) error {
	req := limitBody(c, h.audioLimit())
	if err := req.ParseMultipartForm(h.audioLimit()); err != nil {
		return writeFormError(c, err)
	}
	file, header, err := req.FormFile("audio")
	if err != nil {
		return writeBadRequest(c, "No audio file provided. Use 'audio' as the form field name")
	}
	defer file.Close()

	format, err := audiofile.FormatFromPath(header.Filename)
	if err != nil {
		return writeBadRequest(c, "Unsupported audio format. Supported: WAV, MP3")
	}
	log := h.log.With("file", header.Filename, "size", header.Size)
	log.Info("received audio file")

	tmp, err := os.CreateTemp("", "mfcc-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return h.writeModelError(c, "audio upload", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, file); err != nil {
		return h.writeModelError(c, "audio upload", err)
	}

	key := ""
	if h.opts.Cache != nil {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return h.writeModelError(c, "audio upload", err)
		}
		if key, err = cache.Key(h.model.Fingerprint(), tmp); err != nil {
			return h.writeModelError(c, "audio upload", err)
		}
		entry, ok, err := h.opts.Cache.Get(key)
		if err != nil {
			log.Warn("feature cache lookup failed", "error", err)
		}
		if ok {
			log.Debug("feature cache hit", "key", key)
			return c.JSON(http.StatusOK, h.fileResponse(entry, true))
		}
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return h.writeModelError(c, "audio upload", err)
	}
	dec, err := audiofile.NewDecoder(tmp, format)
	if err != nil {
		return writeBadRequest(c, fmt.Sprintf("Invalid audio file: %v", err))
	}
	defer dec.Close()

	info := h.model.Info()
	res, err := extract.Run(req.Context(), dec, h.model, extract.Options{
		WindowFrames:  h.opts.WindowFrames,
		FeatureWindow: info.NFFT,
		FeatureHop:    info.HopLength,
		Logger:        log,
	})
	if err != nil {
		return h.writeModelError(c, "audio extraction", err)
	}

	entry := &cache.Entry{
		Rows:       res.Rows,
		Segments:   res.Segments,
		SampleRate: res.SampleRate,
		Channels:   res.Channels,
	}
	if h.opts.Cache != nil {
		if err := h.opts.Cache.Put(key, entry); err != nil {
			log.Warn("feature cache store failed", "error", err)
		}
	}
	log.Info("audio file processed", "segments", res.Segments, "rows", len(res.Rows))
	return c.JSON(http.StatusOK, h.fileResponse(entry, false))
}

func (h *Handler) fileResponse(e *cache.Entry, cached bool) AudioFileResponse {
	return AudioFileResponse{
		ID:         uuid.NewString(),
		Width:      h.model.OutputWidth(),
		Frames:     len(e.Rows),
		Segments:   e.Segments,
		SampleRate: e.SampleRate,
		Channels:   e.Channels,
		Cached:     cached,
		Features:   e.Rows,
	}
}

func (h *Handler) PredictFromImage(c *echo.Context) error {
	req := limitBody(c, h.opts.MaxUploadBytes)
	if err := req.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		return writeFormError(c, err)
	}

	file, header, err := req.FormFile("image")
	if err != nil {
		return writeBadRequest(c, "No image file provided. Use 'image' as the form field name")
	}
	defer file.Close()

	h.log.Info("received image", "file", header.Filename, "size", header.Size)

	data, err := io.ReadAll(file)
	if err != nil {
		return writeBadRequest(c, "Failed to read image")
	}

	result, err := h.model.ClassifyBytes(data)
	if err != nil {
		return h.writeModelError(c, "image prediction", err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) audioLimit() int64 { return 10 * h.opts.MaxUploadBytes }

// limitBody caps the request body at n bytes and returns the request.
func limitBody(c *echo.Context, n int64) *http.Request {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, n)
	return req
}

func readBody(c *echo.Context, n int64) ([]byte, error) {
	return io.ReadAll(limitBody(c, n).Body)
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeBodyError(c *echo.Context, err error) error {
	if tooLarge(err) {
		return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error", "Request body too large")
	}
	return writeBadRequest(c, "Failed to read request body")
}

func writeFormError(c *echo.Context, err error) error {
	if tooLarge(err) {
		return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error", "Upload too large")
	}
	return writeBadRequest(c, "Failed to parse form")
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]apiError{
		"error": {Message: msg, Type: errType},
	})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

// writeModelError maps model errors to status codes. Unclassified errors
// are logged and hidden behind a generic message.
func (h *Handler) writeModelError(c *echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, audiofile.ErrUnsupportedFormat):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, model.ErrUnsupported):
		return writeError(c, http.StatusUnprocessableEntity, "unsupported_error", err.Error())
	}
	h.log.Error(op+" failed", "error", err)
	return writeError(c, http.StatusInternalServerError, "server_error", "Prediction failed")
}
