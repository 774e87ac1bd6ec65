// Package audiofile decodes audio files into normalised float32 frames.
package audiofile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file types without a decoder.
var ErrUnsupportedFormat = errors.New("audiofile: unsupported format")

// Decoder reads audio sequentially.
type Decoder interface {
	// SampleRate returns the sample rate in Hz.
	SampleRate() int
	// NumChannels returns the channel count.
	NumChannels() int
	// NumFrames returns the total frame count, or 0 if unknown.
	NumFrames() int64
	// ReadFrames returns up to n frames as interleaved samples in [-1, 1].
	// It returns io.EOF once no frames remain.
	ReadFrames(n int) ([]float32, error)
	Close() error
}

// Format names a container.
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Open opens path with the decoder matching its extension. Closing the
// decoder closes the file.
func Open(path string) (Decoder, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	dec, err := NewDecoder(f, format)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileDecoder{Decoder: dec, f: f}, nil
}

// NewDecoder wraps r. The caller still owns r.
func NewDecoder(r io.ReadSeeker, format Format) (Decoder, error) {
	switch format {
	case FormatWAV:
		return newWAVDecoder(r)
	case FormatMP3:
		return newMP3Decoder(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

type fileDecoder struct {
	Decoder
	f *os.File
}

func (d *fileDecoder) Close() error {
	err := d.Decoder.Close()
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Deinterleave converts interleaved frames to planar (channel-major) layout.
func Deinterleave(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out[c*frames+i] = samples[i*channels+c]
		}
	}
	return out
}
