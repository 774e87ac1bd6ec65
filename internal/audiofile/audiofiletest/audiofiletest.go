// Package audiofiletest writes fixture audio files for tests.
package audiofiletest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes interleaved samples in [-1, 1] as a 16-bit PCM wav file
// under t.TempDir and returns its path.
func WriteWAV(t testing.TB, name string, sampleRate, channels int, samples []float32) string {
	t.Helper()
	return WriteWAVBits(t, name, sampleRate, channels, 16, samples)
}

// WriteWAVBits is WriteWAV at 8, 16, 24 or 32 bits per sample. Samples are
// scaled by 2^(bits-1) and clipped; 8-bit output is unsigned.
func WriteWAVBits(t testing.TB, name string, sampleRate, channels, bits int, samples []float32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	full := float64(int64(1) << (bits - 1))
	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * full)
		v = math.Max(-full, math.Min(full-1, v))
		data[i] = int(v)
		if bits == 8 {
			data[i] += 128
		}
	}
	enc := wav.NewEncoder(f, sampleRate, bits, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bits,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
	return path
}

// Stereo returns frames interleaved samples with a constant left and
// right value.
func Stereo(frames int, left, right float32) []float32 {
	out := make([]float32, 2*frames)
	for i := 0; i < frames; i++ {
		out[2*i] = left
		out[2*i+1] = right
	}
	return out
}

// SilentMP3 returns n MPEG-1 Layer III frames at 128 kb/s, 44.1 kHz,
// stereo. Side info and main data are zero, so each frame decodes to
// 1152 silent frames.
func SilentMP3(n int) []byte {
	const frameSize = 144 * 128000 / 44100
	out := make([]byte, n*frameSize)
	for i := 0; i < n; i++ {
		copy(out[i*frameSize:], []byte{0xff, 0xfb, 0x90, 0x00})
	}
	return out
}
