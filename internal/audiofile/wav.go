package audiofile

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// primeFrames is read up front so the decoder has located the data chunk
// and knows its size.
const primeFrames = 4096

type wavDecoder struct {
	d       *wav.Decoder
	scale   float32
	offset  int
	frames  int64
	buf     *audio.IntBuffer
	pending []float32
	done    bool
}

func newWAVDecoder(r io.ReadSeeker) (*wavDecoder, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("audiofile: invalid wav file")
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: wav audio format %d (only integer PCM)", ErrUnsupportedFormat, d.WavAudioFormat)
	}
	bits := int(d.BitDepth)
	switch bits {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: wav bit depth %d", ErrUnsupportedFormat, bits)
	}
	if d.NumChans == 0 {
		return nil, fmt.Errorf("audiofile: wav declares zero channels")
	}
	w := &wavDecoder{
		d:     d,
		scale: 1 / float32(int64(1)<<(bits-1)),
	}
	// 8-bit wav is unsigned.
	if bits == 8 {
		w.offset = 128
	}

	first, err := w.read(primeFrames)
	if err != nil && err != io.EOF {
		return nil, err
	}
	w.pending = first
	w.frames = d.PCMLen() / (int64(d.NumChans) * int64(bits/8))
	return w, nil
}

func (w *wavDecoder) SampleRate() int  { return int(w.d.SampleRate) }
func (w *wavDecoder) NumChannels() int { return int(w.d.NumChans) }
func (w *wavDecoder) NumFrames() int64 { return w.frames }

func (w *wavDecoder) ReadFrames(n int) ([]float32, error) {
	if n <= 0 {
		return nil, io.EOF
	}
	channels := w.NumChannels()
	if len(w.pending) > 0 {
		take := min(n*channels, len(w.pending))
		out := w.pending[:take:take]
		w.pending = w.pending[take:]
		if take == n*channels {
			return out, nil
		}
		rest, err := w.read(n - take/channels)
		if err != nil && err != io.EOF {
			return nil, err
		}
		return append(out, rest...), nil
	}
	return w.read(n)
}

func (w *wavDecoder) read(n int) ([]float32, error) {
	if w.done {
		return nil, io.EOF
	}
	channels := w.NumChannels()
	size := n * channels
	if w.buf == nil || cap(w.buf.Data) < size {
		w.buf = &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: w.SampleRate()},
			Data:           make([]int, size),
			SourceBitDepth: int(w.d.BitDepth),
		}
	}
	w.buf.Data = w.buf.Data[:size]

	got, err := w.d.PCMBuffer(w.buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read wav pcm: %w", err)
	}
	got -= got % channels
	if got < size {
		w.done = true
	}
	if got == 0 {
		return nil, io.EOF
	}
	out := make([]float32, got)
	for i, v := range w.buf.Data[:got] {
		out[i] = float32(v-w.offset) * w.scale
	}
	return out, nil
}

func (w *wavDecoder) Close() error { return nil }
