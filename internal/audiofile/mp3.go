package audiofile

import (
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo.
const (
	mp3Channels   = 2
	mp3FrameBytes = 4
)

type mp3Decoder struct {
	d   *mp3.Decoder
	buf []byte
}

func newMP3Decoder(r io.Reader) (*mp3Decoder, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open mp3 stream: %w", err)
	}
	return &mp3Decoder{d: d}, nil
}

func (m *mp3Decoder) SampleRate() int  { return m.d.SampleRate() }
func (m *mp3Decoder) NumChannels() int { return mp3Channels }

func (m *mp3Decoder) NumFrames() int64 {
	if l := m.d.Length(); l > 0 {
		return l / mp3FrameBytes
	}
	return 0
}

func (m *mp3Decoder) ReadFrames(n int) ([]float32, error) {
	if n <= 0 {
		return nil, io.EOF
	}
	size := n * mp3FrameBytes
	if cap(m.buf) < size {
		m.buf = make([]byte, size)
	}
	m.buf = m.buf[:size]

	read, err := io.ReadFull(m.d, m.buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}
	read -= read % mp3FrameBytes
	if read == 0 {
		return nil, io.EOF
	}
	return pcm16ToFloat(m.buf[:read]), nil
}

// pcm16ToFloat converts 16-bit little-endian samples to [-1, 1).
func pcm16ToFloat(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		s := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(s) / 32768
	}
	return out
}

func (m *mp3Decoder) Close() error { return nil }
