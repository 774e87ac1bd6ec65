// Package extract runs an audio model over a whole file in overlapping
// windows and concatenates the per-window feature rows.
//
// One goroutine decodes, the caller's goroutine runs the model. They are
// joined by a small bounded channel so decoding stays at most two windows
// ahead.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Brownie44l1/mfcc-api/internal/audiofile"
	"github.com/Brownie44l1/mfcc-api/internal/logger"
)

const (
	// DefaultWindowFrames is the number of frames per model call.
	DefaultWindowFrames = 1 << 22
	// DefaultFeatureWindow is the model's own analysis window.
	DefaultFeatureWindow = 1 << 16

	readChunkFrames = 1 << 16
	queueDepth      = 2
)

// Predictor is the audio side of a model.
type Predictor interface {
	PredictAudio(buf []float32, length, channels, sampleRate int) ([]float32, error)
	OutputWidth() int
}

// Options tunes Run. Zero values take defaults.
type Options struct {
	WindowFrames  int
	FeatureWindow int
	FeatureHop    int
	// OnProgress receives a value in [0, 1] after each window.
	OnProgress func(float32)
	Logger     logger.Logger
}

func (o Options) withDefaults() Options {
	if o.WindowFrames <= 0 {
		o.WindowFrames = DefaultWindowFrames
	}
	if o.FeatureWindow <= 0 {
		o.FeatureWindow = DefaultFeatureWindow
	}
	if o.FeatureHop <= 0 {
		o.FeatureHop = o.FeatureWindow / 4
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	return o
}

// Result is the concatenated model output for a file.
type Result struct {
	Rows       [][]float32
	Segments   int
	FramesRead int64
	SampleRate int
	Channels   int
}

type window struct {
	index  int
	seg    Segment
	planar []float32
	frames int
}

// Run decodes dec window by window and feeds each window to p.
func Run(ctx context.Context, dec audiofile.Decoder, p Predictor, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	channels := dec.NumChannels()
	rate := dec.SampleRate()
	if channels <= 0 || rate <= 0 {
		return nil, fmt.Errorf("extract: decoder reports %d channels at %d Hz", channels, rate)
	}

	total := dec.NumFrames()
	if total <= 0 {
		buffered, err := bufferAll(dec)
		if err != nil {
			return nil, err
		}
		dec = buffered
		total = buffered.NumFrames()
	}

	overlap := opts.FeatureWindow - opts.FeatureHop
	segs := Plan(total, opts.WindowFrames, overlap, opts.FeatureHop)
	log := opts.Logger.With("frames", total, "segments", len(segs), "channels", channels, "sample_rate", rate)
	log.Debug("extraction planned")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan window, queueDepth)
	readDone := make(chan error, 1)
	r := &segmentReader{dec: dec, channels: channels}
	go func() {
		defer close(queue)
		readDone <- r.run(ctx, segs, queue)
	}()

	res := &Result{SampleRate: rate, Channels: channels}
	width := p.OutputWidth()
	for w := range queue {
		out, err := p.PredictAudio(w.planar, w.frames, channels, rate)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("extract: window %d [%d,%d): %w", w.index, w.seg.From, w.seg.To, err)
		}
		res.Rows = append(res.Rows, Rows(out, width)...)
		res.Segments++
		res.FramesRead += int64(w.frames)
		log.Debug("window processed", "index", w.index, "rows", len(res.Rows))
		if opts.OnProgress != nil {
			opts.OnProgress(progress(w.index, len(segs)))
		}
	}
	if err := <-readDone; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.Rows == nil {
		res.Rows = [][]float32{}
	}
	return res, nil
}

func progress(i, n int) float32 {
	if n <= 1 {
		return 1
	}
	return float32(i) / float32(n-1)
}

// Rows splits frame-major output into rows of width values. A final short
// row is kept.
func Rows(flat []float32, width int) [][]float32 {
	if width <= 0 {
		width = 1
	}
	rows := make([][]float32, 0, (len(flat)+width-1)/width)
	for i := 0; i < len(flat); i += width {
		rows = append(rows, flat[i:min(i+width, len(flat))])
	}
	return rows
}

// segmentReader reads sequentially and keeps the overlap between windows
// in memory, so the decoder never has to seek.
type segmentReader struct {
	dec      audiofile.Decoder
	channels int
	buf      []float32 // interleaved, starts at frame bufStart
	bufStart int64
	eof      bool
}

func (r *segmentReader) run(ctx context.Context, segs []Segment, out chan<- window) error {
	for i, seg := range segs {
		if err := r.fill(seg.To); err != nil {
			return err
		}
		r.trim(seg.From)
		avail := int64(len(r.buf) / r.channels)
		frames := min(seg.Frames(), avail)
		if frames <= 0 {
			break
		}
		w := window{
			index:  i,
			seg:    seg,
			planar: audiofile.Deinterleave(r.buf[:frames*int64(r.channels)], r.channels),
			frames: int(frames),
		}
		select {
		case out <- w:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// fill reads until the buffer reaches frame to or the stream ends.
func (r *segmentReader) fill(to int64) error {
	for !r.eof && r.bufStart+int64(len(r.buf)/r.channels) < to {
		need := to - r.bufStart - int64(len(r.buf)/r.channels)
		chunk, err := r.dec.ReadFrames(int(min(need, readChunkFrames)))
		if errors.Is(err, io.EOF) {
			r.eof = true
			break
		}
		if err != nil {
			return fmt.Errorf("extract: read audio: %w", err)
		}
		r.buf = append(r.buf, chunk...)
	}
	return nil
}

// trim drops frames before from.
func (r *segmentReader) trim(from int64) {
	drop := (from - r.bufStart) * int64(r.channels)
	if drop <= 0 {
		return
	}
	drop = min(drop, int64(len(r.buf)))
	r.buf = append(r.buf[:0], r.buf[drop:]...)
	r.bufStart += drop / int64(r.channels)
}

// memDecoder serves frames already read into memory.
type memDecoder struct {
	rate, channels int
	samples        []float32
}

// bufferAll drains a decoder of unknown length.
func bufferAll(dec audiofile.Decoder) (*memDecoder, error) {
	m := &memDecoder{rate: dec.SampleRate(), channels: dec.NumChannels()}
	for {
		chunk, err := dec.ReadFrames(readChunkFrames)
		if errors.Is(err, io.EOF) {
			return m, nil
		}
		if err != nil {
			return nil, fmt.Errorf("extract: read audio: %w", err)
		}
		m.samples = append(m.samples, chunk...)
	}
}

func (m *memDecoder) SampleRate() int  { return m.rate }
func (m *memDecoder) NumChannels() int { return m.channels }
func (m *memDecoder) NumFrames() int64 { return int64(len(m.samples) / m.channels) }
func (m *memDecoder) Close() error     { return nil }

func (m *memDecoder) ReadFrames(n int) ([]float32, error) {
	if len(m.samples) == 0 {
		return nil, io.EOF
	}
	take := min(n*m.channels, len(m.samples))
	out := m.samples[:take:take]
	m.samples = m.samples[take:]
	return out, nil
}
