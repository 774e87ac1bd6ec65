package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/Brownie44l1/mfcc-api/internal/audiofile"
	"github.com/Brownie44l1/mfcc-api/internal/audiofile/audiofiletest"
	"github.com/Brownie44l1/mfcc-api/internal/mfcc"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		want  []Segment
	}{
		{"empty", 0, nil},
		{"three windows", 250, []Segment{{0, 112}, {100, 212}, {200, 250}}},
		{"overrun window dropped", 205, []Segment{{0, 112}, {200, 205}}},
		{"short tail dropped", 202, []Segment{{0, 112}}},
		{"single window", 80, []Segment{{0, 80}}},
		{"tiny input", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.total, 100, 12, 4)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Plan(%d) = %v, want %v", tt.total, got, tt.want)
			}
		})
	}
}

func TestPlanDefaults(t *testing.T) {
	hop := DefaultFeatureWindow / 4
	segs := Plan(10_000_000, DefaultWindowFrames, DefaultFeatureWindow-hop, hop)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[0].To != DefaultWindowFrames+DefaultFeatureWindow-int64(hop) {
		t.Fatalf("first segment %v lacks overlap", segs[0])
	}
	if segs[2].To != 10_000_000 {
		t.Fatalf("last segment %v does not end at total", segs[2])
	}
}

// rampDecoder yields frame index as every channel's sample value.
type rampDecoder struct {
	frames   int64
	channels int
	pos      int64
	reported int64
}

func (d *rampDecoder) SampleRate() int  { return 8000 }
func (d *rampDecoder) NumChannels() int { return d.channels }
func (d *rampDecoder) NumFrames() int64 { return d.reported }
func (d *rampDecoder) Close() error     { return nil }

func (d *rampDecoder) ReadFrames(n int) ([]float32, error) {
	if d.pos >= d.frames {
		return nil, io.EOF
	}
	// Short reads exercise the refill loop.
	n = min(n, 7)
	end := min(d.pos+int64(n), d.frames)
	out := make([]float32, 0, int(end-d.pos)*d.channels)
	for f := d.pos; f < end; f++ {
		for c := 0; c < d.channels; c++ {
			out = append(out, float32(f))
		}
	}
	d.pos = end
	return out, nil
}

// spyPredictor returns [first frame, frame count] per call.
type spyPredictor struct {
	mu    sync.Mutex
	calls [][2]int
	fail  int
}

func (p *spyPredictor) OutputWidth() int { return 2 }

func (p *spyPredictor) PredictAudio(buf []float32, length, channels, sampleRate int) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 && len(p.calls)+1 == p.fail {
		return nil, errors.New("boom")
	}
	if len(buf) != length*channels {
		return nil, errors.New("buffer size mismatch")
	}
	// Second channel must repeat the first in planar layout.
	if channels == 2 && buf[length] != buf[0] {
		return nil, errors.New("not planar")
	}
	p.calls = append(p.calls, [2]int{int(buf[0]), length})
	return []float32{buf[0], float32(length)}, nil
}

func smallOptions() Options {
	return Options{WindowFrames: 100, FeatureWindow: 16, FeatureHop: 4}
}

func TestRunFeedsOverlappingWindows(t *testing.T) {
	dec := &rampDecoder{frames: 250, channels: 2, reported: 250}
	p := &spyPredictor{}
	var progress []float32
	opts := smallOptions()
	opts.OnProgress = func(v float32) { progress = append(progress, v) }

	res, err := Run(context.Background(), dec, p, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantCalls := [][2]int{{0, 112}, {100, 112}, {200, 50}}
	if !reflect.DeepEqual(p.calls, wantCalls) {
		t.Fatalf("calls = %v, want %v", p.calls, wantCalls)
	}
	wantRows := [][]float32{{0, 112}, {100, 112}, {200, 50}}
	if !reflect.DeepEqual(res.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", res.Rows, wantRows)
	}
	if res.Segments != 3 || res.Channels != 2 || res.SampleRate != 8000 {
		t.Fatalf("unexpected result metadata: %+v", res)
	}
	if !reflect.DeepEqual(progress, []float32{0, 0.5, 1}) {
		t.Fatalf("progress = %v", progress)
	}
}

func TestRunUnknownLength(t *testing.T) {
	dec := &rampDecoder{frames: 80, channels: 1}
	p := &spyPredictor{}
	var last float32
	opts := smallOptions()
	opts.OnProgress = func(v float32) { last = v }
	res, err := Run(context.Background(), dec, p, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][1] != 80 {
		t.Fatalf("rows = %v", res.Rows)
	}
	if last != 1 {
		t.Fatalf("single window progress = %f, want 1", last)
	}
}

func TestRunPredictorError(t *testing.T) {
	dec := &rampDecoder{frames: 250, channels: 1, reported: 250}
	p := &spyPredictor{fail: 2}
	_, err := Run(context.Background(), dec, p, smallOptions())
	if err == nil || !strings.Contains(err.Error(), "window 1") {
		t.Fatalf("Run error = %v, want failure at window 1", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dec := &rampDecoder{frames: 1000, channels: 1, reported: 1000}
	_, err := Run(ctx, dec, &spyPredictor{}, smallOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}

func TestRunEmptyAudio(t *testing.T) {
	dec := &rampDecoder{channels: 1}
	res, err := Run(context.Background(), dec, &spyPredictor{}, smallOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Fatalf("rows = %v, want empty", res.Rows)
	}
}

type mfccPredictor struct{ t *mfcc.Transform }

func (m mfccPredictor) OutputWidth() int { return m.t.Width() }

func (m mfccPredictor) PredictAudio(buf []float32, length, channels, rate int) ([]float32, error) {
	rows, err := m.t.Process(buf, length, channels, rate)
	if err != nil {
		return nil, err
	}
	return mfcc.Flatten(rows), nil
}

func TestRunWAVThroughMFCC(t *testing.T) {
	tr, err := mfcc.New(mfcc.Config{SampleRate: 8000, NFFT: 256, HopLength: 64, NMels: 10, NMFCC: 2})
	if err != nil {
		t.Fatal(err)
	}
	const frames = 3000
	path := audiofiletest.WriteWAV(t, "in.wav", 8000, 2, audiofiletest.Stereo(frames, 0.3, 0.1))
	dec, err := audiofile.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	opts := Options{WindowFrames: 1024, FeatureWindow: 256, FeatureHop: 64}
	res, err := Run(context.Background(), dec, mfccPredictor{tr}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Windows [0,1216) [1024,2240) [2048,3000): 16 + 16 + 11 frames.
	if res.Segments != 3 || len(res.Rows) != 43 {
		t.Fatalf("segments=%d rows=%d, want 3 and 43", res.Segments, len(res.Rows))
	}
	for _, row := range res.Rows {
		if len(row) != 2 {
			t.Fatalf("row width %d, want 2", len(row))
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, [][]float32{{1, 2}, {3.5, -4}}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[[1,2],[3.5,-4]]" {
		t.Fatalf("WriteJSON = %s", got)
	}
	buf.Reset()
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Fatalf("WriteJSON(nil) = %s", got)
	}
}

func TestRows(t *testing.T) {
	tests := []struct {
		name  string
		flat  []float32
		width int
		want  [][]float32
	}{
		{"even", []float32{1, 2, 3, 4}, 2, [][]float32{{1, 2}, {3, 4}}},
		{"short tail kept", []float32{1, 2, 3}, 2, [][]float32{{1, 2}, {3}}},
		{"empty", []float32{}, 2, [][]float32{}},
		{"zero width", []float32{1, 2}, 0, [][]float32{{1}, {2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rows(tt.flat, tt.width); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Rows = %v, want %v", got, tt.want)
			}
		})
	}
}
