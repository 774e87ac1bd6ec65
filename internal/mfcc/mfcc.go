package mfcc

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Transform holds the precomputed window, filterbank and DCT basis for a
// Config. It is safe for concurrent use.
type Transform struct {
	cfg    Config
	window []float64
	mel    []melFilter
	dct    [][]float64

	scratch sync.Pool
}

type frameScratch struct {
	fft    *fourier.FFT
	frame  []float64
	coeffs []complex128
	power  []float64
}

// New validates cfg (after defaults) and precomputes the transform.
func New(cfg Config) (*Transform, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nFreqs := cfg.NFFT/2 + 1
	t := &Transform{
		cfg:    cfg,
		window: paddedWindow(cfg.WinLength, cfg.NFFT),
		mel:    melFilterBank(cfg.NMels, nFreqs, cfg.SampleRate, cfg.FMin, cfg.FMax),
		dct:    dctMatrix(cfg.NMFCC, cfg.NMels),
	}
	t.scratch.New = func() any {
		return &frameScratch{
			fft:    fourier.NewFFT(cfg.NFFT),
			frame:  make([]float64, cfg.NFFT),
			coeffs: make([]complex128, nFreqs),
			power:  make([]float64, nFreqs),
		}
	}
	return t, nil
}

// Config returns the effective configuration.
func (t *Transform) Config() Config { return t.cfg }

// Width is the number of coefficients per output frame.
func (t *Transform) Width() int { return t.cfg.NMFCC }

// NumFrames reports how many frames Compute yields for n mono samples.
func (t *Transform) NumFrames(n int) int {
	if t.cfg.Center {
		if n <= t.cfg.NFFT/2 {
			return 0
		}
		n += 2 * (t.cfg.NFFT / 2)
	}
	if n < t.cfg.NFFT {
		return 0
	}
	return 1 + (n-t.cfg.NFFT)/t.cfg.HopLength
}

// Compute returns MFCC frames for a mono signal already at the configured
// sample rate. The result is [frames][NMFCC].
func (t *Transform) Compute(mono []float32) [][]float32 {
	cfg := t.cfg
	x := mono
	if cfg.Center {
		x = reflectPad(mono, cfg.NFFT/2)
	}
	if len(x) < cfg.NFFT {
		return [][]float32{}
	}
	numFrames := 1 + (len(x)-cfg.NFFT)/cfg.HopLength

	s := t.scratch.Get().(*frameScratch)
	defer t.scratch.Put(s)

	melFrames := make([][]float64, numFrames)
	for f := 0; f < numFrames; f++ {
		start := f * cfg.HopLength
		for i := range s.frame {
			s.frame[i] = float64(x[start+i]) * t.window[i]
		}
		s.coeffs = s.fft.Coefficients(s.coeffs, s.frame)
		for k, c := range s.coeffs {
			s.power[k] = real(c)*real(c) + imag(c)*imag(c)
		}
		mel := make([]float64, cfg.NMels)
		for m, filt := range t.mel {
			mel[m] = filt.apply(s.power)
		}
		melFrames[f] = mel
	}

	amplitudeToDB(melFrames, cfg.TopDB)

	out := make([][]float32, numFrames)
	for f, mel := range melFrames {
		row := make([]float32, cfg.NMFCC)
		for k, basis := range t.dct {
			sum := 0.0
			for m, v := range mel {
				sum += v * basis[m]
			}
			row[k] = float32(sum)
		}
		out[f] = row
	}
	return out
}

// Process runs the full model on a planar buffer: downmix, resample to
// the configured rate, then Compute.
func (t *Transform) Process(buf []float32, length, channels, sampleRate int) ([][]float32, error) {
	if length <= 0 || channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("mfcc: length, channels and sample rate must be positive (got %d, %d, %d)",
			length, channels, sampleRate)
	}
	if length > len(buf)/channels {
		return nil, fmt.Errorf("mfcc: buffer holds %d samples, need %d x %d", len(buf), channels, length)
	}
	mono := Downmix(buf, length, channels)
	mono, err := Resample(mono, sampleRate, t.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	return t.Compute(mono), nil
}

// Flatten joins frames row by row.
func Flatten(frames [][]float32) []float32 {
	if len(frames) == 0 {
		return []float32{}
	}
	width := len(frames[0])
	flat := make([]float32, 0, len(frames)*width)
	for _, row := range frames {
		flat = append(flat, row...)
	}
	return flat
}
