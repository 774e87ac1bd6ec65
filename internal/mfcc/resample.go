package mfcc

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Downmix averages a planar buffer of channels x length samples into mono.
func Downmix(buf []float32, length, channels int) []float32 {
	mono := make([]float32, length)
	if channels == 1 {
		copy(mono, buf[:length])
		return mono
	}
	inv := 1 / float32(channels)
	for c := 0; c < channels; c++ {
		ch := buf[c*length : (c+1)*length]
		for i, v := range ch {
			mono[i] += v
		}
	}
	for i := range mono {
		mono[i] *= inv
	}
	return mono
}

// Resample converts mono audio between sample rates. The result holds
// ceil(len(mono)*to/from) samples, filter tail included. Equal rates
// return the input unchanged.
func Resample(mono []float32, from, to int) ([]float32, error) {
	if from == to || len(mono) == 0 {
		return mono, nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("mfcc: create resampler %d->%d: %w", from, to, err)
	}
	out, err := r.ProcessFloat32(mono)
	if err != nil {
		return nil, fmt.Errorf("mfcc: resample %d->%d: %w", from, to, err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("mfcc: flush resampler %d->%d: %w", from, to, err)
	}

	want := resampledLength(len(mono), from, to)
	res := make([]float32, want)
	n := copy(res, out)
	for i := 0; n < want && i < len(tail); i, n = i+1, n+1 {
		res[n] = float32(tail[i])
	}
	return res, nil
}

// resampledLength is ceil(n*to/from).
func resampledLength(n, from, to int) int {
	return int((int64(n)*int64(to) + int64(from) - 1) / int64(from))
}
