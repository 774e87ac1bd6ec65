package mfcc

import "math"

// hannWindow returns a periodic Hann window of length n, the torch default.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// paddedWindow centres a win-length Hann window inside nfft samples.
func paddedWindow(win, nfft int) []float64 {
	full := make([]float64, nfft)
	copy(full[(nfft-win)/2:], hannWindow(win))
	return full
}

// reflectPad mirrors pad samples on both ends, excluding the edge sample.
// It returns nil when x is too short to reflect.
func reflectPad(x []float32, pad int) []float32 {
	n := len(x)
	if pad == 0 {
		return x
	}
	if n <= pad {
		return nil
	}
	out := make([]float32, n+2*pad)
	for i := 0; i < pad; i++ {
		out[i] = x[pad-i]
		out[pad+n+i] = x[n-2-i]
	}
	copy(out[pad:], x)
	return out
}
