package mfcc

import "math"

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilter is one triangular filter stored sparsely from its first
// non-zero bin.
type melFilter struct {
	start   int
	weights []float64
}

// melFilterBank builds an HTK triangular filterbank over the linear
// frequency grid linspace(0, sampleRate/2, nFreqs), interpolating the
// slopes the way torchaudio's melscale_fbanks does (norm=None).
func melFilterBank(nMels, nFreqs, sampleRate int, fMin, fMax float64) []melFilter {
	freqs := linspace(0, float64(sampleRate/2), nFreqs)
	melPts := linspace(hzToMel(fMin), hzToMel(fMax), nMels+2)
	fPts := make([]float64, len(melPts))
	for i, m := range melPts {
		fPts[i] = melToHz(m)
	}

	bank := make([]melFilter, nMels)
	for m := 0; m < nMels; m++ {
		lo, mid, hi := fPts[m], fPts[m+1], fPts[m+2]
		dense := make([]float64, nFreqs)
		first, last := -1, -1
		for k, f := range freqs {
			down := (f - lo) / (mid - lo)
			up := (hi - f) / (hi - mid)
			w := math.Max(0, math.Min(down, up))
			if w > 0 {
				if first < 0 {
					first = k
				}
				last = k
			}
			dense[k] = w
		}
		if first < 0 {
			continue
		}
		bank[m] = melFilter{start: first, weights: dense[first : last+1]}
	}
	return bank
}

func (f melFilter) apply(power []float64) float64 {
	sum := 0.0
	for i, w := range f.weights {
		sum += w * power[f.start+i]
	}
	return sum
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}
