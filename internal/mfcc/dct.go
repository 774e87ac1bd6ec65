package mfcc

import "math"

// dctMatrix returns the orthonormal DCT-II basis as [nMFCC][nMels].
func dctMatrix(nMFCC, nMels int) [][]float64 {
	scale := math.Sqrt(2.0 / float64(nMels))
	m := make([][]float64, nMFCC)
	for k := range m {
		row := make([]float64, nMels)
		for n := range row {
			row[n] = math.Cos(math.Pi/float64(nMels)*(float64(n)+0.5)*float64(k)) * scale
		}
		if k == 0 {
			for n := range row {
				row[n] /= math.Sqrt2
			}
		}
		m[k] = row
	}
	return m
}

// amplitudeToDB converts power values to decibels in place and floors
// every value at max-topDB. topDB < 0 skips the floor.
func amplitudeToDB(frames [][]float64, topDB float64) {
	maxDB := math.Inf(-1)
	for _, f := range frames {
		for i, v := range f {
			db := 10 * math.Log10(math.Max(v, 1e-10))
			f[i] = db
			if db > maxDB {
				maxDB = db
			}
		}
	}
	if topDB < 0 {
		return
	}
	floor := maxDB - topDB
	for _, f := range frames {
		for i, v := range f {
			if v < floor {
				f[i] = floor
			}
		}
	}
}
