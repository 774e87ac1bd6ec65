// Package mfcc computes mel-frequency cepstral coefficients from raw PCM.
//
// The pipeline matches torchaudio's MFCC transform with the HTK mel scale,
// a periodic Hann window, power spectrogram input, amplitude-to-dB with a
// top_db floor and an orthonormal DCT-II:
//
//	planar PCM -> mono -> resample -> |STFT|^2 -> mel -> dB -> DCT
//
// Default parameters reproduce the podcast MFCC model:
//
//	SampleRate: 44100
//	NMFCC:      2
//	NFFT:       65536
//	WinLength:  65536
//	HopLength:  16384
//	NMels:      23
//	TopDB:      80
//	Center:     false
package mfcc

import (
	"errors"
	"fmt"
)

const (
	DefaultSampleRate = 44100
	DefaultNMFCC      = 2
	DefaultNFFT       = 1 << 16
	DefaultNMels      = 23
	DefaultTopDB      = 80.0
)

var ErrConfig = errors.New("mfcc: invalid config")

// Config controls MFCC extraction. Zero fields take defaults in
// WithDefaults. A negative TopDB disables the dynamic range floor.
type Config struct {
	SampleRate int     `yaml:"sample_rate" json:"sample_rate"`
	NMFCC      int     `yaml:"n_mfcc" json:"n_mfcc"`
	NFFT       int     `yaml:"n_fft" json:"n_fft"`
	WinLength  int     `yaml:"win_length" json:"win_length"`
	HopLength  int     `yaml:"hop_length" json:"hop_length"`
	NMels      int     `yaml:"n_mels" json:"n_mels"`
	FMin       float64 `yaml:"f_min" json:"f_min"`
	FMax       float64 `yaml:"f_max" json:"f_max"`
	TopDB      float64 `yaml:"top_db" json:"top_db"`
	Center     bool    `yaml:"center" json:"center"`
}

// DefaultConfig returns the podcast model parameters.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.NMFCC == 0 {
		c.NMFCC = DefaultNMFCC
	}
	if c.NFFT == 0 {
		c.NFFT = DefaultNFFT
	}
	if c.WinLength == 0 {
		c.WinLength = c.NFFT
	}
	if c.HopLength == 0 {
		c.HopLength = c.WinLength / 4
	}
	if c.NMels == 0 {
		c.NMels = DefaultNMels
	}
	if c.FMax == 0 {
		c.FMax = float64(c.SampleRate / 2)
	}
	if c.TopDB == 0 {
		c.TopDB = DefaultTopDB
	}
	return c
}

// Validate reports the first inconsistent field.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample_rate must be positive, got %d", ErrConfig, c.SampleRate)
	case c.NFFT <= 0:
		return fmt.Errorf("%w: n_fft must be positive, got %d", ErrConfig, c.NFFT)
	case c.WinLength <= 0 || c.WinLength > c.NFFT:
		return fmt.Errorf("%w: win_length must be in (0, n_fft], got %d", ErrConfig, c.WinLength)
	case c.HopLength <= 0:
		return fmt.Errorf("%w: hop_length must be positive, got %d", ErrConfig, c.HopLength)
	case c.NMels <= 0:
		return fmt.Errorf("%w: n_mels must be positive, got %d", ErrConfig, c.NMels)
	case c.NMFCC <= 0 || c.NMFCC > c.NMels:
		return fmt.Errorf("%w: n_mfcc must be in (0, n_mels], got %d", ErrConfig, c.NMFCC)
	case c.FMin < 0 || c.FMax <= c.FMin:
		return fmt.Errorf("%w: need 0 <= f_min < f_max, got %g..%g", ErrConfig, c.FMin, c.FMax)
	case c.FMax > float64(c.SampleRate)/2:
		return fmt.Errorf("%w: f_max %g above nyquist", ErrConfig, c.FMax)
	}
	return nil
}
