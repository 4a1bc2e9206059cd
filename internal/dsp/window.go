// Package dsp implements the signal processing stage: window
// functions, Welch power spectral density estimation, unit scaling and
// raw IQ conversion.
package dsp

import (
	"fmt"
	"math"
)

// WindowType selects the taper applied to each Welch segment.
//
// See https://wikipedia.org/wiki/Window_function
type WindowType int

const (
	Rectangular WindowType = iota
	Hamming
	Hanning
	Blackman
)

var windowNames = map[WindowType]string{
	Rectangular: "rectangular",
	Hamming:     "hamming",
	Hanning:     "hanning",
	Blackman:    "blackman",
}

func (w WindowType) String() string {
	if s, ok := windowNames[w]; ok {
		return s
	}
	return fmt.Sprintf("window(%d)", int(w))
}

// MarshalText implements encoding.TextMarshaler for JSON and YAML.
func (w WindowType) MarshalText() ([]byte, error) {
	s, ok := windowNames[w]
	if !ok {
		return nil, fmt.Errorf("unknown window type %d", int(w))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "hann" is
// accepted as an alias for hanning.
func (w *WindowType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "rectangular", "":
		*w = Rectangular
	case "hamming":
		*w = Hamming
	case "hanning", "hann":
		*w = Hanning
	case "blackman":
		*w = Blackman
	default:
		return fmt.Errorf("unknown window type %q", text)
	}
	return nil
}

// ENBW returns the Equivalent Noise Bandwidth factor of the window,
// in bins. It relates the requested resolution bandwidth to the FFT
// bin spacing: rbw = ENBW * fs / nperseg.
func (w WindowType) ENBW() float64 {
	switch w {
	case Hamming:
		// 1 + (a1/a0)^2/2 for a0 = 25/46
		return 1.3528
	case Hanning:
		return 1.5
	case Blackman:
		return 1.7268
	default:
		return 1.0
	}
}

// Coefficients returns the n window coefficients (periodic form, as
// used for spectral estimation).
func (w WindowType) Coefficients(n int) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = 1.0
	}

	coef := 2.0 * math.Pi / float64(n)
	switch w {
	case Hamming:
		cosSum(buf, 25.0/46.0, coef)
	case Hanning:
		cosSum(buf, 0.5, coef)
	case Blackman:
		for i := range buf {
			buf[i] *= 0.42 - 0.5*math.Cos(coef*float64(i)) + 0.08*math.Cos(2.0*coef*float64(i))
		}
	}

	return buf
}

// cosSum applies a cosine sum window following a0.
func cosSum(buf []float64, a0, coef float64) {
	a1 := 1.0 - a0
	for i := range buf {
		buf[i] *= a0 - a1*math.Cos(coef*float64(i))
	}
}
