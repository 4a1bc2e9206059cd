package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

var (
	// ErrInvalidOverlap is returned when the requested segment overlap
	// is outside [0, 1). An overlap of 1 would mean a zero step size.
	ErrInvalidOverlap = errors.New("segment overlap must be in [0, 1)")

	// ErrResolutionTooCoarse is returned when the requested resolution
	// bandwidth cannot be met with at least one FFT bin.
	ErrResolutionTooCoarse = errors.New("resolution bandwidth exceeds the sample rate")

	// ErrInsufficientSamples is returned when the input window is
	// shorter than one segment.
	ErrInsufficientSamples = errors.New("input window is shorter than one segment")
)

// Config holds the derived Welch parameters for one acquisition cycle.
// Invariants: Nperseg is a power of two and Noverlap < Nperseg.
type Config struct {
	Nperseg      int
	Noverlap     int
	Window       WindowType
	SampleRateHz uint64
}

// Derive computes the Welch parameters from the operator intent.
// Nperseg is the smallest power of two whose bin spacing, corrected by
// the window's ENBW, is at least as fine as the requested resolution
// bandwidth: nperseg = 2^ceil(log2(ENBW * fs / rbw)). The resolution
// is never silently downgraded to a coarser value.
func Derive(sampleRateHz, rbwHz uint64, overlap float64, window WindowType) (Config, error) {
	if overlap < 0 || overlap >= 1 || math.IsNaN(overlap) {
		return Config{}, fmt.Errorf("%w: %v given", ErrInvalidOverlap, overlap)
	}
	if rbwHz == 0 || rbwHz > sampleRateHz {
		return Config{}, fmt.Errorf("%w: rbw=%d Hz, sample rate=%d Hz", ErrResolutionTooCoarse, rbwHz, sampleRateHz)
	}

	required := window.ENBW() * float64(sampleRateHz) / float64(rbwHz)
	nperseg := nextPowerOfTwo(int(math.Ceil(required)))

	return Config{
		Nperseg:      nperseg,
		Noverlap:     int(float64(nperseg) * overlap),
		Window:       window,
		SampleRateHz: sampleRateHz,
	}, nil
}

// BinWidth returns the frequency spacing of the PSD bins in Hz.
func (c Config) BinWidth() float64 {
	return float64(c.SampleRateHz) / float64(c.Nperseg)
}

// Frequencies maps PSD bins to absolute frequencies: bin k of the
// two-sided, shifted spectrum sits at center - fs/2 + k*fs/nperseg.
func (c Config) Frequencies(centerFreqHz uint64) []float64 {
	freqs := make([]float64, c.Nperseg)
	start := float64(centerFreqHz) - float64(c.SampleRateHz)/2
	width := c.BinWidth()
	for k := range freqs {
		freqs[k] = start + float64(k)*width
	}
	return freqs
}

// Welch estimates the power spectral density of complex IQ windows via
// averaged periodograms of overlapping, windowed segments. The
// instance caches the FFT plan and window coefficients; it is not safe
// for concurrent use.
type Welch struct {
	cfg Config

	fft    *fourier.CmplxFFT
	coeffs []float64
	norm   float64 // 1 / (fs * sum(w^2))

	segment []complex128
	spec    []complex128
	rawPxx  []float64
}

// NewWelch prepares an estimator for the given configuration.
func NewWelch(cfg Config) (*Welch, error) {
	if cfg.Nperseg <= 0 || cfg.Nperseg&(cfg.Nperseg-1) != 0 {
		return nil, fmt.Errorf("nperseg must be a positive power of two: %d given", cfg.Nperseg)
	}
	if cfg.Noverlap < 0 || cfg.Noverlap >= cfg.Nperseg {
		return nil, fmt.Errorf("noverlap %d must be below nperseg %d", cfg.Noverlap, cfg.Nperseg)
	}

	coeffs := cfg.Window.Coefficients(cfg.Nperseg)

	var sumSq float64
	for _, w := range coeffs {
		sumSq += w * w
	}

	return &Welch{
		cfg:     cfg,
		fft:     fourier.NewCmplxFFT(cfg.Nperseg),
		coeffs:  coeffs,
		norm:    1.0 / (float64(cfg.SampleRateHz) * sumSq),
		segment: make([]complex128, cfg.Nperseg),
		spec:    make([]complex128, cfg.Nperseg),
		rawPxx:  make([]float64, cfg.Nperseg),
	}, nil
}

// Compute returns the two-sided power spectral density estimate of iq
// in linear units, FFT-shifted so bins run in ascending frequency
// order from center - fs/2. The result slice is freshly allocated on
// each call.
func (w *Welch) Compute(iq []complex128) ([]float64, error) {
	n := w.cfg.Nperseg
	if len(iq) < n {
		return nil, fmt.Errorf("%w: %d samples given, %d required", ErrInsufficientSamples, len(iq), n)
	}

	step := n - w.cfg.Noverlap
	segments := 1 + (len(iq)-n)/step

	clear(w.rawPxx)
	for s := 0; s < segments; s++ {
		in := iq[s*step : s*step+n]
		for i := range w.segment {
			w.segment[i] = in[i] * complex(w.coeffs[i], 0)
		}

		w.fft.Coefficients(w.spec, w.segment)

		for i, c := range w.spec {
			mag := cmplx.Abs(c)
			w.rawPxx[i] += mag * mag
		}
	}

	scale := w.norm / float64(segments)
	pxx := make([]float64, n)
	half := n / 2
	for i := range pxx {
		// Shift so negative frequencies come first.
		pxx[i] = w.rawPxx[(i+half)%n] * scale
	}

	return pxx, nil
}

func nextPowerOfTwo(v int) int {
	if v <= 1 {
		return 1
	}
	n := 1
	for n < v {
		n <<= 1
	}
	return n
}
