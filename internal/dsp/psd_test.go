package dsp

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestDerive(t *testing.T) {
	testCases := []struct {
		name         string
		sampleRate   uint64
		rbw          uint64
		overlap      float64
		window       WindowType
		wantNperseg  int
		wantNoverlap int
	}{
		// ENBW(hamming)·20e6/5000 ≈ 5411 → next power of two 8192
		{"reference acquisition", 20_000_000, 5000, 0.5, Hamming, 8192, 4096},
		// 1e6/1e3 = 1000 → 1024
		{"rectangular 1k rbw", 1_000_000, 1000, 0, Rectangular, 1024, 0},
		{"hanning", 2_000_000, 1000, 0.25, Hanning, 4096, 1024},
		{"blackman", 2_000_000, 1000, 0.75, Blackman, 4096, 3072},
		{"rbw equals sample rate", 1_000_000, 1_000_000, 0, Rectangular, 1, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Derive(tc.sampleRate, tc.rbw, tc.overlap, tc.window)
			if err != nil {
				t.Fatalf("Derive: %v", err)
			}
			if cfg.Nperseg != tc.wantNperseg {
				t.Errorf("Nperseg = %d, want %d", cfg.Nperseg, tc.wantNperseg)
			}
			if cfg.Noverlap != tc.wantNoverlap {
				t.Errorf("Noverlap = %d, want %d", cfg.Noverlap, tc.wantNoverlap)
			}
		})
	}
}

// For any valid input, nperseg must be a power of two no smaller than
// the ENBW-corrected resolution requirement, and noverlap must stay
// below nperseg.
func TestDerive_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		fs := uint64(2_000_000 + rng.Intn(18_000_000))
		rbw := uint64(1 + rng.Intn(int(fs)))
		overlap := rng.Float64()
		window := WindowType(rng.Intn(4))

		cfg, err := Derive(fs, rbw, overlap, window)
		if err != nil {
			t.Fatalf("Derive(fs=%d, rbw=%d): %v", fs, rbw, err)
		}

		if cfg.Nperseg&(cfg.Nperseg-1) != 0 {
			t.Fatalf("Nperseg %d is not a power of two", cfg.Nperseg)
		}
		if float64(cfg.Nperseg) < window.ENBW()*float64(fs)/float64(rbw) {
			t.Fatalf("Nperseg %d below resolution requirement for fs=%d rbw=%d", cfg.Nperseg, fs, rbw)
		}
		if cfg.Noverlap != int(float64(cfg.Nperseg)*overlap) {
			t.Fatalf("Noverlap %d does not match floor(nperseg*overlap)", cfg.Noverlap)
		}
		if cfg.Noverlap >= cfg.Nperseg {
			t.Fatalf("Noverlap %d >= Nperseg %d", cfg.Noverlap, cfg.Nperseg)
		}
	}
}

func TestDerive_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		rbw     uint64
		overlap float64
		wantErr error
	}{
		{"overlap one", 1000, 1.0, ErrInvalidOverlap},
		{"overlap negative", 1000, -0.1, ErrInvalidOverlap},
		{"rbw above sample rate", 2_000_000, 0.5, ErrResolutionTooCoarse},
		{"rbw zero", 0, 0.5, ErrResolutionTooCoarse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Derive(1_000_000, tc.rbw, tc.overlap, Hamming)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Derive error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestConfig_Frequencies(t *testing.T) {
	cfg := Config{Nperseg: 8, Noverlap: 0, Window: Rectangular, SampleRateHz: 8000}
	freqs := cfg.Frequencies(100_000)

	if len(freqs) != 8 {
		t.Fatalf("got %d frequencies, want 8", len(freqs))
	}
	if freqs[0] != 96_000 {
		t.Errorf("first bin = %g, want 96000", freqs[0])
	}
	if freqs[4] != 100_000 {
		t.Errorf("center bin = %g, want 100000", freqs[4])
	}
	for i := 1; i < len(freqs); i++ {
		if freqs[i]-freqs[i-1] != 1000 {
			t.Fatalf("bin spacing at %d is %g, want 1000", i, freqs[i]-freqs[i-1])
		}
	}
}

// A pure complex exponential must concentrate its power within one bin
// of the expected index round((f0 - (center - fs/2)) / (fs/nperseg)).
func TestWelch_PureTonePeak(t *testing.T) {
	const (
		fs      = 8192.0
		nperseg = 256
	)

	for _, window := range []WindowType{Rectangular, Hamming, Hanning, Blackman} {
		t.Run(window.String(), func(t *testing.T) {
			cfg := Config{Nperseg: nperseg, Noverlap: nperseg / 2, Window: window, SampleRateHz: fs}
			w, err := NewWelch(cfg)
			if err != nil {
				t.Fatalf("NewWelch: %v", err)
			}

			// Tone at +1024 Hz baseband offset, aligned to a bin.
			const f0 = 1024.0
			iq := make([]complex128, 4*nperseg)
			for k := range iq {
				phase := 2 * math.Pi * f0 * float64(k) / fs
				iq[k] = complex(math.Cos(phase), math.Sin(phase))
			}

			pxx, err := w.Compute(iq)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if len(pxx) != nperseg {
				t.Fatalf("got %d bins, want %d", len(pxx), nperseg)
			}

			peak := 0
			for i, p := range pxx {
				if p > pxx[peak] {
					peak = i
				}
			}

			want := int(math.Round((f0 + fs/2) / (fs / nperseg)))
			if d := peak - want; d < -1 || d > 1 {
				t.Errorf("peak at bin %d, want within one bin of %d", peak, want)
			}
		})
	}
}

// Parseval check: for a full-scale tone the integrated two-sided
// density must equal the signal power (1.0) regardless of windowing.
func TestWelch_PowerNormalization(t *testing.T) {
	const (
		fs      = 4096.0
		nperseg = 128
	)

	cfg := Config{Nperseg: nperseg, Noverlap: 64, Window: Hamming, SampleRateHz: fs}
	w, err := NewWelch(cfg)
	if err != nil {
		t.Fatalf("NewWelch: %v", err)
	}

	const f0 = 512.0 // bin-aligned
	iq := make([]complex128, 8*nperseg)
	for k := range iq {
		phase := 2 * math.Pi * f0 * float64(k) / fs
		iq[k] = complex(math.Cos(phase), math.Sin(phase))
	}

	pxx, err := w.Compute(iq)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	var total float64
	binWidth := fs / nperseg
	for _, p := range pxx {
		total += p * binWidth
	}

	// ENBW spreads a tone over more than one bin but preserves total
	// power up to the window's amplitude normalization.
	if math.Abs(total-1.0) > 0.05 {
		t.Errorf("integrated PSD = %g, want 1.0 ± 0.05", total)
	}
}

func TestWelch_InsufficientSamples(t *testing.T) {
	cfg := Config{Nperseg: 256, Noverlap: 0, Window: Rectangular, SampleRateHz: 8192}
	w, err := NewWelch(cfg)
	if err != nil {
		t.Fatalf("NewWelch: %v", err)
	}

	if _, err = w.Compute(make([]complex128, 255)); !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("Compute error = %v, want ErrInsufficientSamples", err)
	}
}

func TestNewWelch_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
	}{
		{"nperseg not power of two", Config{Nperseg: 100, SampleRateHz: 8192}},
		{"nperseg zero", Config{Nperseg: 0, SampleRateHz: 8192}},
		{"noverlap at nperseg", Config{Nperseg: 128, Noverlap: 128, SampleRateHz: 8192}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewWelch(tc.cfg); err == nil {
				t.Error("Expected error for invalid Welch config")
			}
		})
	}
}

func TestBytesToIQ(t *testing.T) {
	src := []byte{127, 0, 0, 129, 64, 192} // (127,0) (0,-127) (64,-64)
	dst := make([]complex128, 3)

	if n := BytesToIQ(dst, src); n != 3 {
		t.Fatalf("BytesToIQ returned %d, want 3", n)
	}

	want := []complex128{
		complex(127.0/128.0, 0),
		complex(0, -127.0/128.0),
		complex(64.0/128.0, -64.0/128.0),
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, dst[i], want[i])
		}
	}

	// Odd trailing byte is ignored.
	if n := BytesToIQ(dst, []byte{1, 2, 3}); n != 1 {
		t.Errorf("BytesToIQ with odd input returned %d, want 1", n)
	}
}
