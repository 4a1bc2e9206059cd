package engine

import (
	"errors"
	"testing"

	"github.com/rfsense/psd-sensor/internal/dsp"
)

func TestDesiredConfig_Derive(t *testing.T) {
	desired := DesiredConfig{
		CenterFreqHz:          98_000_000,
		SpanHz:                10_000_000,
		ResolutionBandwidthHz: 5000,
		SampleRateHz:          20_000_000,
		Overlap:               0.5,
		Window:                dsp.Hamming,
		Scale:                 dsp.ScaleDBm,
		LNAGain:               16,
		VGAGain:               20,
		AmpEnabled:            true,
		PPMError:              -5,
	}

	cfg, err := desired.Derive()
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	if cfg.PSD.Nperseg != 8192 {
		t.Errorf("Nperseg = %d, want 8192", cfg.PSD.Nperseg)
	}
	if cfg.PSD.Noverlap != 4096 {
		t.Errorf("Noverlap = %d, want 4096", cfg.PSD.Noverlap)
	}
	if cfg.Ring.TotalBytes != 40_000_000 {
		t.Errorf("Ring.TotalBytes = %d, want 40000000", cfg.Ring.TotalBytes)
	}
	if cfg.Ring.Size != 80_000_000 {
		t.Errorf("Ring.Size = %d, want 80000000", cfg.Ring.Size)
	}

	hw := cfg.Hardware
	if hw.SampleRateHz != desired.SampleRateHz || hw.CenterFreqHz != desired.CenterFreqHz {
		t.Errorf("hardware tuning = %d/%d, want %d/%d",
			hw.CenterFreqHz, hw.SampleRateHz, desired.CenterFreqHz, desired.SampleRateHz)
	}
	if hw.LNAGain != 16 || hw.VGAGain != 20 || !hw.AmpEnabled || hw.PPMError != -5 {
		t.Errorf("hardware gains not carried over: %+v", hw)
	}
}

func TestDesiredConfig_DeriveErrors(t *testing.T) {
	base := DesiredConfig{
		CenterFreqHz:          98_000_000,
		ResolutionBandwidthHz: 5000,
		SampleRateHz:          20_000_000,
		Overlap:               0.5,
	}

	tests := []struct {
		name   string
		mutate func(*DesiredConfig)
	}{
		{"zero sample rate", func(c *DesiredConfig) { c.SampleRateHz = 0 }},
		{"zero center frequency", func(c *DesiredConfig) { c.CenterFreqHz = 0 }},
		{"spectrum extends below 0 Hz", func(c *DesiredConfig) { c.CenterFreqHz = 1_000_000 }},
		{"span wider than sample rate", func(c *DesiredConfig) { c.SpanHz = 30_000_000 }},
		{"zero rbw", func(c *DesiredConfig) { c.ResolutionBandwidthHz = 0 }},
		{"negative overlap", func(c *DesiredConfig) { c.Overlap = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desired := base
			tt.mutate(&desired)
			if _, err := desired.Derive(); err == nil {
				t.Error("Derive succeeded, want error")
			}
		})
	}
}

func TestDesiredConfig_WindowTooShort(t *testing.T) {
	// Hamming needs nperseg 2048 at rbw 1 Hz, but one second at
	// 1024 S/s holds only 1024 samples.
	desired := DesiredConfig{
		CenterFreqHz:          1_000_000,
		ResolutionBandwidthHz: 1,
		SampleRateHz:          1024,
		Overlap:               0.5,
		Window:                dsp.Hamming,
	}

	_, err := desired.Derive()
	if !errors.Is(err, ErrWindowTooShort) {
		t.Errorf("Derive error = %v, want ErrWindowTooShort", err)
	}
}
