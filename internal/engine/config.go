// Package engine orchestrates the acquisition pipeline: command
// intake, configuration derivation and the supervising watchdog loop
// that owns the device lifecycle.
package engine

import (
	"errors"
	"fmt"

	"github.com/rfsense/psd-sensor/internal/dsp"
	"github.com/rfsense/psd-sensor/internal/sdr"
)

var (
	// ErrWindowTooShort is returned when the one-second capture window
	// cannot hold even a single Welch segment.
	ErrWindowTooShort = errors.New("capture window shorter than one segment")
)

// DesiredConfig is the operator-facing acquisition intent, received as
// a JSON command on the message channel. It is immutable once derived.
type DesiredConfig struct {
	CenterFreqHz          uint64         `json:"center_freq"`
	SpanHz                uint64         `json:"span"`
	ResolutionBandwidthHz uint64         `json:"rbw"`
	SampleRateHz          uint64         `json:"sample_rate"`
	Overlap               float64        `json:"overlap"`
	Window                dsp.WindowType `json:"window_type"`
	Scale                 dsp.ScaleKind  `json:"scale"`
	LNAGain               int            `json:"lna_gain"`
	VGAGain               int            `json:"vga_gain"`
	AmpEnabled            bool           `json:"amp_enabled"`
	PPMError              int            `json:"ppm_error"`
}

// Validate checks the transport-independent invariants. Hardware gain
// and tuning ranges are checked separately against the target device.
func (c DesiredConfig) Validate() error {
	if c.SampleRateHz == 0 {
		return errors.New("sample rate must be positive")
	}
	if c.CenterFreqHz == 0 {
		return errors.New("center frequency must be positive")
	}
	if c.CenterFreqHz < c.SampleRateHz/2 {
		// The spectrum spans center ± fs/2; a center below fs/2 would
		// put the lowest bins at negative frequencies.
		return fmt.Errorf("center frequency %d Hz is below half the sample rate %d Hz", c.CenterFreqHz, c.SampleRateHz)
	}
	if c.SpanHz > c.SampleRateHz {
		return fmt.Errorf("span %d Hz exceeds the sample rate %d Hz", c.SpanHz, c.SampleRateHz)
	}
	return nil
}

// CycleConfig is the complete derived configuration for one capture
// cycle: what to ask the hardware for, how to size the ring buffer and
// how to run the PSD estimate.
type CycleConfig struct {
	Desired  DesiredConfig
	Hardware sdr.HardwareConfig
	PSD      dsp.Config
	Ring     sdr.RingConfig
}

// Derive turns the operator intent into a concrete cycle
// configuration. All derivation is deterministic; any error leaves the
// previously applied configuration running.
func (c DesiredConfig) Derive() (*CycleConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	psdCfg, err := dsp.Derive(c.SampleRateHz, c.ResolutionBandwidthHz, c.Overlap, c.Window)
	if err != nil {
		return nil, err
	}

	ringCfg := sdr.DeriveRingConfig(c.SampleRateHz)
	if ringCfg.TotalBytes < 2*psdCfg.Nperseg {
		return nil, fmt.Errorf("%w: %d samples per window, nperseg %d",
			ErrWindowTooShort, ringCfg.TotalBytes/2, psdCfg.Nperseg)
	}

	return &CycleConfig{
		Desired: c,
		Hardware: sdr.HardwareConfig{
			SampleRateHz: c.SampleRateHz,
			CenterFreqHz: c.CenterFreqHz,
			LNAGain:      c.LNAGain,
			VGAGain:      c.VGAGain,
			AmpEnabled:   c.AmpEnabled,
			PPMError:     c.PPMError,
		},
		PSD:  psdCfg,
		Ring: ringCfg,
	}, nil
}
