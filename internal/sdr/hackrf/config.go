package hackrf

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rfsense/psd-sensor/internal/sdr"
)

const (
	MinSampleRate = 2_000_000
	MaxSampleRate = 20_000_000
	MinFrequency  = 1_000_000
	MaxFrequency  = 6_000_000_000
	MaxLNAGain    = 40
	MaxVGAGain    = 62
	LNAGainStep   = 8
	VGAGainStep   = 2
)

// Args builds the command line arguments for `hackrf_transfer` from a
// hardware configuration. See `man hackrf_transfer`.
//
// Example invocation for a 20 MS/s capture at 98 MHz:
//
//	hackrf_transfer -r - -f 98000000 -s 20000000 -l 32 -g 30 -a 0
//
// The tool has no ppm option, so frequency correction is folded into
// the tuned frequency.
func Args(cfg sdr.HardwareConfig) ([]string, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	args := []string{
		"-r", "-", // raw int8 IQ to stdout
		"-f", strconv.FormatUint(tunedFrequency(cfg), 10),
		"-s", strconv.FormatUint(cfg.SampleRateHz, 10),
		"-l", strconv.Itoa(cfg.LNAGain),
		"-g", strconv.Itoa(cfg.VGAGain),
	}

	if cfg.AmpEnabled {
		args = append(args, "-a", "1")
	} else {
		args = append(args, "-a", "0")
	}

	return args, nil
}

// Validate checks cfg against the HackRF One hardware limits.
func Validate(cfg sdr.HardwareConfig) error {
	if cfg.SampleRateHz < MinSampleRate || cfg.SampleRateHz > MaxSampleRate {
		return fmt.Errorf("hackrf: sample rate must be between 2 and 20 MS/s: %d given", cfg.SampleRateHz)
	}
	if cfg.CenterFreqHz < MinFrequency || cfg.CenterFreqHz > MaxFrequency {
		return fmt.Errorf("hackrf: center frequency must be between 1 MHz and 6 GHz: %d given", cfg.CenterFreqHz)
	}

	// LNA gain validation (0-40dB in 8dB steps)
	if cfg.LNAGain < 0 || cfg.LNAGain > MaxLNAGain {
		return fmt.Errorf("hackrf: LNA gain must be between 0 and 40 dB: %d given", cfg.LNAGain)
	}
	if cfg.LNAGain%LNAGainStep != 0 {
		return errors.New("hackrf: LNA gain must be a multiple of 8 dB")
	}

	// VGA gain validation (0-62dB in 2dB steps)
	if cfg.VGAGain < 0 || cfg.VGAGain > MaxVGAGain {
		return fmt.Errorf("hackrf: VGA gain must be between 0 and 62 dB: %d given", cfg.VGAGain)
	}
	if cfg.VGAGain%VGAGainStep != 0 {
		return errors.New("hackrf: VGA gain must be a multiple of 2 dB")
	}

	return nil
}

// tunedFrequency applies the ppm correction to the requested center
// frequency: f_tuned = f * (1 + ppm/1e6), rounded to the nearest Hz.
func tunedFrequency(cfg sdr.HardwareConfig) uint64 {
	f := float64(cfg.CenterFreqHz)
	f += f * float64(cfg.PPMError) / 1e6
	return uint64(f + 0.5)
}
