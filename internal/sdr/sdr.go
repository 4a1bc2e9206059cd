// Package sdr defines the abstraction over software-defined radio
// receivers and the capture-side ring buffer. Hardware-specific
// implementations live in sub-packages (e.g. hackrf).
package sdr

import (
	"context"
	"fmt"
	"os/exec"
)

// HardwareConfig is the concrete radio configuration for one capture
// cycle. It is derived from an operator command and owned by the
// device for the duration of the cycle.
type HardwareConfig struct {
	SampleRateHz uint64 // ADC sample rate in samples per second
	CenterFreqHz uint64 // Tuned center frequency in Hz
	LNAGain      int    // LNA (IF) gain in dB
	VGAGain      int    // VGA (baseband) gain in dB
	AmpEnabled   bool   // RX RF amplifier on/off
	PPMError     int    // Frequency correction in parts per million
}

// ChunkFunc is invoked on every chunk of raw interleaved int8 IQ bytes
// produced by the receiver. It runs on the hardware I/O goroutine and
// must return quickly; returning false stops streaming.
type ChunkFunc func(chunk []byte) bool

// Device is a radio receiver with an explicit open/stream/close
// lifecycle. Implementations must be safe to reopen after Close and
// must never terminate the process on hardware failure; all faults are
// reported as *DeviceError for the supervisor to recover from.
type Device interface {
	// Open claims the hardware and applies the configuration.
	Open(ctx context.Context, cfg HardwareConfig) error

	// StartStreaming begins delivering sample chunks to fn. The
	// returned channel yields the terminal streaming error (or nil on
	// deliberate stop) and is closed when streaming has fully stopped.
	StartStreaming(ctx context.Context, fn ChunkFunc) (<-chan error, error)

	// StopStreaming cancels streaming and waits for the capture
	// goroutines to drain. Safe to call when not streaming.
	StopStreaming()

	// Close releases the hardware. Safe to call multiple times.
	Close() error
}

// DeviceError wraps any hardware-originated failure: open failures,
// configuration rejections and streaming I/O errors.
type DeviceError struct {
	Op  string // "open", "configure", "stream"
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %s", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// NewDeviceError wraps err with the failed operation name.
func NewDeviceError(op string, err error) *DeviceError {
	return &DeviceError{Op: op, Err: err}
}

// FindRuntime locates an SDR command line tool on PATH.
func FindRuntime(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locating %s: %w", name, err)
	}
	return path, nil
}
