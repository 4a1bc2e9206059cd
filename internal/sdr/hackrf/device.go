// Package hackrf drives a HackRF One through the `hackrf_transfer`
// tool, streaming raw interleaved int8 IQ samples from its stdout.
package hackrf

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rfsense/psd-sensor/internal/sdr"
)

const (
	Runtime = "hackrf_transfer"

	// chunkSize is the read size for the stdout pipe. Large enough to
	// keep syscall overhead low at 20 MS/s, small enough to keep the
	// ring buffer granularity fine.
	chunkSize = 262144
)

// ErrStreamClosed is returned when the capture callback asked to stop.
var ErrStreamClosed = errors.New("streaming stopped by callback")

// WithLogger sets the logger for the device.
func WithLogger(logger *slog.Logger) func(*Device) {
	return func(d *Device) {
		d.logger = logger.With(slog.String("device", Runtime))
	}
}

// WithBinPath overrides the PATH lookup of the hackrf_transfer binary.
func WithBinPath(path string) func(*Device) {
	return func(d *Device) {
		d.binPath = path
	}
}

// Device is an sdr.Device backed by a hackrf_transfer subprocess.
type Device struct {
	binPath string
	args    []string

	isStreaming atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	logger *slog.Logger
}

// New creates a HackRF device with a discard logger.
func New(options ...func(*Device)) *Device {
	d := Device{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Open validates the configuration, locates the runtime and freezes
// the capture arguments for this cycle.
func (d *Device) Open(_ context.Context, cfg sdr.HardwareConfig) error {
	if d.binPath == "" {
		path, err := sdr.FindRuntime(Runtime)
		if err != nil {
			return sdr.NewDeviceError("open", err)
		}
		d.binPath = path
	}

	args, err := Args(cfg)
	if err != nil {
		return sdr.NewDeviceError("configure", err)
	}
	d.args = args

	return nil
}

// StartStreaming launches hackrf_transfer and feeds stdout chunks to
// fn until fn returns false, the context is cancelled or the
// subprocess fails.
func (d *Device) StartStreaming(ctx context.Context, fn sdr.ChunkFunc) (<-chan error, error) {
	if d.args == nil {
		return nil, sdr.NewDeviceError("stream", errors.New("device is not open"))
	}
	if d.isStreaming.Load() {
		return nil, sdr.NewDeviceError("stream", errors.New("device is already streaming"))
	}

	d.isStreaming.Store(true)

	ctx, d.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, d.binPath, d.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.isStreaming.Store(false) // Reset running state on error
		return nil, sdr.NewDeviceError("stream", fmt.Errorf("creating stdout pipe: %w", err))
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		d.isStreaming.Store(false) // Reset running state on error
		return nil, sdr.NewDeviceError("stream", fmt.Errorf("creating stderr pipe: %w", err))
	}

	if err = cmd.Start(); err != nil {
		d.isStreaming.Store(false) // Reset running state on error
		return nil, sdr.NewDeviceError("stream", fmt.Errorf("starting %s: %w", Runtime, err))
	}

	streamingStopped := make(chan error, 1)

	d.wg.Add(1)
	go func() {
		defer close(streamingStopped)

		d.logger.Info("starting sample capture...")

		done := make(chan error, 3) // expects three results from three goroutines

		go d.handleStdout(ctx, stdout, fn, done)
		go d.handleStderr(stderr, done)
		go d.handleCmdWait(cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				d.cancel() // cancel context on error
				if !errors.Is(err, ErrStreamClosed) {
					d.logger.Error(err.Error())
					errs = append(errs, err)
				}
			}
		}

		close(done)

		d.logger.Info("sample capture stopped")

		d.isStreaming.Store(false)
		d.wg.Done()

		if len(errs) > 0 {
			streamingStopped <- sdr.NewDeviceError("stream", errors.Join(errs...))
		}
	}()

	return streamingStopped, nil
}

// StopStreaming cancels the subprocess and waits for the capture
// goroutines to drain.
func (d *Device) StopStreaming() {
	if !d.isStreaming.Load() {
		return // already stopped
	}

	d.cancel()
	d.wg.Wait()
	d.isStreaming.Store(false)
}

// Close stops streaming and releases the frozen configuration.
func (d *Device) Close() error {
	d.StopStreaming()
	d.args = nil
	return nil
}

// IsStreaming returns true if the subprocess is capturing.
func (d *Device) IsStreaming() bool {
	return d.isStreaming.Load()
}

// handleStdout moves fixed-size chunks of raw IQ bytes into the
// capture callback. The chunk buffer is reused; the callback must copy
// before returning.
func (d *Device) handleStdout(ctx context.Context, stdout io.Reader, fn sdr.ChunkFunc, done chan<- error) {
	buf := make([]byte, chunkSize)

	for {
		n, err := stdout.Read(buf)
		if n > 0 && !fn(buf[:n]) {
			done <- ErrStreamClosed
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) || ctx.Err() != nil {
				done <- nil
				return
			}
			done <- fmt.Errorf("reading stdout: %w", err)
			return
		}
	}
}

// handleStderr reads from stderr and logs progress lines.
func (d *Device) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		d.logger.Debug(fmt.Sprintf("%s >> %s", Runtime, line)) // simple logging here
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("reading stderr: %w", err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the subprocess to exit and reports its
// terminal status.
func (d *Device) handleCmdWait(cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) && cmd.ProcessState.ExitCode() != -1 {
		done <- fmt.Errorf("%s exited with error: %w", Runtime, err)
		return
	}

	done <- nil
}
