package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rfsense/psd-sensor/internal/bus"
	"github.com/rfsense/psd-sensor/internal/dsp"
	"github.com/rfsense/psd-sensor/internal/metrics"
	"github.com/rfsense/psd-sensor/internal/sdr"
	"github.com/rfsense/psd-sensor/internal/spectrum"
)

const (
	defaultBackoffMin    = 500 * time.Millisecond
	defaultBackoffMax    = 30 * time.Second
	defaultNoDataTimeout = 5 * time.Second
)

// WithLogger sets the logger for the supervisor.
func WithLogger(logger *slog.Logger) func(*Supervisor) {
	return func(s *Supervisor) {
		s.logger = logger.With(slog.String("component", "supervisor"))
	}
}

// WithCollector sets the metrics collector.
func WithCollector(collector metrics.Collector) func(*Supervisor) {
	return func(s *Supervisor) {
		s.collector = collector
	}
}

// WithBackoff sets the recovery backoff bounds. The delay doubles from
// min on every consecutive fault, capped at max, and resets once
// streaming resumes.
func WithBackoff(min, max time.Duration) func(*Supervisor) {
	return func(s *Supervisor) {
		s.backoffMin, s.backoffMax = min, max
	}
}

// WithNoDataTimeout sets how long a window wait may go without data
// before the device is considered stalled. Must exceed the capture
// window duration (one second).
func WithNoDataTimeout(d time.Duration) func(*Supervisor) {
	return func(s *Supervisor) {
		s.noDataTimeout = d
	}
}

// WithOnResult registers a hook invoked with every published result,
// on the processing goroutine. Used for local snapshot rendering.
func WithOnResult(fn func(*spectrum.Result)) func(*Supervisor) {
	return func(s *Supervisor) {
		s.onResult = fn
	}
}

// Supervisor owns the device lifecycle end to end: it opens the radio,
// runs capture+process cycles and recovers from hardware faults with
// indefinite, backed-off retries. Nothing it observes is allowed to
// terminate the process; the loop only exits on context cancellation.
type Supervisor struct {
	device      sdr.Device
	channel     bus.Channel
	dataSubject string

	logger    *slog.Logger
	collector metrics.Collector
	onResult  func(*spectrum.Result)

	backoffMin    time.Duration
	backoffMax    time.Duration
	noDataTimeout time.Duration

	mu       sync.Mutex
	current  *CycleConfig
	pending  *CycleConfig
	configCh chan struct{}

	state atomic.Int32

	// recovery bookkeeping, touched only by the Run goroutine
	retry   int
	backoff time.Duration
}

// NewSupervisor creates a supervisor publishing results on dataSubject.
func NewSupervisor(device sdr.Device, channel bus.Channel, dataSubject string, options ...func(*Supervisor)) *Supervisor {
	s := Supervisor{
		device:        device,
		channel:       channel,
		dataSubject:   dataSubject,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		collector:     metrics.Nop{},
		backoffMin:    defaultBackoffMin,
		backoffMax:    defaultBackoffMax,
		noDataTimeout: defaultNoDataTimeout,
		configCh:      make(chan struct{}, 1),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// State returns the current device lifecycle state.
func (s *Supervisor) State() DeviceState {
	return DeviceState(s.state.Load())
}

// Apply replaces the target configuration. Only the most recent
// configuration is retained; it takes effect on the next capture
// window boundary, or once the device recovers if it is Faulted.
func (s *Supervisor) Apply(cfg *CycleConfig) {
	s.mu.Lock()
	s.pending = cfg
	s.mu.Unlock()

	select {
	case s.configCh <- struct{}{}:
	default:
	}
}

// Run drives the supervising loop until ctx is cancelled. It always
// returns nil after releasing the device: faults are recovered, not
// reported upward.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.setState(StateClosed)

	s.backoff = s.backoffMin

	for {
		cfg, err := s.awaitConfig(ctx)
		if err != nil {
			return nil // deliberate shutdown
		}

		if err = s.runCycle(ctx, cfg); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			s.retry++
			s.fault(err)

			s.logger.Warn(fmt.Sprintf("recovering in %s", s.backoff), slog.Int("retry", s.retry))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.backoff):
			}
			s.backoff = min(2*s.backoff, s.backoffMax)
		}
	}
}

// runCycle opens, streams and processes until a fault, a configuration
// change or shutdown. The device is released on every exit path.
func (s *Supervisor) runCycle(ctx context.Context, cfg *CycleConfig) (err error) {
	s.setState(StateOpening)

	if err = s.device.Open(ctx, cfg.Hardware); err != nil {
		return err
	}
	defer func() {
		// Scoped-resource discipline: the device is always released,
		// fault paths included. A half-open device is a leak.
		s.device.StopStreaming()
		if cErr := s.device.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	s.setState(StateOpen)

	welch, err := dsp.NewWelch(cfg.PSD)
	if err != nil {
		return err
	}

	ring, err := sdr.NewRingBuffer(cfg.Ring)
	if err != nil {
		return err
	}
	defer ring.Close()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh, err := s.device.StartStreaming(streamCtx, func(chunk []byte) bool {
		// Hardware I/O goroutine: one bounded copy, nothing else.
		ring.Write(chunk)
		return true
	})
	if err != nil {
		return err
	}

	s.setState(StateStreaming)
	s.retry = 0
	s.backoff = s.backoffMin // streaming resumed, reset recovery state

	s.logger.Info("streaming",
		slog.String("centerFreq", humanize.SI(float64(cfg.Desired.CenterFreqHz), "Hz")),
		slog.String("sampleRate", humanize.SI(float64(cfg.Desired.SampleRateHz), "S/s")),
		slog.String("window", humanize.Bytes(uint64(cfg.Ring.TotalBytes))),
		slog.Int("nperseg", cfg.PSD.Nperseg),
	)

	iq := make([]complex128, cfg.Ring.TotalBytes/2)

	for {
		if s.hasPending() {
			s.logger.Info("configuration replaced, reopening device")
			return nil
		}

		acquireStart := time.Now()

		wCtx, wCancel := context.WithTimeout(streamCtx, s.noDataTimeout)
		window, wErr := ring.WaitWindow(wCtx, cfg.Ring.TotalBytes)
		wCancel()

		if wErr != nil {
			// Prefer the underlying streaming error when there is one.
			select {
			case streamErr := <-errCh:
				if streamErr != nil {
					return streamErr
				}
			default:
			}
			if ctx.Err() != nil {
				return nil
			}
			return sdr.NewDeviceError("stream", fmt.Errorf("no data within %s: %w", s.noDataTimeout, wErr))
		}

		acquireTime := time.Since(acquireStart)
		processStart := time.Now()

		n := dsp.BytesToIQ(iq, window)
		pxx, cErr := welch.Compute(iq[:n])
		if cErr != nil {
			return cErr
		}

		freqs := cfg.PSD.Frequencies(cfg.Desired.CenterFreqHz)
		freqs, pxx = dsp.CropSpan(freqs, pxx, cfg.Desired.CenterFreqHz, cfg.Desired.SpanHz)
		pxx = dsp.Apply(pxx, cfg.Desired.Scale)

		result := &spectrum.Result{
			StartFreqHz:  uint64(freqs[0]),
			EndFreqHz:    uint64(freqs[len(freqs)-1]),
			CenterFreqHz: cfg.Desired.CenterFreqHz,
			BinCount:     uint32(len(pxx)),
			Pxx:          pxx,
			Timestamp:    time.Now().UTC(),
		}

		if pErr := s.channel.Publish(ctx, s.dataSubject, result); pErr != nil {
			// Publish failure drops the result, never the cycle.
			s.logger.Warn(fmt.Sprintf("dropping result: %s", pErr))
		}

		if s.onResult != nil {
			s.onResult(result)
		}

		s.collector.RecordCycle(metrics.Cycle{
			Timestamp:    result.Timestamp,
			CenterFreqHz: cfg.Desired.CenterFreqHz,
			SampleRateHz: cfg.Desired.SampleRateHz,
			Nperseg:      cfg.PSD.Nperseg,
			BinCount:     len(pxx),
			Scale:        cfg.Desired.Scale.String(),
			AcquireTime:  acquireTime,
			ProcessTime:  time.Since(processStart),
			Overruns:     ring.Overruns(),
		})
	}
}

// awaitConfig blocks until a configuration is available: a pending one
// wins over the currently running one.
func (s *Supervisor) awaitConfig(ctx context.Context) (*CycleConfig, error) {
	for {
		s.mu.Lock()
		if s.pending != nil {
			cfg := s.pending
			s.pending = nil
			s.current = cfg
			s.mu.Unlock()
			return cfg, nil
		}
		if s.current != nil {
			cfg := s.current
			s.mu.Unlock()
			return cfg, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.configCh:
		}
	}
}

func (s *Supervisor) hasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Supervisor) setState(state DeviceState) {
	s.state.Store(int32(state))
}

func (s *Supervisor) fault(err error) {
	prior := s.State()
	s.setState(StateFaulted)

	s.logger.Error(err.Error(), slog.String("state", prior.String()))
	s.collector.RecordFault(metrics.Fault{
		Timestamp: time.Now().UTC(),
		State:     prior.String(),
		Error:     err.Error(),
		Retry:     s.retry,
	})
}
