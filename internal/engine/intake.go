package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/rfsense/psd-sensor/internal/bus"
	"github.com/rfsense/psd-sensor/internal/sdr"
)

// WithIntakeLogger sets the logger for the intake.
func WithIntakeLogger(logger *slog.Logger) func(*Intake) {
	return func(i *Intake) {
		i.logger = logger.With(slog.String("component", "intake"))
	}
}

// WithHardwareValidator adds a device-specific check run after the
// generic validation, e.g. gain and tuning range limits.
func WithHardwareValidator(fn func(sdr.HardwareConfig) error) func(*Intake) {
	return func(i *Intake) {
		i.validate = fn
	}
}

// Intake receives acquisition commands from the message channel,
// validates and derives them, and hands the result to the supervisor.
// Malformed or invalid commands are logged and dropped; they never
// disturb a running acquisition.
type Intake struct {
	supervisor *Supervisor
	validate   func(sdr.HardwareConfig) error
	logger     *slog.Logger
}

// NewIntake creates an intake feeding the given supervisor.
func NewIntake(supervisor *Supervisor, options ...func(*Intake)) *Intake {
	i := Intake{
		supervisor: supervisor,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&i)
	}

	return &i
}

// Bind subscribes the intake to command messages on the given subject.
func (i *Intake) Bind(channel bus.Channel, subject string) (bus.Subscription, error) {
	sub, err := channel.Subscribe(subject, i.onCommand)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	return sub, nil
}

func (i *Intake) onCommand(data []byte) {
	var desired DesiredConfig
	if err := json.Unmarshal(data, &desired); err != nil {
		i.logger.Warn(fmt.Sprintf("rejecting malformed command: %s", err))
		return
	}

	cfg, err := desired.Derive()
	if err != nil {
		i.logger.Warn(fmt.Sprintf("rejecting command: %s", err))
		return
	}

	if i.validate != nil {
		if err = i.validate(cfg.Hardware); err != nil {
			i.logger.Warn(fmt.Sprintf("rejecting command: %s", err))
			return
		}
	}

	i.logger.Info("accepted command",
		slog.String("centerFreq", humanize.SI(float64(desired.CenterFreqHz), "Hz")),
		slog.String("rbw", humanize.SI(float64(desired.ResolutionBandwidthHz), "Hz")),
		slog.String("window", desired.Window.String()),
		slog.String("scale", desired.Scale.String()),
	)

	i.supervisor.Apply(cfg)
}
