// Package app wires the acquisition engine together: device, message
// channel, metrics, optional snapshot rendering and the supervising
// watchdog.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rfsense/psd-sensor/internal/bus"
	"github.com/rfsense/psd-sensor/internal/engine"
	"github.com/rfsense/psd-sensor/internal/metrics"
	"github.com/rfsense/psd-sensor/internal/render"
	"github.com/rfsense/psd-sensor/internal/sdr/hackrf"
	"github.com/rfsense/psd-sensor/internal/spectrum"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	channel, err := bus.NewNatsChannel(config.Bus.URL, bus.WithNatsLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create message channel: %w", err)
	}
	defer channel.Close()

	store, err := createMetricsStore(&config.Metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create metrics store: %w", err)
	}
	defer store.Close()

	collector := metrics.Multi{metrics.NewLogCollector(logger), store}

	var deviceOptions []func(*hackrf.Device)
	deviceOptions = append(deviceOptions, hackrf.WithLogger(logger))
	if config.Device.BinPath != "" {
		deviceOptions = append(deviceOptions, hackrf.WithBinPath(config.Device.BinPath))
	}
	device := hackrf.New(deviceOptions...)

	supervisorOptions := []func(*engine.Supervisor){
		engine.WithLogger(logger),
		engine.WithCollector(collector),
	}
	if config.Watchdog.BackoffMin > 0 && config.Watchdog.BackoffMax > 0 {
		supervisorOptions = append(supervisorOptions,
			engine.WithBackoff(time.Duration(config.Watchdog.BackoffMin), time.Duration(config.Watchdog.BackoffMax)))
	}
	if config.Watchdog.NoDataTimeout > 0 {
		supervisorOptions = append(supervisorOptions,
			engine.WithNoDataTimeout(time.Duration(config.Watchdog.NoDataTimeout)))
	}

	if config.Render.Enabled {
		snapshot, sErr := createSnapshot(&config.Render, logger)
		if sErr != nil {
			return fmt.Errorf("failed to create snapshot renderer: %w", sErr)
		}
		defer snapshot.Close()

		outputFile := config.Render.OutputFile
		supervisorOptions = append(supervisorOptions, engine.WithOnResult(func(result *spectrum.Result) {
			if wErr := snapshot.WritePNG(result, outputFile); wErr != nil {
				logger.Warn(fmt.Sprintf("writing snapshot: %s", wErr))
			}
		}))
	}

	supervisor := engine.NewSupervisor(device, channel, config.Bus.DataSubject, supervisorOptions...)

	intake := engine.NewIntake(supervisor,
		engine.WithIntakeLogger(logger),
		engine.WithHardwareValidator(hackrf.Validate),
	)

	sub, err := intake.Bind(channel, config.Bus.CommandSubject)
	if err != nil {
		return fmt.Errorf("failed to bind command intake: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("engine started",
		slog.String("commandSubject", config.Bus.CommandSubject),
		slog.String("dataSubject", config.Bus.DataSubject),
		slog.String("session", store.SessionID()),
	)

	return supervisor.Run(ctx)
}

func createMetricsStore(config *MetricsConfig, logger *slog.Logger) (*metrics.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dir := filepath.Join(wd, config.DataDirectory)
	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("metrics directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("checking metrics directory '%s': %w", dir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid metrics directory '%s'", dir)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("psd_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return metrics.NewStore(dbPath, hackrf.Runtime, metrics.WithStoreLogger(logger)), nil
}

func createSnapshot(config *RenderConfig, logger *slog.Logger) (*render.Snapshot, error) {
	snapshot, err := render.NewSnapshot(render.Config{
		Width:    config.Width,
		Height:   config.Height,
		FontPath: config.FontPath,
	})
	if err != nil {
		return nil, err
	}

	if config.FontPath == "" {
		logger.Info("no font configured, snapshots are drawn unlabelled")
	}

	return snapshot, nil
}
