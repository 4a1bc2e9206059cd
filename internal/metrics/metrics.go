// Package metrics collects per-cycle timing and per-fault events from
// the acquisition engine. Records are flat key/value sets; retention
// and aggregation belong to the collaborators consuming them.
package metrics

import (
	"log/slog"
	"time"
)

// Cycle is one completed capture+process cycle.
type Cycle struct {
	Timestamp    time.Time
	CenterFreqHz uint64
	SampleRateHz uint64
	Nperseg      int
	BinCount     int
	Scale        string
	AcquireTime  time.Duration // waiting for a full sample window
	ProcessTime  time.Duration // Welch + scaling + publication
	Overruns     uint64        // ring buffer overruns since session start
}

// Fault is one watchdog-observed device failure.
type Fault struct {
	Timestamp time.Time
	State     string // device state at the time of the fault
	Error     string
	Retry     int // consecutive recovery attempt number
}

// Collector receives engine metrics. Implementations must not block
// the acquisition cycle.
type Collector interface {
	RecordCycle(c Cycle)
	RecordFault(f Fault)
}

// LogCollector emits metrics as structured log records.
type LogCollector struct {
	logger *slog.Logger
}

// NewLogCollector creates a collector logging through logger.
func NewLogCollector(logger *slog.Logger) *LogCollector {
	return &LogCollector{logger: logger.With(slog.String("component", "metrics"))}
}

func (lc *LogCollector) RecordCycle(c Cycle) {
	lc.logger.Info("cycle completed",
		slog.Uint64("centerFreqHz", c.CenterFreqHz),
		slog.Uint64("sampleRateHz", c.SampleRateHz),
		slog.Int("nperseg", c.Nperseg),
		slog.Int("binCount", c.BinCount),
		slog.String("scale", c.Scale),
		slog.Duration("acquireTime", c.AcquireTime),
		slog.Duration("processTime", c.ProcessTime),
		slog.Uint64("overruns", c.Overruns),
	)
}

func (lc *LogCollector) RecordFault(f Fault) {
	lc.logger.Warn("device fault",
		slog.String("state", f.State),
		slog.String("error", f.Error),
		slog.Int("retry", f.Retry),
	)
}

// Multi fans records out to several collectors.
type Multi []Collector

func (m Multi) RecordCycle(c Cycle) {
	for _, collector := range m {
		collector.RecordCycle(c)
	}
}

func (m Multi) RecordFault(f Fault) {
	for _, collector := range m {
		collector.RecordFault(f)
	}
}

// Nop discards all records.
type Nop struct{}

func (Nop) RecordCycle(Cycle) {}
func (Nop) RecordFault(Fault) {}
