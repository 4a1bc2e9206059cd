package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultCommandSubject = "psd.acquire"
	defaultDataSubject    = "psd.data"
	defaultDataDirectory  = "data"
	defaultOutputFile     = "psd.png"
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Bus      BusConfig      `yaml:"bus"`
	Device   DeviceConfig   `yaml:"device"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Render   RenderConfig   `yaml:"render"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// BusConfig points the engine at the message broker and names the
// command and data subjects.
type BusConfig struct {
	URL            string `yaml:"url"`
	CommandSubject string `yaml:"commandSubject"`
	DataSubject    string `yaml:"dataSubject"`
}

// DeviceConfig represents receiver settings
type DeviceConfig struct {
	BinPath string `yaml:"binPath"` // optional explicit hackrf_transfer path
}

// MetricsConfig represents metrics storage settings
type MetricsConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// RenderConfig represents local PNG snapshot settings
type RenderConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"outputFile"`
	FontPath   string `yaml:"fontPath"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

// WatchdogConfig represents device recovery settings
type WatchdogConfig struct {
	BackoffMin    Duration `yaml:"backoffMin"`
	BackoffMax    Duration `yaml:"backoffMax"`
	NoDataTimeout Duration `yaml:"noDataTimeout"`
}

// Duration is a time.Duration parsed from its string form ("500ms").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration: %w", err)
	}

	*d = Duration(parsed)
	return nil
}

// LoadConfig reads, parses and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Bus.URL == "" {
		return nil, fmt.Errorf("bus.url is required")
	}
	if config.Bus.CommandSubject == "" {
		config.Bus.CommandSubject = defaultCommandSubject
	}
	if config.Bus.DataSubject == "" {
		config.Bus.DataSubject = defaultDataSubject
	}
	if config.Metrics.DataDirectory == "" {
		config.Metrics.DataDirectory = defaultDataDirectory
	}
	if config.Render.Enabled && config.Render.OutputFile == "" {
		config.Render.OutputFile = defaultOutputFile
	}

	return &config, nil
}
