// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads handoffd configuration from a YAML (or JSON) file,
// environment variables and command-line overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	handofferrors "github.com/tombee/handoff/pkg/errors"
)

const (
	// DefaultPort is the port handoffd listens on when nothing else is configured.
	DefaultPort = 10130

	// DefaultHostname is the interface handoffd binds by default.
	DefaultHostname = "localhost"

	// MinPort and MaxPort bound every port override.
	MinPort = 1
	MaxPort = 65535
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the complete handoffd configuration.
type Config struct {
	// Hostname is the interface to bind.
	// Environment: HANDOFF_HOST
	// Default: localhost
	Hostname string `yaml:"hostname" json:"hostname"`

	// Port is the TCP port to bind.
	// Environment: HANDOFF_PORT
	// Default: 10130
	Port int `yaml:"port" json:"port"`

	// ShutdownTimeout bounds the transport drain once a stop begins.
	// Environment: HANDOFF_SHUTDOWN_TIMEOUT
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// PIDFile is written on bind and removed on stop. Empty disables it.
	// Environment: HANDOFF_PID_FILE
	PIDFile string `yaml:"pid_file"`

	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Transport TransportConfig `yaml:"transport"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures the /metrics endpoint.
type MetricsConfig struct {
	// Enabled mounts /metrics next to the socket endpoint.
	// Environment: HANDOFF_METRICS_ENABLED
	// Default: true
	Enabled bool `yaml:"enabled"`
}

// Tracing exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// TracingConfig configures OpenTelemetry spans for answered requests.
type TracingConfig struct {
	// Enabled turns on span export.
	// Environment: HANDOFF_TRACING_ENABLED
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Exporter is "stdout" (JSON spans on stderr) or "otlp" (OTLP/HTTP).
	// Environment: HANDOFF_TRACING_EXPORTER
	// Default: stdout
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP/HTTP collector URL, e.g. http://localhost:4318.
	// Environment: HANDOFF_TRACING_ENDPOINT
	Endpoint string `yaml:"endpoint"`

	// SampleRate is the fraction of requests traced, 0..1. Default: 1
	SampleRate float64 `yaml:"sample_rate"`
}

// TransportConfig tunes the WebSocket transport.
type TransportConfig struct {
	// WriteTimeout bounds each frame write. Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// PingInterval is how often idle sessions are pinged. Default: 30s
	PingInterval time.Duration `yaml:"ping_interval"`

	// ReadLimit is the maximum inbound frame size in bytes. Default: 1 MiB
	ReadLimit int64 `yaml:"read_limit"`

	// ConnectRate limits new sessions per second. Zero means unlimited.
	ConnectRate float64 `yaml:"connect_rate"`

	// ConnectBurst is the number of sessions accepted at once above
	// ConnectRate. Default: 1 when ConnectRate is set
	ConnectBurst int `yaml:"connect_burst"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Hostname:        DefaultHostname,
		Port:            DefaultPort,
		ShutdownTimeout: 5 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Exporter:   ExporterStdout,
			SampleRate: 1,
		},
		Transport: TransportConfig{
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			ReadLimit:    1 << 20,
		},
	}
}

// Load loads configuration from an optional file and the environment.
// Environment variables take precedence over file-based configuration.
// If configPath is empty, only environment variables are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &handofferrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Apply defaults to any zero values (handles minimal configs)
	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, &handofferrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// LoadOrDefault loads explicitPath when set. Otherwise the XDG default path
// is used if a file exists there, and environment-only config if not.
func LoadOrDefault(explicitPath string) (*Config, error) {
	return Load(ResolvePath(explicitPath))
}

// ResolvePath returns the config file LoadOrDefault would read, or "" when
// only the environment applies.
func ResolvePath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	path, err := DefaultPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Hostname == "" {
		c.Hostname = defaults.Hostname
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = defaults.Transport.WriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = defaults.Transport.PingInterval
	}
	if c.Transport.ReadLimit == 0 {
		c.Transport.ReadLimit = defaults.Transport.ReadLimit
	}
	if c.Transport.ConnectRate > 0 && c.Transport.ConnectBurst == 0 {
		c.Transport.ConnectBurst = 1
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.Tracing.SampleRate
	}
}

// loadFromFile loads configuration from a YAML file. JSON is a subset of
// YAML, so {"hostname": ..., "port": ...} files load as well.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv("HANDOFF_HOST"); val != "" {
		c.Hostname = val
	}
	if val := os.Getenv("HANDOFF_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return &handofferrors.ConfigError{
				Key:    "port",
				Reason: fmt.Sprintf("HANDOFF_PORT %q is not a number", val),
				Cause:  err,
			}
		}
		c.Port = port
	}
	if val := os.Getenv("HANDOFF_PID_FILE"); val != "" {
		c.PIDFile = val
	}
	if val := os.Getenv("HANDOFF_SHUTDOWN_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return &handofferrors.ConfigError{
				Key:    "shutdown_timeout",
				Reason: fmt.Sprintf("HANDOFF_SHUTDOWN_TIMEOUT %q is not a duration", val),
				Cause:  err,
			}
		}
		c.ShutdownTimeout = d
	}
	if val := os.Getenv("HANDOFF_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("HANDOFF_TRACING_ENABLED"); val != "" {
		c.Tracing.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("HANDOFF_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
	}
	if val := os.Getenv("HANDOFF_TRACING_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	// Log configuration
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Hostname == "" {
		errs = append(errs, "hostname must not be empty")
	}
	if err := ValidatePort(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("port must be between %d and %d, got %d", MinPort, MaxPort, c.Port))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("shutdown_timeout must be positive, got %v", c.ShutdownTimeout))
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Transport.WriteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("transport.write_timeout must be positive, got %v", c.Transport.WriteTimeout))
	}
	if c.Transport.PingInterval <= 0 {
		errs = append(errs, fmt.Sprintf("transport.ping_interval must be positive, got %v", c.Transport.PingInterval))
	}
	if c.Transport.ReadLimit <= 0 {
		errs = append(errs, fmt.Sprintf("transport.read_limit must be positive, got %d", c.Transport.ReadLimit))
	}
	if c.Transport.ConnectRate < 0 {
		errs = append(errs, fmt.Sprintf("transport.connect_rate must not be negative, got %v", c.Transport.ConnectRate))
	}
	if c.Transport.ConnectBurst < 0 {
		errs = append(errs, fmt.Sprintf("transport.connect_burst must not be negative, got %d", c.Transport.ConnectBurst))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate))
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case ExporterStdout:
		case ExporterOTLP:
			if c.Tracing.Endpoint == "" {
				errs = append(errs, "tracing.endpoint is required for the otlp exporter")
			}
		default:
			errs = append(errs, fmt.Sprintf("tracing.exporter must be one of [stdout, otlp], got %q", c.Tracing.Exporter))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ValidatePort reports whether port is usable as a listen port.
func ValidatePort(port int) error {
	if port < MinPort || port > MaxPort {
		return &handofferrors.ValidationError{
			Field:   "port",
			Message: fmt.Sprintf("must be between %d and %d, got %d", MinPort, MaxPort, port),
			Hint:    "Pass a port such as 10130",
		}
	}
	return nil
}

// ApplyPortOverride replaces Port with a command-line value after checking
// its range.
func (c *Config) ApplyPortOverride(port int) error {
	if err := ValidatePort(port); err != nil {
		return err
	}
	c.Port = port
	return nil
}

// Address returns hostname:port.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}
