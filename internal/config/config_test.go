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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handofferrors "github.com/tombee/handoff/pkg/errors"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HANDOFF_HOST", "HANDOFF_PORT", "HANDOFF_PID_FILE", "HANDOFF_SHUTDOWN_TIMEOUT",
		"HANDOFF_METRICS_ENABLED", "HANDOFF_TRACING_ENABLED", "HANDOFF_TRACING_EXPORTER",
		"HANDOFF_TRACING_ENDPOINT", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Hostname != "localhost" {
		t.Errorf("expected default hostname localhost, got %q", cfg.Hostname)
	}
	if cfg.Port != 10130 {
		t.Errorf("expected default port 10130, got %d", cfg.Port)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected default shutdown timeout 5s, got %v", cfg.ShutdownTimeout)
	}
	if !cfg.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if cfg.PIDFile != "" {
		t.Errorf("expected no default pid file, got %q", cfg.PIDFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.yaml", `
hostname: 0.0.0.0
port: 12000
shutdown_timeout: 2s
pid_file: /tmp/handoffd.pid
log:
  level: debug
  format: text
metrics:
  enabled: false
transport:
  ping_interval: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Hostname)
	assert.Equal(t, 12000, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/tmp/handoffd.pid", cfg.PIDFile)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Transport.PingInterval)
	// Unset keys keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Transport.WriteTimeout)
}

func TestLoad_JSONFile(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.json", `{"hostname": "127.0.0.1", "port": 10131}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Hostname)
	assert.Equal(t, 10131, cfg.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
	}{
		{
			name:    "malformed yaml",
			content: "port: [",
			key:     "config_file",
		},
		{
			name:    "port out of range",
			content: "port: 70000",
			key:     "validation",
		},
		{
			name:    "bad log level",
			content: "log:\n  level: loud",
			key:     "validation",
		},
		{
			name:    "otlp without endpoint",
			content: "tracing:\n  enabled: true\n  exporter: otlp",
			key:     "validation",
		},
		{
			name:    "unknown exporter",
			content: "tracing:\n  enabled: true\n  exporter: zipkin",
			key:     "validation",
		},
		{
			name:    "negative connect rate",
			content: "transport:\n  connect_rate: -1",
			key:     "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := writeFile(t, "config.yaml", tt.content)

			_, err := Load(path)
			require.Error(t, err)

			var configErr *handofferrors.ConfigError
			require.True(t, errors.As(err, &configErr), "expected ConfigError, got %T", err)
			assert.Equal(t, tt.key, configErr.Key)
		})
	}
}

func TestLoad_TracingAndRateLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("HANDOFF_TRACING_ENDPOINT", "http://collector:4318")

	path := writeFile(t, "config.yaml", `
tracing:
  enabled: true
  exporter: otlp
  sample_rate: 0.25
transport:
  connect_rate: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, ExporterOTLP, cfg.Tracing.Exporter)
	assert.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRate)
	assert.Equal(t, 50.0, cfg.Transport.ConnectRate)
	assert.Equal(t, 1, cfg.Transport.ConnectBurst, "burst defaults to 1 when a rate is set")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", "hostname: filehost\nport: 11000\n")

	t.Setenv("HANDOFF_HOST", "envhost")
	t.Setenv("HANDOFF_PORT", "11001")
	t.Setenv("HANDOFF_PID_FILE", "/run/handoffd.pid")
	t.Setenv("HANDOFF_SHUTDOWN_TIMEOUT", "750ms")
	t.Setenv("HANDOFF_METRICS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_SOURCE", "1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "envhost", cfg.Hostname)
	assert.Equal(t, 11001, cfg.Port)
	assert.Equal(t, "/run/handoffd.pid", cfg.PIDFile)
	assert.Equal(t, 750*time.Millisecond, cfg.ShutdownTimeout)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Log.AddSource)
}

func TestLoad_BadEnv(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{name: "port", key: "HANDOFF_PORT", val: "abc", want: "port"},
		{name: "timeout", key: "HANDOFF_SHUTDOWN_TIMEOUT", val: "soon", want: "shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			var configErr *handofferrors.ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, tt.want, configErr.Key)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("uses XDG file when present", func(t *testing.T) {
		clearEnv(t)
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		require.NoError(t, os.MkdirAll(filepath.Join(xdg, "handoff"), 0700))
		require.NoError(t, os.WriteFile(filepath.Join(xdg, "handoff", "config.yaml"), []byte("port: 10200\n"), 0600))

		cfg, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, 10200, cfg.Port)
	})

	t.Run("missing default file is fine", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		cfg, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPort, cfg.Port)
	})

	t.Run("explicit path must exist", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "handoff", "config.yaml"), path)
}

func TestApplyPortOverride(t *testing.T) {
	tests := []struct {
		port    int
		wantErr bool
	}{
		{port: 1},
		{port: 8080},
		{port: 65535},
		{port: 0, wantErr: true},
		{port: -1, wantErr: true},
		{port: 65536, wantErr: true},
	}

	for _, tt := range tests {
		cfg := Default()
		err := cfg.ApplyPortOverride(tt.port)

		if tt.wantErr {
			var vErr *handofferrors.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("port %d: expected ValidationError, got %v", tt.port, err)
				continue
			}
			if cfg.Port != DefaultPort {
				t.Errorf("port %d: rejected override must not change Port", tt.port)
			}
			continue
		}

		if err != nil {
			t.Errorf("port %d: unexpected error %v", tt.port, err)
		}
		if cfg.Port != tt.port {
			t.Errorf("expected port %d, got %d", tt.port, cfg.Port)
		}
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Hostname = ""
	cfg.ShutdownTimeout = -time.Second
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "hostname")
	assert.Contains(t, err.Error(), "shutdown_timeout")
	assert.Contains(t, err.Error(), "log.format")
}

func TestAddress(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "localhost:10130", cfg.Address())
}
