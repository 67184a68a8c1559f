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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v (output: %s)", err, buf.String())
	}
	return entry
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}

	if cfg.Format != FormatJSON {
		t.Errorf("expected default format 'json', got %q", cfg.Format)
	}

	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}

	if cfg.AddSource {
		t.Errorf("expected default AddSource to be false")
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name      string
		envVars   map[string]string
		level     string
		format    Format
		addSource bool
	}{
		{
			name:    "defaults when no env vars",
			envVars: map[string]string{},
			level:   "info",
			format:  FormatJSON,
		},
		{
			name:    "LOG_LEVEL=DEBUG (case insensitive)",
			envVars: map[string]string{"LOG_LEVEL": "DEBUG"},
			level:   "debug",
			format:  FormatJSON,
		},
		{
			name:    "LOG_FORMAT=text",
			envVars: map[string]string{"LOG_FORMAT": "text"},
			level:   "info",
			format:  FormatText,
		},
		{
			name:      "LOG_SOURCE=1",
			envVars:   map[string]string{"LOG_SOURCE": "1"},
			level:     "info",
			format:    FormatJSON,
			addSource: true,
		},
		{
			name: "HANDOFF_LOG_LEVEL wins over LOG_LEVEL",
			envVars: map[string]string{
				"HANDOFF_LOG_LEVEL": "warn",
				"LOG_LEVEL":         "error",
			},
			level:  "warn",
			format: FormatJSON,
		},
		{
			name: "HANDOFF_DEBUG wins over everything",
			envVars: map[string]string{
				"HANDOFF_DEBUG":     "1",
				"HANDOFF_LOG_LEVEL": "error",
			},
			level:     "debug",
			format:    FormatJSON,
			addSource: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"HANDOFF_DEBUG", "HANDOFF_LOG_LEVEL", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := FromEnv()

			if cfg.Level != tt.level {
				t.Errorf("expected level %q, got %q", tt.level, cfg.Level)
			}
			if cfg.Format != tt.format {
				t.Errorf("expected format %q, got %q", tt.format, cfg.Format)
			}
			if cfg.AddSource != tt.addSource {
				t.Errorf("expected AddSource %v, got %v", tt.addSource, cfg.AddSource)
			}
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&Config{Level: "debug", Format: FormatJSON, Output: &buf})
	logger.Info("test message", "key", "value")

	entry := decodeLine(t, &buf)

	if entry["msg"] != "test message" {
		t.Errorf("expected msg field to be 'test message', got: %v", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("expected key field to be 'value', got: %v", entry["key"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("expected level field to be 'INFO', got: %v", entry["level"])
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&Config{Level: "info", Format: FormatText, Output: &buf})
	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected output to contain 'key=value', got: %s", output)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if New(nil) == nil {
		t.Fatal("expected logger for nil config")
	}
	if New(&Config{}) == nil {
		t.Fatal("expected logger for zero config")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if level := ParseLevel(tt.input); level != tt.expected {
				t.Errorf("expected level %v, got %v", tt.expected, level)
			}
		})
	}
}

func TestLogLevel_Filtering(t *testing.T) {
	tests := []struct {
		name          string
		configLevel   string
		logFunc       func(*slog.Logger)
		shouldContain bool
	}{
		{
			name:          "debug log at info level",
			configLevel:   "info",
			logFunc:       func(l *slog.Logger) { l.Debug("debug message") },
			shouldContain: false,
		},
		{
			name:          "info log at info level",
			configLevel:   "info",
			logFunc:       func(l *slog.Logger) { l.Info("info message") },
			shouldContain: true,
		},
		{
			name:          "trace log at debug level",
			configLevel:   "debug",
			logFunc:       func(l *slog.Logger) { Trace(l, "frame") },
			shouldContain: false,
		},
		{
			name:          "trace log at trace level",
			configLevel:   "trace",
			logFunc:       func(l *slog.Logger) { Trace(l, "frame", slog.String("data", "x")) },
			shouldContain: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			logger := New(&Config{Level: tt.configLevel, Format: FormatJSON, Output: &buf})
			tt.logFunc(logger)

			contains := buf.Len() > 0
			if contains != tt.shouldContain {
				t.Errorf("expected log output=%v, got output=%v (output: %s)", tt.shouldContain, contains, buf.String())
			}
		})
	}
}

func TestNew_LevelVar(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := New(&Config{Level: "warn", Format: FormatText, Output: &buf, LevelVar: levelVar})

	if levelVar.Level() != slog.LevelWarn {
		t.Fatalf("expected LevelVar set to warn, got %v", levelVar.Level())
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn, got %q", buf.String())
	}

	levelVar.Set(slog.LevelDebug)
	logger.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected debug output after lowering the level, got %q", buf.String())
	}
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})
	logger = WithComponent(logger, "dispatch")
	logger = WithSession(logger, "sess-1")
	logger = WithRequestID(logger, "req-1")
	logger.Info("handled", Error(errors.New("boom")))

	entry := decodeLine(t, &buf)

	want := map[string]string{
		ComponentKey: "dispatch",
		SessionIDKey: "sess-1",
		RequestIDKey: "req-1",
		"error":      "boom",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("expected %s=%q, got %v", k, v, entry[k])
		}
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil {
		t.Fatal("expected logger")
	}
	logger.Error("dropped")
}
