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

package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tombee/handoff/internal/config"
	"github.com/tombee/handoff/internal/log"
)

// RunOptions configures daemon execution.
type RunOptions struct {
	Version   string
	Commit    string
	BuildDate string

	// ConfigPath is an explicit config file. Empty uses the XDG default if present.
	ConfigPath string

	// Config overrides. Zero values leave the loaded config alone.
	Host    string
	Port    int
	PIDFile string
}

// LoadConfig loads configuration and applies the command-line overrides.
// A port override outside 1..65535 fails here, before anything is bound.
func LoadConfig(opts RunOptions) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Host != "" {
		cfg.Hostname = opts.Host
	}
	if opts.PIDFile != "" {
		cfg.PIDFile = opts.PIDFile
	}
	if opts.Port != 0 {
		if err := cfg.ApplyPortOverride(opts.Port); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Run loads configuration, starts the daemon and blocks until it stops.
// Cancelling ctx (SIGINT/SIGTERM in handoffd) stops the transport directly.
func Run(ctx context.Context, opts RunOptions) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	levelVar := new(slog.LevelVar)
	logger := log.New(&log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		AddSource: cfg.Log.AddSource,
		LevelVar:  levelVar,
	})
	slog.SetDefault(logger)

	d, err := New(cfg, Options{
		Version:   opts.Version,
		Commit:    opts.Commit,
		BuildDate: opts.BuildDate,
		Logger:    logger,
		LogLevel:  levelVar,

		ConfigPath: config.ResolvePath(opts.ConfigPath),
	})
	if err != nil {
		logger.Error("failed to create daemon", log.Error(err))
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	logger.Info("handoffd starting",
		slog.String("version", opts.Version),
		slog.String("commit", opts.Commit),
		slog.String("addr", cfg.Address()))

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon error", log.Error(err))
		return err
	}
	return nil
}
