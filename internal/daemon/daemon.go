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

// Package daemon runs handoffd: it binds the transport, binds the protocol
// handlers, waits for a stop request and drains.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tombee/handoff/internal/config"
	"github.com/tombee/handoff/internal/dispatch"
	"github.com/tombee/handoff/internal/lifecycle"
	internallog "github.com/tombee/handoff/internal/log"
	"github.com/tombee/handoff/internal/metrics"
	"github.com/tombee/handoff/internal/shutdown"
	"github.com/tombee/handoff/internal/tracing"
	"github.com/tombee/handoff/internal/transport/ws"
	handofferrors "github.com/tombee/handoff/pkg/errors"
)

// DefaultAppName is reported by VERSION when Options.AppName is empty.
const DefaultAppName = "handoffd"

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("daemon: already started")

// State is the lifecycle state of a Daemon.
type State int32

const (
	StateInit State = iota
	StateBound
	StateListening
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBound:
		return "bound"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options contains daemon options set at build time.
type Options struct {
	AppName   string
	Version   string
	Commit    string
	BuildDate string

	// Logger defaults to a logger built from the config's log section.
	Logger *slog.Logger

	// Registry receives the daemon's metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry

	// ConfigPath is watched for changes while the daemon runs. Empty disables reload.
	ConfigPath string

	// LogLevel backs Logger's handler; reloads set it from log.level.
	LogLevel *slog.LevelVar

	// TraceWriter receives spans from the stdout exporter. Default: os.Stderr
	TraceWriter io.Writer
}

// Daemon is the handoffd process controller.
type Daemon struct {
	cfg         *config.Config
	opts        Options
	logger      *slog.Logger
	metrics     *metrics.Collector
	server      *ws.Server
	coordinator *shutdown.Coordinator
	dispatcher  *dispatch.Dispatcher
	tracer      *tracing.Provider

	// pidFile is set only while this process holds the PID file.
	pidFile *lifecycle.PIDFileManager

	state atomic.Int32
	ready chan struct{}

	mu      sync.Mutex
	started bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a daemon in StateInit. Nothing is bound until Run.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("daemon: config is required")
	}
	if opts.AppName == "" {
		opts.AppName = DefaultAppName
	}

	logger := opts.Logger
	if logger == nil {
		if opts.LogLevel == nil {
			opts.LogLevel = new(slog.LevelVar)
		}
		logger = internallog.New(&internallog.Config{
			Level:     cfg.Log.Level,
			Format:    internallog.Format(cfg.Log.Format),
			AddSource: cfg.Log.AddSource,
			LevelVar:  opts.LogLevel,
		})
	}
	logger = internallog.WithComponent(logger, "daemon")

	dispatchCfg := dispatch.Config{
		AppName: opts.AppName,
		Version: opts.Version,
		PID:     int64(os.Getpid()),
		Logger:  logger,
	}

	var provider *tracing.Provider
	if cfg.Tracing.Enabled {
		p, err := tracing.New(context.Background(), tracing.Config{
			ServiceName:    opts.AppName,
			ServiceVersion: opts.Version,
			Exporter:       cfg.Tracing.Exporter,
			Endpoint:       cfg.Tracing.Endpoint,
			SampleRate:     cfg.Tracing.SampleRate,
			Writer:         opts.TraceWriter,
		})
		if err != nil {
			return nil, fmt.Errorf("daemon: %w", err)
		}
		provider = p
		dispatchCfg.Tracer = p.Tracer(dispatch.TracerName)
	}

	collector := metrics.New(opts.Registry)
	coordinator := shutdown.New(logger)

	server := ws.NewServer(&ws.Config{
		Host:            cfg.Hostname,
		Port:            cfg.Port,
		ShutdownTimeout: cfg.ShutdownTimeout,
		WriteTimeout:    cfg.Transport.WriteTimeout,
		PingInterval:    cfg.Transport.PingInterval,
		ReadLimit:       cfg.Transport.ReadLimit,
		ConnectRate:     cfg.Transport.ConnectRate,
		ConnectBurst:    cfg.Transport.ConnectBurst,
		Logger:          internallog.WithComponent(logger, "ws"),
		Metrics:         collector,
	})

	dispatchCfg.Stopper = coordinator
	dispatchCfg.Metrics = collector
	dispatcher := dispatch.New(dispatchCfg)

	d := &Daemon{
		cfg:         cfg,
		opts:        opts,
		logger:      logger,
		metrics:     collector,
		server:      server,
		coordinator: coordinator,
		dispatcher:  dispatcher,
		tracer:      provider,
		ready:       make(chan struct{}),
	}

	server.Handle("/health", d.healthHandler())
	if cfg.Metrics.Enabled {
		server.Handle("/metrics", collector.Handler())
	}

	return d, nil
}

// Run binds the listener, serves until a STOP request or ctx cancellation,
// then drains. It returns nil after an orderly stop and an error when the
// transport cannot start.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	d.started = true
	d.mu.Unlock()

	if err := d.start(); err != nil {
		d.Shutdown(context.Background())
		return err
	}

	d.logger.Info("handoffd listening",
		slog.String("addr", d.server.Addr().String()),
		slog.String("version", d.opts.Version))

	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if d.opts.ConfigPath != "" {
		w, err := config.NewWatcher(d.opts.ConfigPath, d.logger, d.applyConfig)
		if err != nil {
			d.logger.Warn("config reload disabled", internallog.Error(err))
		} else {
			go w.Run(waitCtx)
		}
	}

	go func() {
		select {
		case err := <-d.server.Errors():
			cancel(fmt.Errorf("transport failed: %w", err))
		case <-waitCtx.Done():
		}
	}()

	err := d.coordinator.Wait(waitCtx)
	switch {
	case err == nil:
		d.logger.Info("stop requested, draining",
			slog.String("reason", d.coordinator.Reason()))
	case ctx.Err() != nil:
		d.logger.Info("terminated externally, stopping transport")
	default:
		cause := context.Cause(waitCtx)
		d.Shutdown(context.Background())
		return cause
	}

	if err := d.Shutdown(context.Background()); err != nil {
		d.logger.Warn("shutdown incomplete", internallog.Error(err))
	}
	return nil
}

// start moves the daemon from Init to Listening.
func (d *Daemon) start() error {
	if err := d.server.Listen(); err != nil {
		return handofferrors.Wrap(err, "transport startup failed")
	}
	d.setState(StateBound)

	if d.cfg.PIDFile != "" {
		pidFile := lifecycle.NewPIDFileManager(d.cfg.PIDFile)
		stale, err := pidFile.Acquire(os.Getpid())
		if err != nil {
			return handofferrors.Wrapf(err, "failed to write PID file %s", pidFile.Path())
		}
		if stale != 0 {
			d.logger.Warn("replaced stale PID file",
				slog.String("path", pidFile.Path()),
				slog.Int("stale_pid", stale))
		}
		d.mu.Lock()
		d.pidFile = pidFile
		d.mu.Unlock()
	}

	if err := d.dispatcher.RegisterHandlers(d.server); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}

	if err := d.server.Serve(); err != nil {
		return fmt.Errorf("transport startup failed: %w", err)
	}

	d.setState(StateListening)
	close(d.ready)
	return nil
}

// Shutdown drains the daemon: answering handlers are unbound, the transport
// is shut down and the PID file removed. Only the first call does any work;
// later calls return its result.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.shutdownOnce.Do(func() {
		start := time.Now()
		d.setState(StateDraining)

		d.dispatcher.UnregisterHandlers(d.server)

		if err := d.server.Shutdown(ctx); err != nil && !errors.Is(err, ws.ErrServerClosed) {
			d.shutdownErr = fmt.Errorf("transport shutdown: %w", err)
		}

		if d.tracer != nil {
			if err := d.tracer.Shutdown(ctx); err != nil {
				d.logger.Warn("failed to flush spans", internallog.Error(err))
			}
		}

		d.removePIDFile()
		d.coordinator.MarkStopped()
		d.setState(StateStopped)

		d.logger.Info("handoffd stopped",
			slog.Duration("drain", time.Since(start)))
	})
	return d.shutdownErr
}

func (d *Daemon) removePIDFile() {
	d.mu.Lock()
	pidFile := d.pidFile
	d.pidFile = nil
	d.mu.Unlock()

	if pidFile == nil {
		return
	}
	if err := pidFile.Remove(); err != nil {
		d.logger.Error("failed to remove PID file",
			internallog.Error(err),
			slog.String("path", pidFile.Path()))
	}
}

// applyConfig takes the settings that can change without a restart from a
// reloaded config. Only the log level applies live.
func (d *Daemon) applyConfig(cfg *config.Config) {
	if d.opts.LogLevel != nil {
		level := internallog.ParseLevel(cfg.Log.Level)
		if d.opts.LogLevel.Level() != level {
			d.opts.LogLevel.Set(level)
			d.logger.Info("log level changed", slog.String("level", level.String()))
		}
	}
	if cfg.Address() != d.cfg.Address() {
		d.logger.Warn("listener address changed, restart handoffd to apply",
			slog.String("current", d.cfg.Address()),
			slog.String("configured", cfg.Address()))
	}
}

// State returns the current lifecycle state.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

func (d *Daemon) setState(s State) {
	d.state.Store(int32(s))
	d.logger.Debug("daemon state", slog.String("state", s.String()))
}

// Ready is closed once the daemon is listening.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the bound address, or nil before the listener is bound.
func (d *Daemon) Addr() net.Addr {
	return d.server.Addr()
}

// Metrics returns the daemon's metric collector.
func (d *Daemon) Metrics() *metrics.Collector {
	return d.metrics
}
