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

// Package dispatch binds the protocol's event handlers to a transport.
//
// Every answering handler decodes the inbound Request, builds exactly one
// Response from a per-invocation envelope.Builder and sends it back on the
// same event. STOP sends its Response before asking the daemon to stop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/handoff/internal/envelope"
	"github.com/tombee/handoff/internal/event"
	"github.com/tombee/handoff/internal/log"
	"github.com/tombee/handoff/internal/metrics"
	"github.com/tombee/handoff/internal/shutdown"
	"github.com/tombee/handoff/internal/transport"
)

// StopMessage is returned in the StopContent of every STOP response.
const StopMessage = "Handoff daemon stopping"

// EchoPrefix is prepended to ECHO content.
const EchoPrefix = "Echo: "

// TracerName is the instrumentation scope of request spans.
const TracerName = "github.com/tombee/handoff/internal/dispatch"

var (
	// ErrUnboundEvent is returned by RegisterHandlers when a catalog event
	// has no handler.
	ErrUnboundEvent = errors.New("dispatch: event has no handler")

	// ErrNoStopper is returned by RegisterHandlers when Config.Stopper is nil.
	ErrNoStopper = errors.New("dispatch: stopper is required")

	// ErrContentRequired is reported to clients that send ECHO without content.
	ErrContentRequired = errors.New("content is required")
)

// Config configures a Dispatcher.
type Config struct {
	// AppName is reported by VERSION.
	AppName string

	// Version is reported by VERSION.
	Version string

	// PID is reported by STOP. Default: os.Getpid()
	PID int64

	// Stopper is signalled after the STOP response, even if sending it failed.
	Stopper shutdown.Stopper

	Logger  *slog.Logger
	Metrics *metrics.Collector

	// Tracer records one span per answered request. Default: the global
	// OpenTelemetry tracer, which does nothing unless a provider is installed.
	Tracer trace.Tracer

	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() string
}

// handler answers one request-carrying event.
type handler struct {
	respond func(ctx context.Context, req envelope.Request) (envelope.Content, error)

	// after runs once the OK response has been written or has failed.
	after func(ctx context.Context, s transport.Session, req envelope.Request)
}

// Dispatcher owns the handler table for the event catalog.
type Dispatcher struct {
	cfg      Config
	logger   *slog.Logger
	mw       *log.Middleware
	metrics  *metrics.Collector
	tracer   trace.Tracer
	handlers map[event.Event]handler
}

// New creates a Dispatcher. Zero-valued optional fields get defaults.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = envelope.NewID
	}
	if cfg.PID == 0 {
		cfg.PID = int64(os.Getpid())
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(TracerName)
	}

	logger := log.WithComponent(cfg.Logger, "dispatch")
	d := &Dispatcher{
		cfg:     cfg,
		logger:  logger,
		mw:      log.NewMiddleware(logger),
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}

	d.handlers = map[event.Event]handler{
		event.Echo:    {respond: d.echo},
		event.Version: {respond: d.version},
		event.Stop:    {respond: d.stop, after: d.requestStop},
	}

	return d
}

// RegisterHandlers binds connect, disconnect and every answering event on t.
// It fails without binding anything if a catalog event has no handler.
func (d *Dispatcher) RegisterHandlers(t transport.Transport) error {
	if d.cfg.Stopper == nil {
		return ErrNoStopper
	}

	for _, e := range event.All() {
		if !e.IsAnswered() {
			continue
		}
		if _, ok := d.handlers[e]; !ok {
			return fmt.Errorf("%w: %s", ErrUnboundEvent, e)
		}
	}

	t.AddConnectListener(d.onConnect)
	t.AddDisconnectListener(d.onDisconnect)
	for _, e := range event.Answered() {
		t.AddEventListener(e, d.listener(e, d.handlers[e]))
	}

	d.logger.Debug("handlers registered", "events", len(event.Answered()))
	return nil
}

// UnregisterHandlers removes the answering bindings. Connect and disconnect
// listeners stay so sessions can still be observed while draining.
func (d *Dispatcher) UnregisterHandlers(t transport.Transport) {
	for _, e := range event.Answered() {
		t.RemoveEventListeners(e)
	}
	d.logger.Debug("handlers unregistered")
}

// base returns a builder stamped with the fields every response shares.
func (d *Dispatcher) base(s transport.Session, e event.Event) envelope.Builder {
	return envelope.NewBuilder().
		ID(d.cfg.NewID()).
		SessionID(s.ID()).
		DateTime(d.cfg.Now().UTC()).
		Event(e)
}

func (d *Dispatcher) onConnect(ctx context.Context, s transport.Session) {
	d.guard(s, event.Connect, func() {
		logger := log.WithSession(d.logger, s.ID())
		logger.Info("session connected")

		resp := d.base(s, event.Connect).Code(event.OK).Build()
		if err := d.send(ctx, s, resp); err != nil {
			logger.Warn("failed to send connect response", log.Error(err))
		}
	})
}

func (d *Dispatcher) onDisconnect(ctx context.Context, s transport.Session) {
	d.logger.Info("session disconnected", log.SessionIDKey, s.ID())
}

// listener adapts a handler to the transport, decoding the request and
// answering with exactly one response.
func (d *Dispatcher) listener(e event.Event, h handler) transport.EventListener {
	return func(ctx context.Context, s transport.Session, payload string) {
		d.guard(s, e, func() {
			d.metrics.EventReceived(e.String())
			log.Trace(d.logger, "frame received",
				slog.String(log.EventKey, e.String()),
				slog.String(log.SessionIDKey, s.ID()),
				slog.String("data", payload))

			ctx, span := d.tracer.Start(ctx, "handoff."+e.String(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("handoff.event", e.String()),
					attribute.String("handoff.session_id", s.ID()),
				))
			defer span.End()

			ex := &log.Exchange{Event: e.String(), SessionID: s.ID()}
			d.mw.Handle(ex, func() log.Outcome {
				out := d.answer(ctx, s, e, h, ex, payload)
				span.SetAttributes(
					attribute.String("handoff.request_id", ex.RequestID),
					attribute.String("handoff.code", out.Code),
				)
				if out.Err != nil {
					span.RecordError(out.Err)
					span.SetStatus(codes.Error, out.Err.Error())
				}
				return out
			})
		})
	}
}

func (d *Dispatcher) answer(ctx context.Context, s transport.Session, e event.Event, h handler, ex *log.Exchange, payload string) log.Outcome {
	b := d.base(s, e)

	req, err := envelope.DecodeRequest([]byte(payload))
	if err != nil {
		d.metrics.FrameDropped(metrics.DropInvalidRequest)
		return d.reject(ctx, s, b, err)
	}
	ex.RequestID = req.ID
	b = b.RequestID(req.ID)

	content, err := h.respond(ctx, req)
	if err != nil {
		return d.reject(ctx, s, b, err)
	}

	out := log.Outcome{Code: event.OK.String()}
	if err := d.send(ctx, s, b.Code(event.OK).Content(content).Build()); err != nil {
		out.Err = err
	}

	// A peer that hung up after sending STOP still stops the daemon.
	if h.after != nil {
		h.after(ctx, s, req)
	}
	return out
}

// reject answers with Not OK and the cause as ErrorContent.
func (d *Dispatcher) reject(ctx context.Context, s transport.Session, b envelope.Builder, cause error) log.Outcome {
	resp := b.Code(event.NotOK).
		Content(envelope.ErrorContent{Message: cause.Error()}).
		Build()

	if err := d.send(ctx, s, resp); err != nil {
		return log.Outcome{Code: event.NotOK.String(), Err: errors.Join(cause, err)}
	}
	return log.Outcome{Code: event.NotOK.String(), Err: cause}
}

func (d *Dispatcher) send(ctx context.Context, s transport.Session, resp envelope.Response) error {
	data, err := resp.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if err := s.Send(ctx, resp.Event, string(data)); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	d.metrics.ResponseSent(resp.Event.String(), resp.Code.String())
	return nil
}

func (d *Dispatcher) echo(ctx context.Context, req envelope.Request) (envelope.Content, error) {
	if !req.HasContent() {
		return nil, ErrContentRequired
	}
	return envelope.EchoContent{Message: EchoPrefix + *req.Content}, nil
}

func (d *Dispatcher) version(ctx context.Context, req envelope.Request) (envelope.Content, error) {
	return envelope.VersionContent{Name: d.cfg.AppName, Version: d.cfg.Version}, nil
}

func (d *Dispatcher) stop(ctx context.Context, req envelope.Request) (envelope.Content, error) {
	return envelope.StopContent{Message: StopMessage, PID: d.cfg.PID}, nil
}

func (d *Dispatcher) requestStop(ctx context.Context, s transport.Session, req envelope.Request) {
	d.metrics.StopRequested()
	if d.cfg.Stopper.RequestStop("STOP from session " + s.ID()) {
		log.WithRequestID(log.WithSession(d.logger, s.ID()), req.ID).
			Info("stop requested by client")
	}
}

// guard contains a panic to the current invocation.
func (d *Dispatcher) guard(s transport.Session, e event.Event, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.HandlerPanicked(e.String())
			d.logger.Error("handler panicked",
				log.SessionIDKey, s.ID(),
				log.EventKey, e.String(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}
