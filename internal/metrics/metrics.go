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

// Package metrics holds the Prometheus collectors exported by handoffd.
//
// A nil *Collector is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "handoff"

// Drop reasons recorded by FrameDropped.
const (
	DropMalformedFrame = "malformed_frame"
	DropUnknownEvent   = "unknown_event"
	DropNoListener     = "no_listener"
	DropInvalidRequest = "invalid_request"
	DropShuttingDown   = "shutting_down"

	// RejectRateLimited and RejectShuttingDown are SessionRejected reasons.
	RejectRateLimited  = "rate_limited"
	RejectShuttingDown = "shutting_down"
)

// Collector owns a registry and the daemon's collectors.
type Collector struct {
	registry *prometheus.Registry

	eventsReceived *prometheus.CounterVec
	responsesSent  *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	handlerPanics  *prometheus.CounterVec
	activeSessions prometheus.Gauge
	sessionsTotal  prometheus.Counter
	sessionsReject *prometheus.CounterVec
	stopRequests   prometheus.Counter
}

// New registers the collectors on reg. A nil reg gets a fresh registry with
// the Go and process collectors attached.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		// eventsReceived tracks request frames handed to a listener
		eventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_received_total",
				Help:      "Total inbound events by event name",
			},
			[]string{"event"},
		),

		// responsesSent tracks responses by event and response code
		responsesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_sent_total",
				Help:      "Total responses sent by event name and response code",
			},
			[]string{"event", "code"},
		),

		framesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Total inbound frames discarded by reason",
			},
			[]string{"reason"},
		),

		handlerPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_panics_total",
				Help:      "Total recovered listener panics by event name",
			},
			[]string{"event"},
		),

		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of currently connected sessions",
			},
		),

		sessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total sessions accepted since start",
			},
		),

		sessionsReject: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_rejected_total",
				Help:      "Total upgrade requests refused before a session was created",
			},
			[]string{"reason"},
		),

		stopRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stop_requests_total",
				Help:      "Total STOP requests received",
			},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// EventReceived increments the inbound event counter.
func (c *Collector) EventReceived(event string) {
	if c == nil {
		return
	}
	c.eventsReceived.WithLabelValues(event).Inc()
}

// ResponseSent increments the response counter.
func (c *Collector) ResponseSent(event, code string) {
	if c == nil {
		return
	}
	c.responsesSent.WithLabelValues(event, code).Inc()
}

// FrameDropped increments the dropped frame counter.
func (c *Collector) FrameDropped(reason string) {
	if c == nil {
		return
	}
	c.framesDropped.WithLabelValues(reason).Inc()
}

// HandlerPanicked increments the recovered panic counter.
func (c *Collector) HandlerPanicked(event string) {
	if c == nil {
		return
	}
	c.handlerPanics.WithLabelValues(event).Inc()
}

// SessionOpened records a new session.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
	c.sessionsTotal.Inc()
}

// SessionClosed records a session ending.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}

// SessionRejected records an upgrade refused before a session existed.
func (c *Collector) SessionRejected(reason string) {
	if c == nil {
		return
	}
	c.sessionsReject.WithLabelValues(reason).Inc()
}

// StopRequested increments the STOP counter.
func (c *Collector) StopRequested() {
	if c == nil {
		return
	}
	c.stopRequests.Inc()
}
