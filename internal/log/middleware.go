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
	"context"
	"log/slog"
	"time"
)

// Exchange describes one request/response pair for logging purposes.
type Exchange struct {
	// Event is the protocol event name (e.g. "ECHO").
	Event string

	// SessionID identifies the transport session.
	SessionID string

	// RequestID is the client's correlation ID, empty when none was decoded.
	RequestID string
}

// Outcome is what a handler reports back to the middleware.
type Outcome struct {
	// Code is the response code that was sent.
	Code string

	// Err is set when the exchange failed.
	Err error
}

func (ex *Exchange) attrs() []any {
	attrs := []any{
		EventKey, ex.Event,
		SessionIDKey, ex.SessionID,
	}
	if ex.RequestID != "" {
		attrs = append(attrs, RequestIDKey, ex.RequestID)
	}
	return attrs
}

// LogReceived logs an inbound request at debug level.
func LogReceived(logger *slog.Logger, ex *Exchange) {
	logger.Debug("request received", ex.attrs()...)
}

// LogCompleted logs the end of an exchange. Failures are logged at warn.
func LogCompleted(logger *slog.Logger, ex *Exchange, out Outcome, duration time.Duration) {
	attrs := append(ex.attrs(),
		CodeKey, out.Code,
		DurationKey, duration.Milliseconds(),
	)

	level := slog.LevelInfo
	message := "request completed"

	if out.Err != nil {
		attrs = append(attrs, "error", out.Err.Error())
		level = slog.LevelWarn
		message = "request failed"
	}

	logger.Log(context.Background(), level, message, attrs...)
}

// Middleware wraps protocol handlers with request/response logging.
type Middleware struct {
	logger *slog.Logger
}

// NewMiddleware creates a new logging middleware.
func NewMiddleware(logger *slog.Logger) *Middleware {
	return &Middleware{
		logger: logger,
	}
}

// Handle logs ex, runs handler, then logs the outcome with its duration.
// The handler may fill in ex.RequestID once it has decoded the request.
func (m *Middleware) Handle(ex *Exchange, handler func() Outcome) Outcome {
	start := time.Now()

	LogReceived(m.logger, ex)
	out := handler()
	LogCompleted(m.logger, ex, out, time.Since(start))

	return out
}
