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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid flags, arguments, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Hint provides actionable guidance for fixing the error
	Hint string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) IsUserVisible() bool { return true }
func (e *ValidationError) UserMessage() string { return e.Error() }
func (e *ValidationError) Suggestion() string  { return e.Hint }
func (e *ValidationError) ErrorType() string   { return "validation" }
func (e *ValidationError) IsRetryable() bool   { return false }

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "port", "log.level")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func (e *ConfigError) IsUserVisible() bool { return true }
func (e *ConfigError) UserMessage() string { return e.Error() }
func (e *ConfigError) ErrorType() string   { return "config" }
func (e *ConfigError) IsRetryable() bool   { return false }

// Suggestion points at the config file for most keys.
func (e *ConfigError) Suggestion() string {
	if e.Key == "" {
		return ""
	}
	return fmt.Sprintf("Check %q in your config file or the matching HANDOFF_ environment variable", e.Key)
}

// ConnectionError represents a failure to reach the daemon.
type ConnectionError struct {
	// Address is the URL or host:port that was dialed
	Address string

	// Cause is the underlying network error
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot connect to handoffd at %s: %v", e.Address, e.Cause)
	}
	return fmt.Sprintf("cannot connect to handoffd at %s", e.Address)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func (e *ConnectionError) IsUserVisible() bool { return true }
func (e *ConnectionError) ErrorType() string   { return "connection" }
func (e *ConnectionError) IsRetryable() bool   { return true }

// UserMessage omits the low-level cause.
func (e *ConnectionError) UserMessage() string {
	return fmt.Sprintf("handoffd is not reachable at %s", e.Address)
}

// Suggestion tells the user how to start the daemon.
func (e *ConnectionError) Suggestion() string {
	return "Start the daemon with 'handoffd' or pass --host/--port"
}

// ResponseError is a Not OK response returned by the daemon.
type ResponseError struct {
	// Event is the event that was answered
	Event string

	// RequestID correlates this error with the daemon's logs
	RequestID string

	// Message is the content of the daemon's error payload
	Message string
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s request failed", e.Event)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request-id: %s)", msg, e.RequestID)
	}
	return msg
}

func (e *ResponseError) IsUserVisible() bool { return true }
func (e *ResponseError) UserMessage() string { return e.Error() }
func (e *ResponseError) Suggestion() string  { return "" }
func (e *ResponseError) ErrorType() string   { return "response" }
func (e *ResponseError) IsRetryable() bool   { return false }

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "ECHO request", "connect")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

func (e *TimeoutError) IsUserVisible() bool { return true }
func (e *TimeoutError) UserMessage() string { return e.Error() }
func (e *TimeoutError) Suggestion() string  { return "Increase --timeout or check that handoffd is responsive" }
func (e *TimeoutError) ErrorType() string   { return "timeout" }
func (e *TimeoutError) IsRetryable() bool   { return true }
