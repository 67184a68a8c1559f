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

package errors_test

import (
	"errors"
	"testing"
	"time"

	handofferrors "github.com/tombee/handoff/pkg/errors"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *handofferrors.ValidationError
		expected string
	}{
		{
			name:     "with field",
			err:      &handofferrors.ValidationError{Field: "port", Message: "must be between 1 and 65535"},
			expected: "validation failed on port: must be between 1 and 65535",
		},
		{
			name:     "without field",
			err:      &handofferrors.ValidationError{Message: "too many arguments"},
			expected: "validation failed: too many arguments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
			if tt.err.IsRetryable() {
				t.Error("validation errors are not retryable")
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	cause := errors.New("yaml: line 3: bad indentation")
	err := &handofferrors.ConfigError{Key: "transport", Reason: "failed to parse", Cause: cause}

	if got := err.Error(); got != "config error at transport: failed to parse" {
		t.Errorf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("ConfigError should unwrap to its cause")
	}
	if err.Suggestion() == "" {
		t.Error("keyed config error should carry a suggestion")
	}

	noKey := &handofferrors.ConfigError{Reason: "unreadable"}
	if got := noKey.Error(); got != "config error: unreadable" {
		t.Errorf("unexpected Error(): %q", got)
	}
	if noKey.Suggestion() != "" {
		t.Error("unkeyed config error should have no suggestion")
	}
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &handofferrors.ConnectionError{Address: "ws://127.0.0.1:10130/socket", Cause: cause}

	if got := err.Error(); got != "cannot connect to handoffd at ws://127.0.0.1:10130/socket: connection refused" {
		t.Errorf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("ConnectionError should unwrap to its cause")
	}
	if !err.IsRetryable() {
		t.Error("connection errors are retryable")
	}
}

func TestResponseError(t *testing.T) {
	tests := []struct {
		name     string
		err      *handofferrors.ResponseError
		expected string
	}{
		{
			name:     "full",
			err:      &handofferrors.ResponseError{Event: "ECHO", RequestID: "abc", Message: "content is required"},
			expected: "ECHO request failed: content is required (request-id: abc)",
		},
		{
			name:     "bare",
			err:      &handofferrors.ResponseError{Event: "STOP"},
			expected: "STOP request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTimeoutError(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &handofferrors.TimeoutError{Operation: "VERSION request", Duration: 5 * time.Second, Cause: cause}

	if got := err.Error(); got != "VERSION request operation timed out after 5s" {
		t.Errorf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("TimeoutError should unwrap to its cause")
	}
}
