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
package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	handofferrors "github.com/tombee/handoff/pkg/errors"
)

// Exit codes for handoff commands
const (
	ExitSuccess     = 0
	ExitFailure     = 1 // Request answered Not OK, or an internal error
	ExitConfigError = 2 // Invalid flags or configuration
	ExitUnavailable = 3 // Daemon not reachable
	ExitTimeout     = 4 // Daemon did not answer in time
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUnavailableError creates an error for an unreachable or unhealthy daemon
func NewUnavailableError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitUnavailable,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for invalid flags or configuration
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConfigError,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCode returns the process exit code for err. An ExitError's own code
// wins; otherwise the code follows the error's classification.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch handofferrors.Classify(err) {
	case "validation", "config":
		return ExitConfigError
	case "connection":
		return ExitUnavailable
	case "timeout":
		return ExitTimeout
	default:
		return ExitFailure
	}
}

// PrintError writes err and, when one exists in the chain, a suggestion.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}

	msg := err.Error()
	if uv, ok := handofferrors.AsUserVisible(err); ok {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			msg = uv.UserMessage()
		}
		fmt.Fprintln(w, RenderError("Error: "+msg))
		if s := uv.Suggestion(); s != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", s)
		}
		return
	}

	fmt.Fprintln(w, RenderError("Error: "+msg))
}

// HandleExitError prints err to stderr and exits with its exit code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	PrintError(os.Stderr, err)
	os.Exit(ExitCode(err))
}
