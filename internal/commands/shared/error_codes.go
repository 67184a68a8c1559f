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

	handofferrors "github.com/tombee/handoff/pkg/errors"
)

// Error codes for structured JSON output
const (
	// Input errors (E001-E099)
	ErrorCodeInvalidInput  = "E001" // Invalid flag or argument
	ErrorCodeInvalidConfig = "E002" // Invalid configuration

	// Daemon errors (E100-E199)
	ErrorCodeUnavailable = "E101" // Daemon not reachable
	ErrorCodeTimeout     = "E102" // Daemon did not answer in time
	ErrorCodeNotOK       = "E103" // Request answered Not OK

	// Internal errors (E400-E499)
	ErrorCodeInternal = "E402"
)

// ErrorCode maps err to its JSON error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var respErr *handofferrors.ResponseError
	if errors.As(err, &respErr) {
		return ErrorCodeNotOK
	}

	switch handofferrors.Classify(err) {
	case "validation":
		return ErrorCodeInvalidInput
	case "config":
		return ErrorCodeInvalidConfig
	}

	switch ExitCode(err) {
	case ExitConfigError:
		return ErrorCodeInvalidConfig
	case ExitUnavailable:
		return ErrorCodeUnavailable
	case ExitTimeout:
		return ErrorCodeTimeout
	}
	return ErrorCodeInternal
}
