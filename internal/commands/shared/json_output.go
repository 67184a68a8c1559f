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
	"encoding/json"
	"io"

	handofferrors "github.com/tombee/handoff/pkg/errors"
)

// JSONVersion is the schema version of every JSON document the CLI emits.
const JSONVersion = "1.0"

// JSONResponse is the base envelope for all JSON output
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// NewJSONResponse returns a successful base envelope for command.
func NewJSONResponse(command string) JSONResponse {
	return JSONResponse{Version: JSONVersion, Command: command, Success: true}
}

// JSONError represents a structured error with code, message and suggestion
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// NewJSONError builds a JSONError from err.
func NewJSONError(err error) JSONError {
	je := JSONError{
		Code:    ErrorCode(err),
		Message: err.Error(),
	}
	if uv, ok := handofferrors.AsUserVisible(err); ok {
		je.Suggestion = uv.Suggestion()
	}
	var respErr *handofferrors.ResponseError
	if handofferrors.As(err, &respErr) {
		je.RequestID = respErr.RequestID
	}
	return je
}

// EmitJSON writes response as indented JSON.
func EmitJSON(w io.Writer, response any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// EmitJSONError writes a failed JSON response for command.
func EmitJSONError(w io.Writer, command string, errs ...error) error {
	type errorResponse struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}

	resp := errorResponse{
		JSONResponse: JSONResponse{
			Version: JSONVersion,
			Command: command,
			Success: false,
		},
	}
	for _, err := range errs {
		resp.Errors = append(resp.Errors, NewJSONError(err))
	}

	return EmitJSON(w, resp)
}
