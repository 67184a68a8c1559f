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

/*
Package envelope defines the JSON shapes exchanged between handoff clients and
the daemon.

A client sends a Request on a named event:

	{
	    "type": "Request",
	    "id": "abc",
	    "dateTime": "2024-04-22T20:02:09.952Z",
	    "event": "ECHO",
	    "content": "hi"
	}

and the daemon answers on the same event with a Response whose content is a
tagged union discriminated by its "type" field:

	{
	    "type": "Response",
	    "id": "5d1c...",
	    "requestId": "abc",
	    "sessionId": "9f0e...",
	    "dateTime": "2024-04-22T20:02:10.004Z",
	    "event": "ECHO",
	    "content": {"type": "Echo", "message": "Echo: hi"},
	    "code": "OK"
	}

Responses are assembled with Builder, an immutable value type that can be
shared as a template between goroutines.
*/
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tombee/handoff/internal/event"
)

const (
	// TypeRequest is the constant "type" of every Request.
	TypeRequest = "Request"

	// TypeResponse is the constant "type" of every Response.
	TypeResponse = "Response"

	// DateTimeLayout renders UTC instants with millisecond precision and a
	// trailing "Z".
	DateTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var (
	// ErrDecode is returned when a payload is not a well-formed envelope.
	ErrDecode = errors.New("envelope: malformed payload")

	// ErrUnknownContentType is returned when a content tag is not recognized.
	ErrUnknownContentType = errors.New("envelope: unknown content type")
)

// Request is sent by a client on one of the answered events.
type Request struct {
	Type     string      `json:"type"`
	ID       string      `json:"id"`
	DateTime string      `json:"dateTime,omitempty"`
	Event    event.Event `json:"event"`

	// Content is nil when the client omitted it or sent null.
	Content *string `json:"content,omitempty"`
}

// NewRequest creates a request with a generated id stamped at now.
func NewRequest(e event.Event, content *string, now time.Time) Request {
	return Request{
		Type:     TypeRequest,
		ID:       NewID(),
		DateTime: FormatTime(now),
		Event:    e,
		Content:  content,
	}
}

// HasContent reports whether the client supplied content.
func (r Request) HasContent() bool {
	return r.Content != nil
}

// Marshal encodes the request to JSON.
func (r Request) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest parses a JSON-encoded Request. Only structure is checked.
func DecodeRequest(data []byte) (Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Request{}, fmt.Errorf("%w: empty request", ErrDecode)
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if req.Type != "" && req.Type != TypeRequest {
		return Request{}, fmt.Errorf("%w: unexpected type %q", ErrDecode, req.Type)
	}

	return req, nil
}

// Response is sent by the daemon. Use Builder to construct one.
type Response struct {
	Type      string      `json:"type"`
	ID        string      `json:"id"`
	RequestID string      `json:"requestId"`
	SessionID string      `json:"sessionId"`
	DateTime  string      `json:"dateTime"`
	Event     event.Event `json:"event"`
	Content   Content     `json:"content,omitempty"`
	Code      event.Code  `json:"code"`
}

// responseWire mirrors Response with undecoded content.
type responseWire struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	RequestID string          `json:"requestId"`
	SessionID string          `json:"sessionId"`
	DateTime  string          `json:"dateTime"`
	Event     event.Event     `json:"event"`
	Content   json.RawMessage `json:"content,omitempty"`
	Code      event.Code      `json:"code"`
}

// Marshal encodes the response to JSON.
func (r Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalJSON decodes a response, dispatching content on its tag.
func (r *Response) UnmarshalJSON(data []byte) error {
	var wire responseWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	content, err := DecodeContent(wire.Content)
	if err != nil {
		return err
	}

	*r = Response{
		Type:      wire.Type,
		ID:        wire.ID,
		RequestID: wire.RequestID,
		SessionID: wire.SessionID,
		DateTime:  wire.DateTime,
		Event:     wire.Event,
		Content:   content,
		Code:      wire.Code,
	}
	return nil
}

// DecodeResponse parses a JSON-encoded Response.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		if errors.Is(err, ErrDecode) || errors.Is(err, ErrUnknownContentType) {
			return Response{}, err
		}
		return Response{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if resp.Type != TypeResponse {
		return Response{}, fmt.Errorf("%w: unexpected type %q", ErrDecode, resp.Type)
	}

	return resp, nil
}

// NewID returns a random 128-bit identifier in canonical string form.
func NewID() string {
	return uuid.New().String()
}

// FormatTime renders t in UTC as yyyy-MM-ddTHH:mm:ss.sssZ.
func FormatTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// ParseTime parses a dateTime field produced by FormatTime or any ISO-8601
// timestamp with millisecond precision and explicit offset.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(DateTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("envelope: invalid dateTime %q: %w", s, err)
	}
	return t, nil
}
