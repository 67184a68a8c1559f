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

package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ContentType is the discriminator carried in the "type" field of every
// Content payload. It is the only way to tell variants apart on decode.
type ContentType string

const (
	ContentVersion ContentType = "Version"
	ContentStop    ContentType = "Stop"
	ContentEcho    ContentType = "Echo"
	ContentError   ContentType = "Error"
)

// Content is the polymorphic payload of a Response. The set of variants is
// closed: VersionContent, StopContent, EchoContent and ErrorContent.
type Content interface {
	ContentType() ContentType
	isContent()
}

// VersionContent answers a VERSION request.
type VersionContent struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (VersionContent) ContentType() ContentType { return ContentVersion }
func (VersionContent) isContent()               {}

// MarshalJSON adds the "type" discriminator.
func (c VersionContent) MarshalJSON() ([]byte, error) {
	type plain VersionContent
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		plain
	}{ContentVersion, plain(c)})
}

// StopContent answers a STOP request.
type StopContent struct {
	Message string `json:"message"`
	PID     int64  `json:"pid"`
}

func (StopContent) ContentType() ContentType { return ContentStop }
func (StopContent) isContent()               {}

// MarshalJSON adds the "type" discriminator.
func (c StopContent) MarshalJSON() ([]byte, error) {
	type plain StopContent
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		plain
	}{ContentStop, plain(c)})
}

// EchoContent answers an ECHO request.
type EchoContent struct {
	Message string `json:"message"`
}

func (EchoContent) ContentType() ContentType { return ContentEcho }
func (EchoContent) isContent()               {}

// MarshalJSON adds the "type" discriminator.
func (c EchoContent) MarshalJSON() ([]byte, error) {
	type plain EchoContent
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		plain
	}{ContentEcho, plain(c)})
}

// ErrorContent accompanies a Not OK response.
type ErrorContent struct {
	Message string `json:"message"`
}

func (ErrorContent) ContentType() ContentType { return ContentError }
func (ErrorContent) isContent()               {}

// MarshalJSON adds the "type" discriminator.
func (c ErrorContent) MarshalJSON() ([]byte, error) {
	type plain ErrorContent
	return json.Marshal(struct {
		Type ContentType `json:"type"`
		plain
	}{ContentError, plain(c)})
}

// DecodeContent decodes a tagged Content payload. A missing or null payload
// decodes to nil. Unrecognized tags return ErrUnknownContentType.
func DecodeContent(raw json.RawMessage) (Content, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var head struct {
		Type ContentType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrDecode, err)
	}

	var (
		content Content
		err     error
	)
	switch head.Type {
	case ContentVersion:
		var c VersionContent
		err = json.Unmarshal(raw, &c)
		content = c
	case ContentStop:
		var c StopContent
		err = json.Unmarshal(raw, &c)
		content = c
	case ContentEcho:
		var c EchoContent
		err = json.Unmarshal(raw, &c)
		content = c
	case ContentError:
		var c ErrorContent
		err = json.Unmarshal(raw, &c)
		content = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentType, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s content: %v", ErrDecode, head.Type, err)
	}

	return content, nil
}
