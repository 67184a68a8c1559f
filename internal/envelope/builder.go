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
	"time"

	"github.com/tombee/handoff/internal/event"
)

// Builder accumulates Response fields. Every setter has a value receiver and
// returns a new Builder, so a partially applied Builder is a safe template:
//
//	base := envelope.NewBuilder().SessionID(id).Code(event.OK)
//	a := base.Event(event.Echo).Build()
//	b := base.Event(event.Stop).Build() // a is unaffected
//
// Response holds only strings and value-typed Content, so the copy made by
// each setter shares no mutable state.
type Builder struct {
	r Response
}

// NewBuilder returns an empty Builder with the Response type set.
func NewBuilder() Builder {
	return Builder{r: Response{Type: TypeResponse}}
}

// ID sets the response id.
func (b Builder) ID(id string) Builder {
	b.r.ID = id
	return b
}

// RequestID sets the id of the request being answered. Empty when the
// request could not be decoded.
func (b Builder) RequestID(id string) Builder {
	b.r.RequestID = id
	return b
}

// SessionID sets the session the response is sent on.
func (b Builder) SessionID(id string) Builder {
	b.r.SessionID = id
	return b
}

// DateTime sets the timestamp, formatted in UTC with millisecond precision.
func (b Builder) DateTime(t time.Time) Builder {
	b.r.DateTime = FormatTime(t)
	return b
}

// Event sets the event the response is sent on.
func (b Builder) Event(e event.Event) Builder {
	b.r.Event = e
	return b
}

// Content sets the payload. A nil Content is omitted from the JSON.
func (b Builder) Content(c Content) Builder {
	b.r.Content = c
	return b
}

// Code sets the response status.
func (b Builder) Code(c event.Code) Builder {
	b.r.Code = c
	return b
}

// Build returns the accumulated Response.
func (b Builder) Build() Response {
	return b.r
}
