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

// Package event defines the closed catalog of named events and response codes
// understood by the handoff protocol.
package event

import (
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned when a name is not part of the catalog.
var ErrUnknownEvent = errors.New("event: unknown event")

// Event is the wire-level name of a protocol event.
type Event string

const (
	// Connect is sent by the daemon to a session right after it connects.
	Connect Event = "EVENT_CONNECT"

	// Disconnect is observed when a session ends. Nothing is sent.
	Disconnect Event = "EVENT_DISCONNECT"

	// Echo returns the request content prefixed with "Echo: ".
	Echo Event = "ECHO"

	// Stop answers and then asks the daemon to shut down.
	Stop Event = "STOP"

	// Version returns the daemon name and build version.
	Version Event = "VERSION"
)

// All returns every event in the catalog in a stable order.
func All() []Event {
	return []Event{Connect, Disconnect, Echo, Stop, Version}
}

// Answered returns the events that carry a client Request and get a
// correlated Response. These are the bindings removed during drain.
func Answered() []Event {
	return []Event{Echo, Stop, Version}
}

// Parse converts a wire name to an Event.
func Parse(name string) (Event, error) {
	e := Event(name)
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	return e, nil
}

// Valid reports whether e is in the catalog.
func (e Event) Valid() bool {
	switch e {
	case Connect, Disconnect, Echo, Stop, Version:
		return true
	}
	return false
}

// IsAnswered reports whether e is a request-answering event.
func (e Event) IsAnswered() bool {
	switch e {
	case Echo, Stop, Version:
		return true
	}
	return false
}

func (e Event) String() string {
	return string(e)
}

// Code is the outcome carried in every Response.
type Code string

const (
	// OK marks a successfully handled request.
	OK Code = "OK"

	// NotOK marks a request the daemon could not handle.
	NotOK Code = "Not OK"
)

// Valid reports whether c is a known response code.
func (c Code) Valid() bool {
	return c == OK || c == NotOK
}

func (c Code) String() string {
	return string(c)
}
