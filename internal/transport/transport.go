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

// Package transport describes the bidirectional messaging abstraction the
// protocol engine is written against. Concrete transports live in
// subpackages.
//
// Ordering guarantees every implementation must provide:
//
//   - connect listeners for a session complete before any event listener for
//     that session is invoked
//   - disconnect listeners run after every event listener invocation for that
//     session has returned
//
// Event listeners for the same session may run concurrently.
package transport

import (
	"context"

	"github.com/tombee/handoff/internal/event"
)

// Session is one connected client.
type Session interface {
	// ID returns the transport-assigned session identifier.
	ID() string

	// Send delivers payload to the client on the named event.
	Send(ctx context.Context, e event.Event, payload string) error
}

// ConnectListener is invoked once when a session is established.
type ConnectListener func(ctx context.Context, s Session)

// DisconnectListener is invoked once when a session ends.
type DisconnectListener func(ctx context.Context, s Session)

// EventListener is invoked for every inbound payload on a named event.
type EventListener func(ctx context.Context, s Session, payload string)

// Transport is the listener registration surface used by the dispatcher.
type Transport interface {
	AddConnectListener(l ConnectListener)
	AddDisconnectListener(l DisconnectListener)
	AddEventListener(e event.Event, l EventListener)

	// RemoveEventListeners drops every listener bound to e. Frames for e that
	// arrive afterwards are discarded.
	RemoveEventListeners(e event.Event)
}
