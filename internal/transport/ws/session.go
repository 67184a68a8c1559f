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

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tombee/handoff/internal/event"
)

// ErrSessionClosed is returned by Send after the session has been closed.
var ErrSessionClosed = errors.New("ws: session closed")

// Frame is the unit exchanged on the socket.
type Frame struct {
	Event event.Event `json:"event"`
	Data  string      `json:"data"`
}

// session is the server side of one WebSocket connection.
type session struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	// mu serializes writers; gorilla/websocket allows one concurrent writer.
	mu     sync.Mutex
	closed bool

	// readMu guards the read deadline so a drain cannot be undone by the
	// read loop extending it.
	readMu   sync.Mutex
	draining bool
}

func newSession(id string, conn *websocket.Conn, writeTimeout time.Duration) *session {
	return &session{
		id:           id,
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// ID returns the session ID.
func (s *session) ID() string {
	return s.id
}

// Send writes a frame for e carrying payload.
func (s *session) Send(ctx context.Context, e event.Event, payload string) error {
	data, err := json.Marshal(Frame{Event: e, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	deadline := time.Now().Add(s.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// extendRead moves the read deadline to deadline. It reports false once
// the session is draining, and the caller must stop reading.
func (s *session) extendRead(deadline time.Time) bool {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if s.draining {
		return false
	}
	return s.conn.SetReadDeadline(deadline) == nil
}

// stopReading unblocks the read loop without touching the write side, so
// responses from listeners already running can still be sent.
func (s *session) stopReading() {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	s.draining = true
	_ = s.conn.SetReadDeadline(time.Now())
}

// close sends a close frame and releases the connection. Safe to call more
// than once.
func (s *session) close(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)
	_ = s.conn.Close()
}
