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
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/handoff/internal/event"
	"github.com/tombee/handoff/internal/transport"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(&Config{
		Host:   "127.0.0.1",
		Port:   0,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { server.Close() })
	return server
}

func startServer(t *testing.T, server *Server) string {
	t.Helper()
	require.NoError(t, server.Listen())
	require.NoError(t, server.Serve())
	return "ws://" + server.Addr().String() + Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, e event.Event, data string) {
	t.Helper()
	raw, err := json.Marshal(Frame{Event: e, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func echoListener(ctx context.Context, s transport.Session, payload string) {
	_ = s.Send(ctx, event.Echo, "echo:"+payload)
}

func TestConfig_Defaults(t *testing.T) {
	config := DefaultConfig()

	if config.Host != "localhost" {
		t.Errorf("expected default host localhost, got %q", config.Host)
	}

	if config.ShutdownTimeout != 5*time.Second {
		t.Errorf("expected default shutdown timeout 5s, got %v", config.ShutdownTimeout)
	}

	if config.ReadLimit != 1<<20 {
		t.Errorf("expected default read limit 1MiB, got %d", config.ReadLimit)
	}

	if config.Logger == nil {
		t.Error("expected default logger, got nil")
	}
}

func TestNewServer_FillsDefaults(t *testing.T) {
	server := NewServer(&Config{Port: 1234})

	if server.config.Host != "localhost" {
		t.Errorf("expected host defaulted, got %q", server.config.Host)
	}
	if server.config.PingInterval != 30*time.Second {
		t.Errorf("expected ping interval defaulted, got %v", server.config.PingInterval)
	}
	if server.logger == nil {
		t.Error("expected logger, got nil")
	}
	if server.Addr() != nil {
		t.Error("expected nil Addr before Listen")
	}
}

func TestServer_ServeBeforeListen(t *testing.T) {
	server := newTestServer(t)
	assert.ErrorIs(t, server.Serve(), ErrNotListening)
}

func TestServer_BindConflict(t *testing.T) {
	first := newTestServer(t)
	require.NoError(t, first.Listen())

	port := first.Addr().(*net.TCPAddr).Port

	second := NewServer(&Config{
		Host:   "127.0.0.1",
		Port:   port,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	err := second.Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind")
}

func TestServer_RoundTrip(t *testing.T) {
	server := newTestServer(t)

	var connected atomic.Int32
	server.AddConnectListener(func(ctx context.Context, s transport.Session) {
		assert.NotEmpty(t, s.ID())
		connected.Add(1)
	})
	server.AddEventListener(event.Echo, echoListener)

	conn := dial(t, startServer(t, server))

	writeFrame(t, conn, event.Echo, "hello")
	f := readFrame(t, conn)

	assert.Equal(t, event.Echo, f.Event)
	assert.Equal(t, "echo:hello", f.Data)
	assert.Equal(t, int32(1), connected.Load())
	assert.Equal(t, 1, server.SessionCount())
}

func TestServer_DropsUnroutableFrames(t *testing.T) {
	server := newTestServer(t)
	server.AddEventListener(event.Echo, echoListener)

	conn := dial(t, startServer(t, server))

	// None of these produce a reply; the session must survive them.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	writeFrame(t, conn, event.Event("BOGUS"), "x")
	writeFrame(t, conn, event.Version, "no listener")

	writeFrame(t, conn, event.Echo, "after")
	f := readFrame(t, conn)
	assert.Equal(t, "echo:after", f.Data)
}

func TestServer_RemoveEventListeners(t *testing.T) {
	server := newTestServer(t)
	server.AddEventListener(event.Echo, echoListener)
	server.AddEventListener(event.Version, func(ctx context.Context, s transport.Session, payload string) {
		_ = s.Send(ctx, event.Version, "v")
	})

	conn := dial(t, startServer(t, server))

	server.RemoveEventListeners(event.Echo)

	writeFrame(t, conn, event.Echo, "dropped")
	writeFrame(t, conn, event.Version, "")

	f := readFrame(t, conn)
	assert.Equal(t, event.Version, f.Event, "removed listener must not answer")
}

func TestServer_ListenerPanicIsContained(t *testing.T) {
	server := newTestServer(t)
	server.AddEventListener(event.Stop, func(ctx context.Context, s transport.Session, payload string) {
		panic("boom")
	})
	server.AddEventListener(event.Echo, echoListener)

	conn := dial(t, startServer(t, server))

	writeFrame(t, conn, event.Stop, "")
	writeFrame(t, conn, event.Echo, "still here")

	f := readFrame(t, conn)
	assert.Equal(t, "echo:still here", f.Data)
}

func TestServer_DisconnectAfterInflight(t *testing.T) {
	server := newTestServer(t)

	release := make(chan struct{})
	started := make(chan struct{})
	var mu sync.Mutex
	var order []string

	server.AddEventListener(event.Echo, func(ctx context.Context, s transport.Session, payload string) {
		close(started)
		<-release
		mu.Lock()
		order = append(order, "event")
		mu.Unlock()
	})
	server.AddDisconnectListener(func(ctx context.Context, s transport.Session) {
		mu.Lock()
		order = append(order, "disconnect")
		mu.Unlock()
	})

	conn := dial(t, startServer(t, server))
	writeFrame(t, conn, event.Echo, "slow")

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never started")
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"event", "disconnect"}, order)
}

func TestServer_ShutdownClosesSessions(t *testing.T) {
	server := newTestServer(t)

	var disconnected atomic.Int32
	server.AddDisconnectListener(func(ctx context.Context, s transport.Session) {
		disconnected.Add(1)
	})

	conn := dial(t, startServer(t, server))
	require.Eventually(t, func() bool { return server.SessionCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, server.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)

	assert.Equal(t, int32(1), disconnected.Load())
	assert.Equal(t, 0, server.SessionCount())
}

func TestServer_ShutdownWaitsForInflightListeners(t *testing.T) {
	server := newTestServer(t)

	started := make(chan struct{})
	release := make(chan struct{})
	server.AddEventListener(event.Echo, func(ctx context.Context, s transport.Session, payload string) {
		close(started)
		<-release
		echoListener(ctx, s, payload)
	})

	conn := dial(t, startServer(t, server))
	writeFrame(t, conn, event.Echo, "slow")

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never started")
	}

	done := make(chan error, 1)
	go func() { done <- server.Shutdown(context.Background()) }()

	require.Eventually(t, func() bool {
		select {
		case <-server.shutdownCh:
			return true
		default:
			return false
		}
	}, 5*time.Second, time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Shutdown returned while a listener was running: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	f := readFrame(t, conn)
	assert.Equal(t, "echo:slow", f.Data)

	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}

func TestServer_ShutdownTimeoutClosesBusySessions(t *testing.T) {
	server := NewServer(&Config{
		Host:            "127.0.0.1",
		ShutdownTimeout: 100 * time.Millisecond,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { server.Close() })

	started := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	server.AddEventListener(event.Echo, func(ctx context.Context, s transport.Session, payload string) {
		close(started)
		<-release
	})

	conn := dial(t, startServer(t, server))
	writeFrame(t, conn, event.Echo, "stuck")
	<-started

	assert.ErrorIs(t, server.Shutdown(context.Background()), ErrShutdownTimeout)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseGoingAway, closeErr.Code)
}

func TestServer_ShutdownIdempotent(t *testing.T) {
	server := newTestServer(t)
	startServer(t, server)

	require.NoError(t, server.Shutdown(context.Background()))
	assert.ErrorIs(t, server.Shutdown(context.Background()), ErrServerClosed)
	assert.ErrorIs(t, server.Listen(), ErrServerClosed)
}

func TestSession_SendAfterClose(t *testing.T) {
	server := newTestServer(t)

	sessions := make(chan transport.Session, 1)
	server.AddConnectListener(func(ctx context.Context, s transport.Session) {
		sessions <- s
	})

	dial(t, startServer(t, server))

	var sess transport.Session
	select {
	case sess = <-sessions:
	case <-time.After(5 * time.Second):
		t.Fatal("no session")
	}

	require.NoError(t, server.Shutdown(context.Background()))
	assert.ErrorIs(t, sess.Send(context.Background(), event.Echo, "late"), ErrSessionClosed)
}

func TestServer_ConnectRateLimit(t *testing.T) {
	server := NewServer(&Config{
		Host:         "127.0.0.1",
		ConnectRate:  0.001,
		ConnectBurst: 1,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { server.Close() })
	url := startServer(t, server)

	dial(t, url)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}
