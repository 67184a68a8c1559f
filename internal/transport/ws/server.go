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
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tombee/handoff/internal/event"
	"github.com/tombee/handoff/internal/metrics"
	"github.com/tombee/handoff/internal/transport"
)

// Path is the route the WebSocket endpoint is mounted on.
const Path = "/socket"

var (
	// ErrServerClosed is returned when operations are attempted on a closed server.
	ErrServerClosed = errors.New("ws: server closed")

	// ErrNotListening is returned by Serve when Listen has not succeeded.
	ErrNotListening = errors.New("ws: server not listening")

	// ErrShutdownTimeout is returned when graceful shutdown exceeds the timeout.
	ErrShutdownTimeout = errors.New("ws: shutdown timeout exceeded")
)

// Config configures the WebSocket server.
type Config struct {
	// Host is the interface to bind. Default: localhost
	Host string

	// Port is the TCP port to bind. Zero picks an ephemeral port.
	Port int

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 5 seconds
	ShutdownTimeout time.Duration

	// WriteTimeout bounds each frame write. Default: 10 seconds
	WriteTimeout time.Duration

	// PingInterval is how often idle sessions are pinged. A session that
	// does not answer within twice this interval is dropped.
	// Default: 30 seconds
	PingInterval time.Duration

	// ReadLimit is the maximum inbound frame size in bytes. Default: 1 MiB
	ReadLimit int64

	// ConnectRate limits upgrades per second; excess requests get 429.
	// Zero disables the limit.
	ConnectRate float64

	// ConnectBurst is the token bucket size for ConnectRate. Default: 1
	ConnectBurst int

	// Logger is the structured logger for server events.
	// If nil, a default logger is used.
	Logger *slog.Logger

	// Metrics records session and frame counters. May be nil.
	Metrics *metrics.Collector
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		ShutdownTimeout: 5 * time.Second,
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		ReadLimit:       1 << 20,
		Logger:          slog.Default(),
	}
}

// Server is a transport.Transport backed by WebSocket connections.
type Server struct {
	config   *Config
	logger   *slog.Logger
	metrics  *metrics.Collector
	upgrader websocket.Upgrader
	limiter  *rate.Limiter
	mux      *http.ServeMux

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	closed     bool

	// Listener registry
	listenerMu          sync.RWMutex
	connectListeners    []transport.ConnectListener
	disconnectListeners []transport.DisconnectListener
	eventListeners      map[event.Event][]transport.EventListener

	// Session tracking
	connMu   sync.Mutex
	sessions map[string]*session
	connWG   sync.WaitGroup

	// Shutdown coordination
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	errCh        chan error
}

var _ transport.Transport = (*Server)(nil)

// NewServer creates a new WebSocket server with the given configuration.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	defaults := DefaultConfig()
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.PingInterval == 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.ReadLimit == 0 {
		config.ReadLimit = defaults.ReadLimit
	}

	s := &Server{
		config:  config,
		logger:  config.Logger,
		metrics: config.Metrics,
		upgrader: websocket.Upgrader{
			// Local clients only; origin is not meaningful here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:            http.NewServeMux(),
		eventListeners: make(map[event.Event][]transport.EventListener),
		sessions:       make(map[string]*session),
		shutdownCh:     make(chan struct{}),
		errCh:          make(chan error, 1),
	}
	if config.ConnectRate > 0 {
		burst := config.ConnectBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(config.ConnectRate), burst)
	}
	s.mux.HandleFunc(Path, s.handleWebSocket)

	return s
}

// Handle mounts an additional HTTP route next to the WebSocket endpoint.
// Must be called before Serve.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Listen binds the configured address. The bind error is returned as is so
// callers can treat it as fatal.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	lc := net.ListenConfig{Control: reuseAddrControl}
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = listener

	s.logger.Debug("ws server bound", "addr", listener.Addr().String())
	return nil
}

// Serve starts accepting connections in the background. Errors from the
// underlying HTTP server are delivered on Errors.
func (s *Server) Serve() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.listener == nil {
		return ErrNotListening
	}
	if s.httpServer != nil {
		return nil
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		// WriteTimeout intentionally omitted to support long-lived WebSocket connections
	}

	httpServer := s.httpServer
	listener := s.listener
	go func() {
		s.logger.Info("ws server starting", "addr", listener.Addr().String())

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ws server error", "error", err)
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()

	return nil
}

// Errors reports unexpected failures of the accept loop.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.sessions)
}

// AddConnectListener implements transport.Transport.
func (s *Server) AddConnectListener(l transport.ConnectListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.connectListeners = append(s.connectListeners, l)
}

// AddDisconnectListener implements transport.Transport.
func (s *Server) AddDisconnectListener(l transport.DisconnectListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.disconnectListeners = append(s.disconnectListeners, l)
}

// AddEventListener implements transport.Transport.
func (s *Server) AddEventListener(e event.Event, l transport.EventListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.eventListeners[e] = append(s.eventListeners[e], l)
}

// RemoveEventListeners implements transport.Transport.
func (s *Server) RemoveEventListeners(e event.Event) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	delete(s.eventListeners, e)
}

func (s *Server) listenersFor(e event.Event) []transport.EventListener {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	return append([]transport.EventListener(nil), s.eventListeners[e]...)
}

// handleWebSocket handles WebSocket upgrade requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		s.metrics.SessionRejected(metrics.RejectShuttingDown)
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.SessionRejected(metrics.RejectRateLimited)
		s.logger.Warn("websocket upgrade rate limited", "remote", r.RemoteAddr)
		w.Header().Set("Retry-After", "1")
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sess := newSession(uuid.NewString(), conn, s.config.WriteTimeout)

	// Re-check under connMu so Shutdown cannot miss a session registered
	// concurrently with it.
	s.connMu.Lock()
	select {
	case <-s.shutdownCh:
		s.connMu.Unlock()
		sess.close(websocket.CloseGoingAway, "server shutdown")
		return
	default:
	}
	s.sessions[sess.id] = sess
	s.connWG.Add(1)
	s.connMu.Unlock()

	s.logger.Info("websocket connection established",
		"remote", r.RemoteAddr,
		"session_id", sess.id)

	go s.handleConnection(sess)
}

// handleConnection manages a WebSocket connection lifecycle.
func (s *Server) handleConnection(sess *session) {
	ctx := context.Background()
	conn := sess.conn

	var inflight sync.WaitGroup
	done := make(chan struct{})

	defer s.connWG.Done()
	defer func() {
		close(done)

		// Disconnect listeners only run once every in-flight event
		// listener for this session has returned.
		inflight.Wait()
		s.notifyDisconnect(ctx, sess)

		s.connMu.Lock()
		delete(s.sessions, sess.id)
		s.connMu.Unlock()

		select {
		case <-s.shutdownCh:
			sess.close(websocket.CloseGoingAway, "server shutdown")
		default:
			sess.close(websocket.CloseNormalClosure, "")
		}
		s.metrics.SessionClosed()
		s.logger.Info("websocket connection closed", "session_id", sess.id)
	}()

	s.metrics.SessionOpened()
	s.notifyConnect(ctx, sess)

	pongWait := 2 * s.config.PingInterval
	conn.SetReadLimit(s.config.ReadLimit)
	if !sess.extendRead(time.Now().Add(pongWait)) {
		return
	}
	conn.SetPongHandler(func(string) error {
		sess.extendRead(time.Now().Add(pongWait))
		return nil
	})

	go s.pingLoop(sess, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", "session_id", sess.id, "error", err)
			}
			return
		}
		// Frames read after the drain began are not dispatched.
		if !sess.extendRead(time.Now().Add(pongWait)) {
			s.metrics.FrameDropped(metrics.DropShuttingDown)
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			s.logger.Debug("dropping malformed frame", "session_id", sess.id, "size", len(message), "error", err)
			s.metrics.FrameDropped(metrics.DropMalformedFrame)
			continue
		}

		e, err := event.Parse(string(frame.Event))
		if err != nil {
			s.logger.Debug("dropping frame for unknown event", "session_id", sess.id, "event", frame.Event)
			s.metrics.FrameDropped(metrics.DropUnknownEvent)
			continue
		}

		listeners := s.listenersFor(e)
		if len(listeners) == 0 {
			s.logger.Debug("dropping frame with no listener", "session_id", sess.id, "event", e)
			s.metrics.FrameDropped(metrics.DropNoListener)
			continue
		}

		inflight.Add(1)
		go func(payload string) {
			defer inflight.Done()
			for _, l := range listeners {
				s.invokeEvent(ctx, sess, e, l, payload)
			}
		}(frame.Data)
	}
}

// pingLoop keeps the connection alive until done is closed.
func (s *Server) pingLoop(sess *session, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// WriteControl may be called concurrently with other writers.
			if err := sess.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(s.config.WriteTimeout)); err != nil {
				s.logger.Debug("ping failed", "session_id", sess.id, "error", err)
				return
			}
		}
	}
}

func (s *Server) notifyConnect(ctx context.Context, sess *session) {
	s.listenerMu.RLock()
	listeners := append([]transport.ConnectListener(nil), s.connectListeners...)
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		s.guard(sess, event.Connect, func() { l(ctx, sess) })
	}
}

func (s *Server) notifyDisconnect(ctx context.Context, sess *session) {
	s.listenerMu.RLock()
	listeners := append([]transport.DisconnectListener(nil), s.disconnectListeners...)
	s.listenerMu.RUnlock()

	for _, l := range listeners {
		s.guard(sess, event.Disconnect, func() { l(ctx, sess) })
	}
}

func (s *Server) invokeEvent(ctx context.Context, sess *session, e event.Event, l transport.EventListener, payload string) {
	s.guard(sess, e, func() { l(ctx, sess, payload) })
}

// guard runs fn, containing any panic to the current invocation.
func (s *Server) guard(sess *session, e event.Event, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.HandlerPanicked(e.String())
			s.logger.Error("listener panicked",
				"session_id", sess.id,
				"event", e,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Shutdown drains the server. Sessions stop reading new frames, listeners
// already dispatched run to completion and may still send, then every
// session is closed with GoingAway and the HTTP server stops. Sessions still
// busy after ShutdownTimeout are closed anyway and ErrShutdownTimeout is
// returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.closed = true
	httpServer := s.httpServer
	listener := s.listener
	s.mu.Unlock()

	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info("ws server shutting down")

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		s.connMu.Lock()
		close(s.shutdownCh)
		sessions := s.snapshotSessions()
		s.connMu.Unlock()

		for _, sess := range sessions {
			sess.stopReading()
		}

		// Each session goroutine waits for its in-flight listeners, runs
		// the disconnect listeners and sends the close frame.
		waited := make(chan struct{})
		go func() {
			s.connWG.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-shutdownCtx.Done():
			shutdownErr = ErrShutdownTimeout
			s.connMu.Lock()
			remaining := s.snapshotSessions()
			s.connMu.Unlock()
			s.logger.Warn("drain timed out, closing busy sessions", "sessions", len(remaining))
			for _, sess := range remaining {
				sess.close(websocket.CloseGoingAway, "server shutdown")
			}
		}

		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				httpServer.Close()
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		} else if listener != nil {
			if err := listener.Close(); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}

		if errors.Is(shutdownErr, context.DeadlineExceeded) {
			shutdownErr = ErrShutdownTimeout
		}

		s.logger.Info("ws server shutdown complete")
	})

	return shutdownErr
}

// snapshotSessions copies the open sessions. connMu must be held.
func (s *Server) snapshotSessions() []*session {
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Close shuts the server down bounded only by ShutdownTimeout.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}
