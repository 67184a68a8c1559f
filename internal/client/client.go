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

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tombee/handoff/internal/envelope"
	"github.com/tombee/handoff/internal/event"
	"github.com/tombee/handoff/internal/log"
	"github.com/tombee/handoff/internal/transport/ws"
	handofferrors "github.com/tombee/handoff/pkg/errors"
)

// DefaultTimeout bounds the connect handshake when the context has no deadline.
const DefaultTimeout = 10 * time.Second

var (
	// ErrClosed is returned by calls made on, or interrupted by, a closed connection.
	ErrClosed = errors.New("client: connection closed")

	// ErrNotRequestEvent is returned by Call for events that take no request.
	ErrNotRequestEvent = errors.New("client: event does not accept requests")

	// ErrUnexpectedContent is returned when a response carries the wrong content variant.
	ErrUnexpectedContent = errors.New("client: unexpected response content")
)

// Options configures Dial. The zero value is usable.
type Options struct {
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Header is sent with the upgrade request.
	Header http.Header

	Logger *slog.Logger
}

// Client is one session with handoffd.
type Client struct {
	url       string
	conn      *websocket.Conn
	logger    *slog.Logger
	sessionID string

	// writeMu serializes writers; gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan envelope.Response
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

// URL returns the socket URL for a daemon on host:port.
func URL(host string, port int) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   ws.Path,
	}
	return u.String()
}

// Dial connects to rawURL and waits for the EVENT_CONNECT response.
func Dial(ctx context.Context, rawURL string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := dialer.DialContext(ctx, rawURL, opts.Header)
	if err != nil {
		return nil, &handofferrors.ConnectionError{Address: rawURL, Cause: err}
	}

	c := &Client{
		url:     rawURL,
		conn:    conn,
		logger:  log.WithComponent(logger, "client"),
		pending: make(map[string]chan envelope.Response),
		done:    make(chan struct{}),
	}

	if err := c.handshake(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

// handshake reads frames until the EVENT_CONNECT response arrives.
func (c *Client) handshake(ctx context.Context) error {
	start := time.Now()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = start.Add(DefaultTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return &handofferrors.ConnectionError{Address: c.url, Cause: err}
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return &handofferrors.TimeoutError{
					Operation: "connect handshake",
					Duration:  time.Since(start),
					Cause:     err,
				}
			}
			return &handofferrors.ConnectionError{Address: c.url, Cause: err}
		}

		resp, err := decodeFrame(data)
		if err != nil {
			c.logger.Debug("ignoring frame before connect", log.Error(err))
			continue
		}
		if resp.Event != event.Connect {
			continue
		}
		if resp.Code != event.OK {
			return &handofferrors.ConnectionError{
				Address: c.url,
				Cause:   fmt.Errorf("connect answered %q", resp.Code),
			}
		}

		c.sessionID = resp.SessionID
		return c.conn.SetReadDeadline(time.Time{})
	}
}

// SessionID returns the ID the daemon assigned to this session.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Done is closed when the connection ends, by Close or by the daemon.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Echo sends ECHO with message and returns the echoed text.
func (c *Client) Echo(ctx context.Context, message string) (string, error) {
	resp, err := c.Call(ctx, event.Echo, &message)
	if err != nil {
		return "", err
	}
	content, ok := resp.Content.(envelope.EchoContent)
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnexpectedContent, resp.Content)
	}
	return content.Message, nil
}

// Version asks the daemon for its name and version.
func (c *Client) Version(ctx context.Context) (envelope.VersionContent, error) {
	resp, err := c.Call(ctx, event.Version, nil)
	if err != nil {
		return envelope.VersionContent{}, err
	}
	content, ok := resp.Content.(envelope.VersionContent)
	if !ok {
		return envelope.VersionContent{}, fmt.Errorf("%w: %T", ErrUnexpectedContent, resp.Content)
	}
	return content, nil
}

// Stop asks the daemon to shut down. The returned content carries its pid.
func (c *Client) Stop(ctx context.Context) (envelope.StopContent, error) {
	resp, err := c.Call(ctx, event.Stop, nil)
	if err != nil {
		return envelope.StopContent{}, err
	}
	content, ok := resp.Content.(envelope.StopContent)
	if !ok {
		return envelope.StopContent{}, fmt.Errorf("%w: %T", ErrUnexpectedContent, resp.Content)
	}
	return content, nil
}

// Call sends a request on e and waits for the matching response. A "Not OK"
// response is returned along with a *errors.ResponseError.
func (c *Client) Call(ctx context.Context, e event.Event, content *string) (envelope.Response, error) {
	if !e.IsAnswered() {
		return envelope.Response{}, fmt.Errorf("%w: %s", ErrNotRequestEvent, e)
	}

	req := envelope.NewRequest(e, content, time.Now())
	ch := make(chan envelope.Response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return envelope.Response{}, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	start := time.Now()
	if err := c.send(ctx, req); err != nil {
		c.forget(req.ID)
		return envelope.Response{}, err
	}

	var resp envelope.Response
	select {
	case resp = <-ch:
	case <-ctx.Done():
		c.forget(req.ID)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return envelope.Response{}, &handofferrors.TimeoutError{
				Operation: string(e) + " request",
				Duration:  time.Since(start),
				Cause:     ctx.Err(),
			}
		}
		return envelope.Response{}, ctx.Err()
	case <-c.done:
		// The reply may have been delivered just before the connection ended.
		select {
		case resp = <-ch:
		default:
			c.forget(req.ID)
			return envelope.Response{}, c.Err()
		}
	}

	if resp.Code != event.OK {
		msg := ""
		if ec, ok := resp.Content.(envelope.ErrorContent); ok {
			msg = ec.Message
		}
		return resp, &handofferrors.ResponseError{
			Event:     string(e),
			RequestID: req.ID,
			Message:   msg,
		}
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req envelope.Request) error {
	payload, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	frame, err := json.Marshal(ws.Frame{Event: req.Event, Data: string(payload)})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop delivers responses to pending calls until the connection ends.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}

		resp, err := decodeFrame(data)
		if err != nil {
			c.logger.Warn("dropping undecodable frame", log.Error(err))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.RequestID]
		delete(c.pending, resp.RequestID)
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("dropping uncorrelated response",
				slog.String(log.EventKey, string(resp.Event)),
				slog.String(log.RequestIDKey, resp.RequestID))
			continue
		}
		ch <- resp
	}
}

// fail records why the connection ended and releases waiters.
func (c *Client) fail(cause error) {
	c.mu.Lock()
	if c.err == nil {
		if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.err = fmt.Errorf("%w: %v", ErrClosed, cause)
		} else {
			c.err = &handofferrors.ConnectionError{Address: c.url, Cause: cause}
		}
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.closeOnce.Do(func() { close(c.done) })
	return err
}

func decodeFrame(data []byte) (envelope.Response, error) {
	var frame ws.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return envelope.Response{}, fmt.Errorf("%w: %v", envelope.ErrDecode, err)
	}
	return envelope.DecodeResponse([]byte(frame.Data))
}
