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

// Package shutdown provides the one-shot stop signal shared between protocol
// handlers and the daemon's main goroutine.
package shutdown

import (
	"context"
	"log/slog"
	"sync"
)

// State is the coordinator's position in its lifecycle.
type State int

const (
	// Running means no stop has been requested.
	Running State = iota
	// StopRequested means RequestStop has been called at least once.
	StopRequested
	// Stopped means the owner has finished tearing down.
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop_requested"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stopper is the narrow view handlers get of the coordinator.
type Stopper interface {
	RequestStop(reason string) bool
}

// Coordinator records whether a stop has been requested and wakes waiters.
// The state only moves forward.
type Coordinator struct {
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	reason string
	done   chan struct{}
}

var _ Stopper = (*Coordinator)(nil)

// New returns a coordinator in the Running state.
func New(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// RequestStop moves Running to StopRequested and wakes every waiter. It
// returns true only for the call that made the transition; later calls are
// no-ops.
func (c *Coordinator) RequestStop(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running {
		c.logger.Debug("stop already requested", "reason", reason)
		return false
	}

	c.state = StopRequested
	c.reason = reason
	close(c.done)

	c.logger.Info("stop requested", "reason", reason)
	return true
}

// Wait blocks until a stop has been requested and returns nil. If ctx ends
// first its error is returned; that is not a stop request.
func (c *Coordinator) Wait(ctx context.Context) error {
	for {
		if c.stopRequested() {
			return nil
		}

		select {
		case <-c.done:
		case <-ctx.Done():
			// A stop may have raced the cancellation.
			if c.stopRequested() {
				return nil
			}
			return ctx.Err()
		}
	}
}

func (c *Coordinator) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != Running
}

// MarkStopped records that teardown finished. A stop is implied if none was
// requested, so Done is always closed afterwards.
func (c *Coordinator) MarkStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running {
		close(c.done)
	}
	c.state = Stopped
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reason returns the reason passed to the transitioning RequestStop call.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Done is closed once the coordinator leaves Running.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
