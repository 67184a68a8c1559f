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
// Package session contains the handoff commands that talk to a running
// daemon over its WebSocket endpoint.
package session

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/handoff/internal/client"
	"github.com/tombee/handoff/internal/commands/shared"
	"github.com/tombee/handoff/internal/log"
)

// NewCommands returns every session command.
func NewCommands() []*cobra.Command {
	return []*cobra.Command{
		NewEchoCommand(),
		NewStatusCommand(),
		NewStopCommand(),
	}
}

// connect resolves the target daemon and opens a session within the
// command timeout. The returned cancel func also closes the session.
func connect(cmd *cobra.Command) (*client.Client, shared.Target, context.Context, context.CancelFunc, error) {
	target, err := shared.ResolveTarget()
	if err != nil {
		return nil, shared.Target{}, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), shared.GetTimeout())

	c, err := client.Dial(ctx, target.SocketURL(), &client.Options{Logger: clientLogger()})
	if err != nil {
		cancel()
		return nil, target, nil, nil, err
	}

	return c, target, ctx, func() {
		c.Close()
		cancel()
	}, nil
}

// clientLogger writes client diagnostics to stderr; HANDOFF_DEBUG=1 shows
// every frame.
func clientLogger() *slog.Logger {
	cfg := log.FromEnv()
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.Format = log.FormatText
	}
	return log.New(cfg)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// fail emits err as JSON when --json is set and returns it for the exit
// handler.
func fail(cmd *cobra.Command, command string, err error) error {
	if shared.GetJSON() {
		shared.EmitJSONError(cmd.OutOrStdout(), command, err)
	}
	return err
}
