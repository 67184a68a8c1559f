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
package session

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tombee/handoff/internal/client"
	"github.com/tombee/handoff/internal/commands/shared"
	"github.com/tombee/handoff/internal/lifecycle"
	handofferrors "github.com/tombee/handoff/pkg/errors"
)

// StatusResult is the JSON output of the status command.
type StatusResult struct {
	shared.JSONResponse
	Address   string `json:"address"`
	Status    string `json:"status"`
	Name      string `json:"name"`
	Daemon    string `json:"daemon_version"`
	SessionID string `json:"session_id"`
	PID       int    `json:"pid,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Check the daemon's health endpoint and ask it for its version.

Exits 3 when the daemon is unreachable, draining or stopped.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	target, err := shared.ResolveTarget()
	if err != nil {
		return fail(cmd, "status", err)
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), shared.GetTimeout())
	defer cancel()

	health := lifecycle.NewHealthChecker(target.HealthURL()).Check(ctx)
	if health.StatusCode == 0 {
		return fail(cmd, "status", &handofferrors.ConnectionError{
			Address: target.Address(),
			Cause:   health.Error,
		})
	}
	if !health.Success {
		status := health.Status.Status
		if status == "" {
			status = fmt.Sprintf("unhealthy (HTTP %d)", health.StatusCode)
		}
		return fail(cmd, "status", shared.NewUnavailableError("handoffd at "+target.Address()+" is "+status, health.Error))
	}

	c, err := client.Dial(ctx, target.SocketURL(), nil)
	if err != nil {
		return fail(cmd, "status", err)
	}
	defer c.Close()

	info, err := c.Version(ctx)
	if err != nil {
		return fail(cmd, "status", err)
	}

	result := StatusResult{
		JSONResponse: shared.NewJSONResponse("status"),
		Address:      target.Address(),
		Status:       health.Status.Status,
		Name:         info.Name,
		Daemon:       info.Version,
		SessionID:    c.SessionID(),
		LatencyMS:    health.ResponseTime.Milliseconds(),
	}
	if target.PIDFile != "" {
		if pid, err := lifecycle.NewPIDFileManager(target.PIDFile).Read(); err == nil {
			result.PID = pid
		}
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, result)
	}

	fmt.Fprintln(out, shared.RenderOK(shared.Bold.Render(result.Name)+" is "+result.Status))
	fmt.Fprintln(out, "  "+shared.RenderField("address", result.Address))
	fmt.Fprintln(out, "  "+shared.RenderField("version", result.Daemon))
	fmt.Fprintln(out, "  "+shared.RenderField("session", result.SessionID))
	if result.PID != 0 {
		fmt.Fprintln(out, "  "+shared.RenderField("pid", strconv.Itoa(result.PID)))
	}
	fmt.Fprintln(out, "  "+shared.RenderField("latency", fmt.Sprintf("%dms", result.LatencyMS)))
	return nil
}
