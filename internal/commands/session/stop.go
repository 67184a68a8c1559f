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
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/handoff/internal/commands/shared"
	"github.com/tombee/handoff/internal/lifecycle"
	handofferrors "github.com/tombee/handoff/pkg/errors"
)

// StopResult is the JSON output of the stop command.
type StopResult struct {
	shared.JSONResponse
	Message string `json:"message"`
	PID     int64  `json:"pid"`
	Stopped bool   `json:"stopped"`
}

// NewStopCommand creates the stop command
func NewStopCommand() *cobra.Command {
	var wait, yes bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the daemon to stop",
		Long: `Send a STOP request. The daemon answers, drains its sessions and exits.

With --wait the command returns only once the health endpoint stops
answering, or fails after --timeout.

On a terminal the command asks for confirmation first; --yes skips it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !shared.GetJSON() && shared.IsInteractive() {
				ok, err := shared.Confirm("Stop handoffd?", "Open sessions are closed once the daemon drains.")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}
			return runStop(cmd, wait)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the daemon to exit")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runStop(cmd *cobra.Command, wait bool) error {
	c, target, ctx, done, err := connect(cmd)
	if err != nil {
		return fail(cmd, "stop", err)
	}
	defer done()

	stop, err := c.Stop(ctx)
	if err != nil {
		return fail(cmd, "stop", err)
	}

	result := StopResult{
		JSONResponse: shared.NewJSONResponse("stop"),
		Message:      stop.Message,
		PID:          stop.PID,
	}

	if wait {
		if err := waitForExit(ctx, target.HealthURL()); err != nil {
			if !shared.GetJSON() {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s (pid %d)", result.Message, result.PID)))
				fmt.Fprintln(out, shared.RenderWarn(fmt.Sprintf("handoffd (pid %d) is still running", result.PID)))
			}
			return fail(cmd, "stop", err)
		}
		result.Stopped = true
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, result)
	}

	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s (pid %d)", result.Message, result.PID)))
	if result.Stopped {
		fmt.Fprintln(out, shared.RenderOK("handoffd exited"))
	}
	return nil
}

// waitForExit polls the health endpoint until the listener is gone.
func waitForExit(ctx context.Context, healthURL string) error {
	checker := lifecycle.NewHealthChecker(healthURL)
	start := time.Now()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if result := checker.Check(ctx); result.StatusCode == 0 && ctx.Err() == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return &handofferrors.TimeoutError{
				Operation: "stop",
				Duration:  time.Since(start),
				Cause:     ctx.Err(),
			}
		case <-ticker.C:
		}
	}
}
