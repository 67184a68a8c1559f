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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/handoff/internal/commands/shared"
)

// EchoResult is the JSON output of the echo command.
type EchoResult struct {
	shared.JSONResponse
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// NewEchoCommand creates the echo command
func NewEchoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "echo <message>...",
		Short: "Send an ECHO request",
		Long: `Send an ECHO request and print the daemon's answer.

Arguments are joined with single spaces.`,
		Example: `  handoff echo hello
  handoff echo --json "hello world"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runEcho,
	}
}

func runEcho(cmd *cobra.Command, args []string) error {
	c, _, ctx, done, err := connect(cmd)
	if err != nil {
		return fail(cmd, "echo", err)
	}
	defer done()

	content, err := c.Echo(ctx, strings.Join(args, " "))
	if err != nil {
		return fail(cmd, "echo", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, EchoResult{
			JSONResponse: shared.NewJSONResponse("echo"),
			SessionID:    c.SessionID(),
			Content:      content,
		})
	}

	fmt.Fprintln(out, content)
	return nil
}
