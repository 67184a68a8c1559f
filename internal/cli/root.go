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
package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/handoff/internal/commands/completion"
	configcmd "github.com/tombee/handoff/internal/commands/config"
	"github.com/tombee/handoff/internal/commands/session"
	"github.com/tombee/handoff/internal/commands/shared"
	"github.com/tombee/handoff/internal/commands/version"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for the handoff client,
// with every subcommand registered.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "handoff - talk to a running Handoff daemon",
		Long: `handoff sends requests to a running handoffd over its WebSocket
endpoint and prints the answers.

Run 'handoffd' to start a daemon, then 'handoff status' to check on it.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	flags := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVar(flags.JSON, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(flags.Config, "config", "", "Path to config file (default: ~/.config/handoff/config.yaml)")
	cmd.PersistentFlags().StringVar(flags.Host, "host", "", "Daemon host (default: from config, then localhost)")
	cmd.PersistentFlags().IntVarP(flags.Port, "port", "p", 0, "Daemon port (default: from config, then 10130)")
	cmd.PersistentFlags().DurationVarP(flags.Timeout, "timeout", "t", shared.DefaultTimeout, "Timeout for each command")

	cmd.AddCommand(session.NewCommands()...)
	cmd.AddCommand(configcmd.NewConfigCommand())
	cmd.AddCommand(completion.NewCommand())
	cmd.AddCommand(version.NewVersionCommand())
	cmd.SetHelpCommand(NewHelpCommand(cmd))

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
