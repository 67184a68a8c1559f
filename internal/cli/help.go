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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/handoff/internal/commands/shared"
)

// CommandMetadata represents metadata about a command for JSON output
type CommandMetadata struct {
	Name     string         `json:"name"`
	Short    string         `json:"short"`
	Long     string         `json:"long,omitempty"`
	Usage    string         `json:"usage"`
	Flags    []FlagMetadata `json:"flags,omitempty"`
	Examples string         `json:"examples,omitempty"`
}

// FlagMetadata represents metadata about a flag
type FlagMetadata struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

// HelpResponse is the JSON response for help command
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandMetadata `json:"commands,omitempty"`
	Command     *CommandMetadata  `json:"command,omitempty"`
	GlobalFlags []FlagMetadata    `json:"global_flags,omitempty"`
}

// NewHelpCommand creates the help command. With --json it describes the
// command tree for scripts.
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help provides detailed information about commands and their usage.

Use --json to get machine-readable output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := rootCmd
			if len(args) > 0 {
				found, _, err := rootCmd.Find(args)
				if err != nil || found == rootCmd {
					return fmt.Errorf("command %q not found", args[0])
				}
				target = found
			}

			if !shared.GetJSON() {
				return target.Help()
			}

			resp := HelpResponse{
				JSONResponse: shared.NewJSONResponse("help"),
				GlobalFlags:  flagMetadata(rootCmd.PersistentFlags()),
			}
			if target == rootCmd {
				for _, c := range rootCmd.Commands() {
					if c.Hidden || c == cmd {
						continue
					}
					resp.Commands = append(resp.Commands, commandMetadata(c))
				}
			} else {
				meta := commandMetadata(target)
				resp.Command = &meta
				resp.JSONResponse.Command = "help " + target.Name()
			}

			return shared.EmitJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func commandMetadata(cmd *cobra.Command) CommandMetadata {
	return CommandMetadata{
		Name:     cmd.Name(),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Flags:    flagMetadata(cmd.LocalNonPersistentFlags()),
		Examples: cmd.Example,
	}
}

func flagMetadata(fs *pflag.FlagSet) []FlagMetadata {
	var flags []FlagMetadata
	fs.VisitAll(func(flag *pflag.Flag) {
		if flag.Hidden {
			return
		}
		flags = append(flags, FlagMetadata{
			Name:      flag.Name,
			Shorthand: flag.Shorthand,
			Usage:     flag.Usage,
			Default:   flag.DefValue,
		})
	})
	return flags
}
