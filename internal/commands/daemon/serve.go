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
package daemon

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tombee/handoff/internal/config"
	handoffd "github.com/tombee/handoff/internal/daemon"
	handofferrors "github.com/tombee/handoff/pkg/errors"
)

type serveOptions struct {
	configPath string
	host       string
	port       int
	pidFile    string
}

// NewServeCommand creates the handoffd root command.
func NewServeCommand(version, commit, buildDate string) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "handoffd [port]",
		Short: "Run the Handoff daemon",
		Long: `Run the Handoff daemon.

handoffd accepts WebSocket connections on /socket and answers ECHO,
VERSION and STOP requests. It runs until a client sends STOP or the
process receives SIGINT or SIGTERM.`,
		Example: `  # Listen on the configured port (default 10130)
  handoffd

  # Listen on port 9000
  handoffd 9000

  # Bind all interfaces and write a PID file
  handoffd --host 0.0.0.0 --pid-file /run/handoffd.pid`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := opts.resolvePort(cmd, args)
			if err != nil {
				return err
			}

			return handoffd.Run(cmd.Context(), handoffd.RunOptions{
				Version:    version,
				Commit:     commit,
				BuildDate:  buildDate,
				ConfigPath: opts.configPath,
				Host:       opts.host,
				Port:       port,
				PIDFile:    opts.pidFile,
			})
		},
	}

	cmd.SetVersionTemplate(fmt.Sprintf("handoffd {{.Version}} (commit %s, built %s)\n", commit, buildDate))

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/handoff/config.yaml)")
	cmd.Flags().StringVar(&opts.host, "host", "", "Interface to bind (default: localhost)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to bind (default: 10130)")
	cmd.Flags().StringVar(&opts.pidFile, "pid-file", "", "Write the daemon PID to this file")

	return cmd
}

// resolvePort returns the port override, or 0 when none was given.
func (o *serveOptions) resolvePort(cmd *cobra.Command, args []string) (int, error) {
	port := 0
	if cmd.Flags().Changed("port") {
		if err := config.ValidatePort(o.port); err != nil {
			return 0, err
		}
		port = o.port
	}

	if len(args) == 1 {
		p, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, &handofferrors.ValidationError{
				Field:   "port",
				Message: fmt.Sprintf("%q is not a number", args[0]),
				Hint:    "Pass a port such as 10130",
			}
		}
		if err := config.ValidatePort(p); err != nil {
			return 0, err
		}
		if port != 0 && port != p {
			return 0, &handofferrors.ValidationError{
				Field:   "port",
				Message: fmt.Sprintf("--port %d conflicts with argument %d", port, p),
			}
		}
		port = p
	}

	return port, nil
}
