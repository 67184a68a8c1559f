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
/*
Package cli provides the root command for the handoff client.

# Command Tree

	handoff
	├── echo      Send an ECHO request
	├── status    Check health and ask the daemon for its version
	├── stop      Send a STOP request (--wait blocks until exit)
	├── config    Show, locate or validate the daemon config
	│   ├── show
	│   ├── path
	│   └── validate [file]
	├── completion  Generate shell completion scripts
	├── version   Show client version
	└── help      Show help (--json for scripts)

The daemon itself is a separate binary, handoffd, built from
internal/commands/daemon.

# Global Flags

	--json           Output in JSON format
	--config         Path to config file
	--host           Daemon host
	--port, -p       Daemon port
	--timeout, -t    Timeout for each command

# Error Handling

Errors are handled centrally to ensure proper exit codes:

  - Exit 0: Success
  - Exit 1: Request answered Not OK, or an internal error
  - Exit 2: Invalid flags or configuration
  - Exit 3: Daemon unreachable or not ready
  - Exit 4: Timeout

From main.go:

	cli.SetVersion(version, commit, date)
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
	    cli.HandleExitError(err)
	}
*/
package cli
