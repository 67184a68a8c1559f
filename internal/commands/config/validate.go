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

package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/handoff/internal/commands/shared"
	"github.com/tombee/handoff/internal/config"
)

// ValidateResult is the JSON output of config validate.
type ValidateResult struct {
	shared.JSONResponse
	Path    string `json:"path"`
	Address string `json:"address"`
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a config file",
		Long: `Load and validate a config file the way handoffd would at startup.

Without an argument the --config flag or the default location is used.
Exits 2 when the file is invalid.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigValidate,
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	explicit := shared.GetConfigPath()
	if len(args) == 1 {
		explicit = args[0]
	}
	path := config.ResolvePath(explicit)
	if path == "" {
		err := shared.NewConfigError("no config file found; pass a path or --config", nil)
		return fail(cmd, "config validate", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fail(cmd, "config validate", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, ValidateResult{
			JSONResponse: shared.NewJSONResponse("config validate"),
			Path:         path,
			Address:      cfg.Address(),
		})
	}

	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s is valid (listens on %s)", path, cfg.Address())))
	return nil
}
