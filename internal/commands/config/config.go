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

// Package config implements "handoff config": inspecting and checking the
// handoffd configuration file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/handoff/internal/commands/shared"
	"github.com/tombee/handoff/internal/config"
)

// ShowResult is the JSON output of config show.
type ShowResult struct {
	shared.JSONResponse
	Path   string         `json:"path,omitempty"`
	Config map[string]any `json:"config"`
}

// PathResult is the JSON output of config path.
type PathResult struct {
	shared.JSONResponse
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and check configuration",
		Long: `View and check the handoffd configuration.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file location
  validate - Check a config file without starting the daemon`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigValidateCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration handoffd would start with: the config file
merged over the defaults, with environment overrides applied.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(shared.GetConfigPath())
	cfg, err := config.Load(path)
	if err != nil {
		return fail(cmd, "config show", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		fields, err := toMap(cfg)
		if err != nil {
			return err
		}
		return shared.EmitJSON(out, ShowResult{
			JSONResponse: shared.NewJSONResponse("config show"),
			Path:         path,
			Config:       fields,
		})
	}

	source := path
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(out, "%s %s\n", shared.Header.Render("Configuration:"), source)
	fmt.Fprintln(out, strings.Repeat("=", 50))

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(shared.GetConfigPath())
	exists := path != ""
	if !exists {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return fail(cmd, "config path", fmt.Errorf("failed to determine config path: %w", err))
		}
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, PathResult{
			JSONResponse: shared.NewJSONResponse("config path"),
			Path:         path,
			Exists:       exists,
		})
	}

	if exists {
		fmt.Fprintln(out, path)
	} else {
		fmt.Fprintf(out, "%s %s\n", path, shared.Muted.Render("(not found)"))
	}
	return nil
}

// toMap round-trips cfg through YAML so JSON output uses the file's keys
// and durations stay human readable.
func toMap(cfg *config.Config) (map[string]any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var fields map[string]any
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return fields, nil
}

func fail(cmd *cobra.Command, command string, err error) error {
	if shared.GetJSON() {
		shared.EmitJSONError(cmd.OutOrStdout(), command, err)
	}
	return err
}
