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
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tombee/handoff/internal/commands/shared"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version, commit hash, and build date for the handoff CLI.

Use 'handoff status' to ask a running daemon for its version.`,
		Args: cobra.NoArgs,
		RunE: runVersion,
	}

	return cmd
}

func runVersion(cmd *cobra.Command, args []string) error {
	v, c, b := shared.GetVersion()

	info := VersionInfo{
		Version:   v,
		Commit:    c,
		BuildDate: b,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	out := cmd.OutOrStdout()

	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			VersionInfo
		}{shared.NewJSONResponse("version"), info})
	}

	fmt.Fprintf(out, "%s %s\n", shared.Bold.Render("handoff version"), info.Version)
	fmt.Fprintln(out, "  "+shared.RenderField("commit", info.Commit))
	fmt.Fprintln(out, "  "+shared.RenderField("built", info.BuildDate))
	fmt.Fprintln(out, "  "+shared.RenderField("go", info.GoVersion+" "+info.Platform))

	return nil
}
