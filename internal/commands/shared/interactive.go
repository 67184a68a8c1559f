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

package shared

import (
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "CIRCLECI", "JENKINS_HOME"}

// IsInteractive reports whether a person can answer a prompt: stdin is a
// terminal, HANDOFF_NON_INTERACTIVE is not set and no CI system is detected.
func IsInteractive() bool {
	if v := strings.ToLower(os.Getenv("HANDOFF_NON_INTERACTIVE")); v == "true" || v == "1" {
		return false
	}
	for _, name := range ciVars {
		if v := os.Getenv(name); v != "" && v != "false" && v != "0" {
			return false
		}
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Confirm asks a yes/no question on the terminal. Callers check
// IsInteractive first.
func Confirm(title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}
