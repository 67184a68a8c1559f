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
// Command handoffd runs the Handoff daemon.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/tombee/handoff/internal/commands/daemon"
	"github.com/tombee/handoff/internal/commands/shared"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// SIGINT/SIGTERM cancel the context, which stops the transport directly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := daemon.NewServeCommand(version, commit, buildDate).ExecuteContext(ctx); err != nil {
		stop()
		shared.HandleExitError(err)
	}
}
