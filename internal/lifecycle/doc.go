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
Package lifecycle holds the process-level helpers around handoffd: the PID
file and the /health poller.

# PID File Management

PID files are created with O_EXCL and held under an exclusive flock for the
daemon's lifetime:

	manager := lifecycle.NewPIDFileManager("/run/user/1000/handoffd.pid")
	if _, err := manager.Acquire(os.Getpid()); err != nil {
	    return err
	}
	defer manager.Remove()

Acquire replaces a file left behind by a process that is no longer running.

# Health Checking

	checker := lifecycle.NewHealthChecker("http://localhost:10130/health")
	if err := checker.WaitUntilHealthy(ctx, 10*time.Second); err != nil {
	    return err
	}
*/
package lifecycle
