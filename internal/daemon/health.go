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
	"encoding/json"
	"net/http"

	"github.com/tombee/handoff/internal/lifecycle"
)

// Health status values served on /health.
const (
	HealthReady    = "ready"
	HealthDraining = "draining"
	HealthStopped  = "stopped"
)

// healthHandler reports the lifecycle state. Only a listening daemon is
// healthy; every other state answers 503.
func (d *Daemon) healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status, code := HealthStopped, http.StatusServiceUnavailable
		switch d.State() {
		case StateListening:
			status, code = HealthReady, http.StatusOK
		case StateDraining:
			status = HealthDraining
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(lifecycle.HealthStatus{
			Status:  status,
			Version: d.opts.Version,
		})
	})
}
