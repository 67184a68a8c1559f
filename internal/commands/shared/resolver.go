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
	"fmt"
	"net"
	"strconv"

	"github.com/tombee/handoff/internal/client"
	"github.com/tombee/handoff/internal/config"
)

// Target is the daemon a CLI command talks to.
type Target struct {
	Host string
	Port int

	// PIDFile is the configured daemon PID file, if any.
	PIDFile string
}

// ResolveTarget loads the config (from --config, the XDG default or the
// environment) and applies --host and --port on top.
func ResolveTarget() (Target, error) {
	cfg, err := config.LoadOrDefault(configFlag)
	if err != nil {
		return Target{}, err
	}

	if hostFlag != "" {
		cfg.Hostname = hostFlag
	}
	if portFlag != 0 {
		if err := cfg.ApplyPortOverride(portFlag); err != nil {
			return Target{}, err
		}
	}

	return Target{
		Host:    connectHost(cfg.Hostname),
		Port:    cfg.Port,
		PIDFile: cfg.PIDFile,
	}, nil
}

// connectHost maps wildcard bind addresses to loopback.
func connectHost(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::":
		return "::1"
	}
	return host
}

// Address returns host:port.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// SocketURL returns the WebSocket endpoint.
func (t Target) SocketURL() string {
	return client.URL(t.Host, t.Port)
}

// HealthURL returns the health endpoint.
func (t Target) HealthURL() string {
	return fmt.Sprintf("http://%s/health", t.Address())
}
