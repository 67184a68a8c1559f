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

import "time"

// DefaultTimeout bounds a single CLI round trip to the daemon.
const DefaultTimeout = 10 * time.Second

// Global flag values - set by root command
var (
	jsonFlag    bool
	configFlag  string
	hostFlag    string
	portFlag    int
	timeoutFlag = DefaultTimeout

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// FlagPointers holds pointers to the persistent flag variables.
type FlagPointers struct {
	JSON    *bool
	Config  *string
	Host    *string
	Port    *int
	Timeout *time.Duration
}

// RegisterFlagPointers returns pointers to flag variables for binding.
// Called by root command to register flags.
func RegisterFlagPointers() FlagPointers {
	return FlagPointers{
		JSON:    &jsonFlag,
		Config:  &configFlag,
		Host:    &hostFlag,
		Port:    &portFlag,
		Timeout: &timeoutFlag,
	}
}

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetJSON returns the JSON output flag value
func GetJSON() bool {
	return jsonFlag
}

// GetConfigPath returns the config file path
func GetConfigPath() string {
	return configFlag
}

// GetTimeout returns the per-command timeout.
func GetTimeout() time.Duration {
	if timeoutFlag <= 0 {
		return DefaultTimeout
	}
	return timeoutFlag
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// ResetFlagsForTest restores every flag to its default.
func ResetFlagsForTest() {
	jsonFlag = false
	configFlag = ""
	hostFlag = ""
	portFlag = 0
	timeoutFlag = DefaultTimeout
}

// SetJSONForTest sets the JSON flag for testing purposes
func SetJSONForTest(v bool) {
	jsonFlag = v
}

// SetTargetForTest points commands at host:port for testing purposes
func SetTargetForTest(host string, port int) {
	hostFlag = host
	portFlag = port
}

// SetTimeoutForTest sets the per-command timeout for testing purposes
func SetTimeoutForTest(d time.Duration) {
	timeoutFlag = d
}

// SetConfigPathForTest sets the config path for testing purposes
func SetConfigPathForTest(path string) {
	configFlag = path
}
