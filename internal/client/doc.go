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
Package client speaks the handoff protocol to a running handoffd.

# Basic Usage

Dial waits for the daemon's EVENT_CONNECT response, so the session ID is
known as soon as it returns:

	c, err := client.Dial(ctx, client.URL("localhost", 10130), nil)
	if err != nil {
	    return err
	}
	defer c.Close()

	reply, err := c.Echo(ctx, "hello")   // "Echo: hello"
	info, err := c.Version(ctx)          // name and version
	stop, err := c.Stop(ctx)             // daemon pid; the daemon then drains

# Correlation

Every call sends a Request with a fresh id and waits for the Response whose
requestId matches it, so calls may be issued concurrently on one client.
Responses that match no pending call are dropped.

# Errors

Dial failures are *errors.ConnectionError. A context deadline while waiting
for a reply is *errors.TimeoutError. A "Not OK" response is returned together
with an *errors.ResponseError carrying the daemon's message.
*/
package client
