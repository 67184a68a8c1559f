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
Package ws implements the transport.Transport contract over WebSocket.

Each WebSocket text frame carries one named event and a single string
argument:

	{"event": "ECHO", "data": "{\"type\":\"Request\",\"id\":\"abc\",...}"}

# Server Setup

	server := ws.NewServer(&ws.Config{
	    Host:   "localhost",
	    Port:   10130,
	    Logger: slog.Default(),
	})

	server.AddConnectListener(onConnect)
	server.AddEventListener(event.Echo, onEcho)

	if err := server.Listen(); err != nil {
	    log.Fatal(err) // port in use, permission denied, ...
	}
	server.Serve()

Clients connect to ws://host:port/socket. Additional HTTP routes (health,
metrics) can be mounted with Handle before Serve is called.

# Connection Lifecycle

 1. Client upgrades on /socket and is assigned a session ID
 2. Connect listeners run synchronously
 3. Each inbound frame is dispatched on its own goroutine
 4. When the read loop ends, in-flight listeners are awaited and then the
    disconnect listeners run

# Graceful Shutdown

Shutdown sends a close frame to every session, waits for their goroutines,
and stops the HTTP server within the configured ShutdownTimeout.
*/
package ws
