// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

/*
Package supervisor runs the long-lived Crowdwatch services under a suture v4
supervisor tree.

	root ("crowdwatch")
	├── data-layer
	│   ├── results-watcher
	│   ├── result-cache
	│   └── mirror-on-start (when enabled, runs once)
	├── messaging-layer
	│   ├── websocket-hub
	│   └── results-bridge
	└── api-layer
	    └── http-server

Each layer restarts its children independently, so a watcher crash does not
drop websocket connections and a hub restart does not stop the HTTP server.
Supervisor events are logged through sutureslog over the zerolog-backed slog
handler from internal/logging.

Service wrappers live in the services subpackage.
*/
package supervisor
