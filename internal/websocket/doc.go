// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

/*
Package websocket pushes result file changes, alerts and operator actions to
dashboard clients over gorilla/websocket.

Key Components:

  - Hub: owns client registration and room membership and delivers queued
    broadcasts in emission order
  - Client: one connection with a read goroutine (inbound frames, rate
    limited) and a write goroutine (outbound frames, pings)
  - Handler: authenticates the handshake and answers client events
  - Bridge: forwards watcher change events to the results-updates room

Rooms:

  - user-<id>: joined on connect, private to one user
  - admin-alerts: joined on connect by admins
  - results-updates: joined on subscribe-results

Handshake:

The token is read from the token query parameter, the Authorization bearer
header or the token cookie. A missing token is answered with 401
"Authentication required" and an invalid one with 401 "Invalid token"; in
both cases nothing is upgraded or registered.

Frames:

Every frame is a JSON object {"type": ..., "data": ...}.

	client -> server: ping, subscribe-results, unsubscribe-results,
	                  get-latest-detection, get-latest-forecast
	server -> client: pong, fileList, fileUpdate, latestDetection,
	                  latestForecast, new-alert, alert-status-update,
	                  new-action, error

Delivery:

Broadcasts pass through one queue, so a room sees messages in the order they
were emitted. A client whose send buffer is full is dropped rather than
stalling the hub.
*/
package websocket
