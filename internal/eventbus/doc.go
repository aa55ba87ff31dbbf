// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

/*
Package eventbus republishes websocket room broadcasts to NATS so other
services can follow alerts, actions and result file changes without a
websocket connection.

Each broadcast to room R becomes one core NATS message on subject
<prefix>.<room> carrying a RoomEvent JSON body. JetStream is not used;
delivery is at-most-once, the same guarantee websocket clients get.

The NATS publisher is compiled only with the nats build tag:

	go build -tags nats ./cmd/server

Without the tag NewPublisher returns ErrNATSNotEnabled and callers keep
broadcasting to the hub alone. Fanout combines the hub and the bus behind
the single BroadcastToRoom method the alerting service and the results
bridge publish through.
*/
package eventbus
