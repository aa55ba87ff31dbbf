// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

/*
Package api provides the HTTP REST API layer for Crowdwatch.

Router wires a chi mux with a fixed global middleware stack (request IDs,
access logging, real IP, panic recovery, CORS and Prometheus metrics) and
mounts the resource groups below /api. Every group except /api/auth runs
behind JWT authentication and a casbin permission check per route.

Endpoints:

  - /health, /metrics and the /ws websocket upgrade
  - /api/auth: register, login, logout, me, profile, change-password
  - /api/results: merged store and filesystem result files, cleanup and upload
  - /api/alerts, /api/cameras, /api/actions, /api/crowd: monitoring records
  - /api/users: account administration (admin only)

Responses use a single envelope:

	{"success": true, "data": ..., "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}, "meta": {...}}

Domain errors are translated to status codes in errors.go. Request bodies
are decoded with goccy/go-json and validated with go-playground/validator
tags before they reach a handler.
*/
package api
