// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

// Package alerting owns the monitoring records: cameras, alerts, operator
// actions and crowd samples. Every state change is persisted first and then
// announced to websocket rooms through a Publisher:
//
//   - new-alert goes to admin-alerts and results-updates
//   - alert-status-update and new-action go to camera-<id> and admin-alerts
//
// Crowd samples at or above the camera's alert threshold raise a HighCrowd
// alert.
package alerting
