// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package services

import "context"

// Runner is a component with a blocking, context-aware run loop.
// *results.Watcher and *websocket.Bridge satisfy it.
type Runner interface {
	Run(ctx context.Context) error
}

// ContextHub is the run loop of *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// WatcherService runs the results directory watcher.
type WatcherService struct {
	watcher Runner
}

// NewWatcherService wraps watcher.
func NewWatcherService(watcher Runner) *WatcherService {
	return &WatcherService{watcher: watcher}
}

// Serve implements suture.Service.
func (s *WatcherService) Serve(ctx context.Context) error {
	return s.watcher.Run(ctx)
}

// String implements fmt.Stringer.
func (s *WatcherService) String() string { return "results-watcher" }

// HubService runs the websocket hub. Clients are closed when it stops.
type HubService struct {
	hub ContextHub
}

// NewHubService wraps hub.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer.
func (s *HubService) String() string { return "websocket-hub" }

// BridgeService forwards watcher change events to the hub. A restart
// resubscribes, so events emitted while it was down are lost.
type BridgeService struct {
	bridge Runner
}

// NewBridgeService wraps bridge.
func NewBridgeService(bridge Runner) *BridgeService {
	return &BridgeService{bridge: bridge}
}

// Serve implements suture.Service.
func (s *BridgeService) Serve(ctx context.Context) error {
	return s.bridge.Run(ctx)
}

// String implements fmt.Stringer.
func (s *BridgeService) String() string { return "results-bridge" }
