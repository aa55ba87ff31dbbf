// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

/*
Package services adapts Crowdwatch components to suture.Service.

Every wrapper implements Serve(ctx) error and fmt.Stringer so the supervisor
can name it in logs:

  - HTTPServerService: ListenAndServe with graceful Shutdown
  - WatcherService: the results directory watcher
  - HubService: the websocket hub loop
  - BridgeService: result file changes to the results-updates room
  - CacheService: TTL expiry plus invalidation on result file changes
  - MirrorOnceService: one mirroring pass at startup, never restarted

Wrappers depend on small interfaces rather than the concrete packages so
they can be tested with fakes.
*/
package services
