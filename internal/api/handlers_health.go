// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"net/http"
	"time"

	ws "github.com/tomtom215/crowdwatch/internal/websocket"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Environment  string    `json:"environment"`
	IndexedFiles int       `json:"indexedFiles"`
	WSClients    int       `json:"wsClients"`
	Subscribers  int       `json:"resultSubscribers"`
	StoreBreaker string    `json:"storeBreaker,omitempty"`
	Uptime       float64   `json:"uptime"`
}

// Health reports liveness. It never touches the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "OK",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}
	if h.Config != nil {
		status.Environment = h.Config.Server.Environment
	}
	if h.Files != nil {
		status.IndexedFiles = h.Files.IndexSize()
	}
	if h.Clients != nil {
		status.WSClients = h.Clients.GetClientCount()
		status.Subscribers = h.Clients.RoomSize(ws.RoomResultsUpdates)
	}
	if h.Breaker != nil {
		status.StoreBreaker = h.Breaker.State()
	}
	NewResponseWriter(w, r).Success(status)
}
