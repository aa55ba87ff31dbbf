// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/crowdwatch/internal/models"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	defaultStatsHours   = 24
	maxStatsHours       = 24 * 30
)

// SubmitCrowdSample stores a count reported by the detection pipeline and
// raises a HighCrowd alert when the camera's threshold is crossed.
func (h *Handler) SubmitCrowdSample(w http.ResponseWriter, r *http.Request) {
	var req CrowdSampleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	sample := &models.CrowdSample{
		CameraID:       req.CameraID,
		Count:          *req.Count,
		Prediction:     req.Prediction,
		AlertTriggered: req.AlertTriggered,
		Density:        models.Density(req.Density),
		Metadata:       req.Metadata,
	}
	if req.Timestamp != "" {
		// Already checked by the rfc3339 tag.
		sample.Timestamp, _ = time.Parse(time.RFC3339, req.Timestamp)
	}
	res, err := h.Alerting.SubmitCrowdSample(r.Context(), sample)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(res)
}

// LatestCrowd returns the newest sample of every camera.
func (h *Handler) LatestCrowd(w http.ResponseWriter, r *http.Request) {
	samples, err := h.Alerting.LatestCrowd(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if samples == nil {
		samples = []models.CrowdSample{}
	}
	NewResponseWriter(w, r).Success(samples)
}

// CrowdHistory returns a camera's samples, newest first.
func (h *Handler) CrowdHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := boundedIntParam(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	samples, err := h.Alerting.CrowdHistory(r.Context(), chi.URLParam(r, "cameraId"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if samples == nil {
		samples = []models.CrowdSample{}
	}
	NewResponseWriter(w, r).Success(samples)
}

// CrowdStats aggregates a camera's samples over the last ?hours= hours.
func (h *Handler) CrowdStats(w http.ResponseWriter, r *http.Request) {
	hours, err := boundedIntParam(r, "hours", defaultStatsHours, 1, maxStatsHours)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	stats, err := h.Alerting.CrowdStats(r.Context(), chi.URLParam(r, "cameraId"), since)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(stats)
}

// DeleteCrowdSample removes a sample.
func (h *Handler) DeleteCrowdSample(w http.ResponseWriter, r *http.Request) {
	if err := h.Alerting.DeleteCrowdSample(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(map[string]string{"message": "Sample deleted"})
}
