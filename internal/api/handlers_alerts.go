// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/crowdwatch/internal/alerting"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/store"
)

// ListAlerts lists alerts, newest first, with optional filters on
// cameraId, type, status and the from/to time range.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	page, err := parsePagination(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	q := r.URL.Query()
	alerts, total, err := h.Alerting.ListAlerts(r.Context(), store.AlertFilter{
		CameraID:    q.Get("cameraId"),
		Type:        models.AlertType(q.Get("type")),
		Status:      models.AlertStatus(q.Get("status")),
		TriggeredBy: models.TriggerSource(q.Get("triggeredBy")),
		From:        from,
		To:          to,
		Page:        page,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	NewResponseWriter(w, r).SuccessWithPagination(alerts, models.NewPaginationInfo(page.Page, page.Limit, total))
}

// AlertStats aggregates alerts by status, type and camera.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Alerting.AlertStats(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(stats)
}

// GetAlert returns one alert.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.Alerting.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(a)
}

// CreateAlert raises a manual alert for a registered camera.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req CreateAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a, err := h.Alerting.CreateAlert(r.Context(), alerting.NewAlert{
		CameraID:    req.CameraID,
		Type:        models.AlertType(req.Type),
		Message:     req.Message,
		TriggeredBy: models.TriggeredByAdmin,
		CrowdCount:  req.CrowdCount,
		Threshold:   req.Threshold,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(a)
}

// UpdateAlertStatus acknowledges or resolves an alert.
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	var req AlertStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a, err := h.Alerting.UpdateStatus(r.Context(), chi.URLParam(r, "id"), models.AlertStatus(req.Status), actor(r).Username)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(a)
}
