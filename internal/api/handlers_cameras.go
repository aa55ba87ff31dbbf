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
)

func (c *CoordinatesRequest) model() *models.Coordinates {
	if c == nil {
		return nil
	}
	return &models.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}
}

// ListCameras lists cameras with their computed activity, optionally
// filtered by ?status=.
func (h *Handler) ListCameras(w http.ResponseWriter, r *http.Request) {
	cams, err := h.Alerting.ListCameras(r.Context(), models.CameraStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if cams == nil {
		cams = []alerting.CameraView{}
	}
	NewResponseWriter(w, r).Success(cams)
}

// GetCamera returns a camera by record id.
func (h *Handler) GetCamera(w http.ResponseWriter, r *http.Request) {
	c, err := h.Alerting.GetCamera(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(c)
}

// GetCameraByCameraID returns a camera by its device identifier.
func (h *Handler) GetCameraByCameraID(w http.ResponseWriter, r *http.Request) {
	c, err := h.Alerting.GetCameraByCameraID(r.Context(), chi.URLParam(r, "cameraId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(c)
}

// CreateCamera registers a camera.
func (h *Handler) CreateCamera(w http.ResponseWriter, r *http.Request) {
	var req CameraRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	c := &models.Camera{
		CameraID:       req.CameraID,
		Location:       req.Location,
		Status:         models.CameraStatus(req.Status),
		Description:    req.Description,
		IPAddress:      req.IPAddress,
		MaxCapacity:    req.MaxCapacity,
		AlertThreshold: req.AlertThreshold,
		Coordinates:    req.Coordinates.model(),
	}
	if err := h.Alerting.RegisterCamera(r.Context(), c); err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(c)
}

// UpdateCamera changes the supplied camera fields.
func (h *Handler) UpdateCamera(w http.ResponseWriter, r *http.Request) {
	var req UpdateCameraRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	u := alerting.CameraUpdate{
		CameraID:       req.CameraID,
		Location:       req.Location,
		Description:    req.Description,
		IPAddress:      req.IPAddress,
		MaxCapacity:    req.MaxCapacity,
		AlertThreshold: req.AlertThreshold,
		Coordinates:    req.Coordinates.model(),
	}
	if req.Status != nil {
		status := models.CameraStatus(*req.Status)
		u.Status = &status
	}
	c, err := h.Alerting.UpdateCamera(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(c)
}

// DeleteCamera removes a camera.
func (h *Handler) DeleteCamera(w http.ResponseWriter, r *http.Request) {
	if err := h.Alerting.DeleteCamera(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(map[string]string{"message": "Camera deleted"})
}
