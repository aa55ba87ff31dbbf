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

// ListActions lists operator actions, newest first.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
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
	actions, total, err := h.Alerting.ListActions(r.Context(), store.ActionFilter{
		CameraID:       q.Get("cameraId"),
		Action:         q.Get("action"),
		PerformedBy:    q.Get("performedBy"),
		Status:         models.ActionStatus(q.Get("status")),
		RelatedAlertID: q.Get("relatedAlertId"),
		From:           from,
		To:             to,
		Page:           page,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}
	NewResponseWriter(w, r).SuccessWithPagination(actions, models.NewPaginationInfo(page.Page, page.Limit, total))
}

// ActionStats aggregates actions.
func (h *Handler) ActionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Alerting.ActionStats(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(stats)
}

// GetAction returns one action.
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	a, err := h.Alerting.GetAction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(a)
}

// CreateAction records an intervention by the caller.
func (h *Handler) CreateAction(w http.ResponseWriter, r *http.Request) {
	var req CreateActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	a, err := h.Alerting.RecordAction(r.Context(), actor(r), alerting.NewAction{
		Action:           req.Action,
		CameraID:         req.CameraID,
		Details:          req.Details,
		Status:           models.ActionStatus(req.Status),
		RelatedAlertID:   req.RelatedAlertID,
		CrowdCountBefore: req.CrowdCountBefore,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(a)
}

// UpdateAction changes an action the caller owns.
func (h *Handler) UpdateAction(w http.ResponseWriter, r *http.Request) {
	var req UpdateActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	u := alerting.ActionUpdate{
		Details:             req.Details,
		EffectivenessRating: req.EffectivenessRating,
		CrowdCountAfter:     req.CrowdCountAfter,
	}
	if req.Status != nil {
		status := models.ActionStatus(*req.Status)
		u.Status = &status
	}
	a, err := h.Alerting.UpdateAction(r.Context(), actor(r), chi.URLParam(r, "id"), u)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(a)
}

// DeleteAction removes an action the caller owns.
func (h *Handler) DeleteAction(w http.ResponseWriter, r *http.Request) {
	if err := h.Alerting.DeleteAction(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(map[string]string{"message": "Action deleted"})
}
