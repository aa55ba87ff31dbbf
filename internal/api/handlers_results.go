// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"context"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/cache"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/query"
	"github.com/tomtom215/crowdwatch/internal/results"
)

const (
	defaultDetectionsLimit = 100
	maxDetectionsLimit     = 1000
)

// ListResultFiles lists the merged result files from the store and the
// results directory.
func (h *Handler) ListResultFiles(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.Results.ListFiles(r.Context()))
}

// GetResultFile returns one file's contents.
func (h *Handler) GetResultFile(w http.ResponseWriter, r *http.Request) {
	located, err := h.Results.GetFileContents(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithSource(located.Value, string(located.Source))
}

// GetLatestResult returns the newest detection or forecast document.
func (h *Handler) GetLatestResult(w http.ResponseWriter, r *http.Request) {
	t, ok := models.ParseResultType(chi.URLParam(r, "type"))
	if !ok {
		NewResponseWriter(w, r).BadRequest("Invalid type. Must be 'detection' or 'forecast'")
		return
	}
	located, err := h.Results.GetLatest(r.Context(), t)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithSource(located.Value, string(located.Source))
}

// ResultRange is the body of a range response. Forecast files fill
// Predictions, detection files fill Frames.
type ResultRange struct {
	Filename    string                   `json:"filename"`
	Type        models.ResultType        `json:"type"`
	Start       int                      `json:"start"`
	End         int                      `json:"end"`
	Predictions []models.PredictionPoint `json:"predictions,omitempty"`
	Frames      []models.Frame           `json:"frames,omitempty"`
}

// GetResultRange returns part of one file: forecast steps start..end, or
// detection frames whose index lies in [start, end]. Both bounds are
// optional.
func (h *Handler) GetResultRange(w http.ResponseWriter, r *http.Request) {
	start, err := boundedIntParam(r, "start", 0, 0, math.MaxInt32)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	end, err := boundedIntParam(r, "end", math.MaxInt32, 0, math.MaxInt32)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	name := chi.URLParam(r, "filename")
	located, err := h.Results.GetFileContents(r.Context(), name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := ResultRange{Filename: name, Start: start, End: end}
	if t, _ := results.TypeFromPrefix(name); t == models.ResultTypeForecast {
		var rec models.ForecastRecord
		if err := json.Unmarshal(located.Value, &rec); err != nil {
			writeDomainError(w, r, err)
			return
		}
		out.Type = models.ResultTypeForecast
		out.Predictions = rec.PredictionsInRange(start, end)
	} else {
		var rec models.DetectionRecord
		if err := json.Unmarshal(located.Value, &rec); err != nil {
			writeDomainError(w, r, err)
			return
		}
		out.Type = models.ResultTypeDetection
		out.Frames = rec.FramesInRange(start, end)
	}
	NewResponseWriter(w, r).SuccessWithSource(out, string(located.Source))
}

// ResultStats summarizes the merged listing.
func (h *Handler) ResultStats(w http.ResponseWriter, r *http.Request) {
	v, err := h.Cache.GetOrLoad(cache.Key("ResultStats"), func() (interface{}, error) {
		return h.Results.Stats(r.Context()), nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(v)
}

// AllDetections returns detection frames across all detection files.
func (h *Handler) AllDetections(w http.ResponseWriter, r *http.Request) {
	limit, err := boundedIntParam(r, "limit", defaultDetectionsLimit, 1, maxDetectionsLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	v, err := h.Cache.GetOrLoad(cache.Key("AllDetections", limit), func() (interface{}, error) {
		return h.Results.AllDetections(r.Context(), limit), nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	located := v.(query.Located[[]models.Frame])
	frames := located.Value
	if frames == nil {
		frames = []models.Frame{}
	}
	NewResponseWriter(w, r).SuccessWithSource(frames, string(located.Source))
}

// CleanupResult is the body of a cleanup response.
type CleanupResult struct {
	Remaining int    `json:"remaining"`
	MaxFiles  int    `json:"maxFiles"`
	Policy    string `json:"policy"`
}

// CleanupResults deletes the oldest result files beyond the retention cap.
func (h *Handler) CleanupResults(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	maxFiles := h.Config.Results.CleanupDefaultMax
	if req.MaxFiles != nil {
		maxFiles = *req.MaxFiles
	}
	policy := h.Config.Results.RetentionPolicy
	if req.Policy != "" {
		policy = req.Policy
	}

	remaining, err := h.Files.Cleanup(maxFiles, policy)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.Cache.Clear()
	NewResponseWriter(w, r).Success(CleanupResult{Remaining: remaining, MaxFiles: maxFiles, Policy: policy})
}

// UploadResults mirrors the results directory into the store. Only one
// run may be in flight.
func (h *Handler) UploadResults(w http.ResponseWriter, r *http.Request) {
	if h.Mirror == nil {
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Store is not configured")
		return
	}
	var req UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !h.mirrorMu.TryLock() {
		NewResponseWriter(w, r).Error(http.StatusConflict, ErrCodeConflict, "An upload is already running")
		return
	}
	defer h.mirrorMu.Unlock()

	// The run outlives a disconnecting client.
	report, err := h.Mirror.Run(context.WithoutCancel(r.Context()), req.DryRun)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !req.DryRun {
		h.Cache.Clear()
	}
	NewResponseWriter(w, r).Success(report)
}
