// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/store"
	"github.com/tomtom215/crowdwatch/internal/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Pagination bounds for list endpoints.
const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// RegisterRequest is the body of POST /api/auth/register. Public
// registration always creates a viewer.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileRequest is the body of PUT /api/auth/profile.
type ProfileRequest struct {
	Username string `json:"username" validate:"omitempty,username"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// ChangePasswordRequest is the body of PUT /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128"`
}

// CleanupRequest is the body of POST /api/results/cleanup. A missing
// maxFiles uses the configured default.
type CleanupRequest struct {
	MaxFiles *int   `json:"maxFiles" validate:"omitempty,min=0,max=100000"`
	Policy   string `json:"policy" validate:"omitempty,oneof=per_type combined"`
}

// UploadRequest is the body of POST /api/results/upload.
type UploadRequest struct {
	DryRun bool `json:"dryRun"`
}

// CreateAlertRequest is the body of POST /api/alerts.
type CreateAlertRequest struct {
	CameraID   string `json:"cameraId" validate:"required,max=64"`
	Type       string `json:"type" validate:"required,oneof=HighCrowd RapidIncrease SecurityBreach SystemFailure Other"`
	Message    string `json:"message" validate:"required,max=500"`
	CrowdCount *int   `json:"crowdCount" validate:"omitempty,min=0"`
	Threshold  *int   `json:"threshold" validate:"omitempty,min=0"`
}

// AlertStatusRequest is the body of PUT /api/alerts/{id}/status.
type AlertStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=acknowledged resolved"`
}

// CoordinatesRequest locates a camera.
type CoordinatesRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// CameraRequest is the body of POST /api/cameras.
type CameraRequest struct {
	CameraID       string              `json:"cameraId" validate:"required,max=64"`
	Location       string              `json:"location" validate:"required,max=200"`
	Status         string              `json:"status" validate:"omitempty,oneof=active inactive maintenance offline"`
	Description    string              `json:"description" validate:"max=500"`
	IPAddress      string              `json:"ipAddress" validate:"omitempty,ip"`
	MaxCapacity    int                 `json:"maxCapacity" validate:"omitempty,min=1"`
	AlertThreshold int                 `json:"alertThreshold" validate:"omitempty,min=1"`
	Coordinates    *CoordinatesRequest `json:"coordinates"`
}

// UpdateCameraRequest is the body of PUT /api/cameras/{id}. Absent fields
// are left unchanged.
type UpdateCameraRequest struct {
	CameraID       *string             `json:"cameraId" validate:"omitempty,min=1,max=64"`
	Location       *string             `json:"location" validate:"omitempty,min=1,max=200"`
	Status         *string             `json:"status" validate:"omitempty,oneof=active inactive maintenance offline"`
	Description    *string             `json:"description" validate:"omitempty,max=500"`
	IPAddress      *string             `json:"ipAddress" validate:"omitempty,ip"`
	MaxCapacity    *int                `json:"maxCapacity" validate:"omitempty,min=1"`
	AlertThreshold *int                `json:"alertThreshold" validate:"omitempty,min=1"`
	Coordinates    *CoordinatesRequest `json:"coordinates"`
}

// CreateActionRequest is the body of POST /api/actions.
type CreateActionRequest struct {
	Action           string `json:"action" validate:"required,max=200"`
	CameraID         string `json:"cameraId" validate:"required,max=64"`
	Details          string `json:"details" validate:"max=1000"`
	Status           string `json:"status" validate:"omitempty,oneof=pending in-progress completed failed"`
	RelatedAlertID   string `json:"relatedAlertId" validate:"max=64"`
	CrowdCountBefore *int   `json:"crowdCountBefore" validate:"omitempty,min=0"`
}

// UpdateActionRequest is the body of PUT /api/actions/{id}.
type UpdateActionRequest struct {
	Status              *string `json:"status" validate:"omitempty,oneof=pending in-progress completed failed"`
	Details             *string `json:"details" validate:"omitempty,max=1000"`
	EffectivenessRating *int    `json:"effectivenessRating" validate:"omitempty,min=1,max=5"`
	CrowdCountAfter     *int    `json:"crowdCountAfter" validate:"omitempty,min=0"`
}

// CrowdSampleRequest is the body of POST /api/crowd.
type CrowdSampleRequest struct {
	CameraID       string                 `json:"cameraId" validate:"required,max=64"`
	Timestamp      string                 `json:"timestamp" validate:"omitempty,rfc3339"`
	Count          *int                   `json:"count" validate:"required,min=0"`
	Prediction     []float64              `json:"prediction" validate:"required,len=6"`
	AlertTriggered bool                   `json:"alertTriggered"`
	Density        string                 `json:"density" validate:"omitempty,oneof=low medium high critical"`
	Metadata       *models.SampleMetadata `json:"metadata"`
}

// UpdateUserRequest is the body of PUT /api/users/{id}.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin operator viewer"`
	IsActive *bool   `json:"isActive"`
}

// decodeJSON reads a bounded JSON body into dst and validates it. An empty
// body decodes as the zero value.
func decodeJSON(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return validation.New("body", "could not read request body")
	}
	if len(body) > maxBodyBytes {
		return validation.New("body", "request body too large")
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return validation.New("body", "request body must be valid JSON")
		}
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr
	}
	return nil
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.New(name, name+" must be an integer")
	}
	return n, nil
}

// boundedIntParam parses an integer query parameter within [min, max].
func boundedIntParam(r *http.Request, name string, def, min, max int) (int, error) {
	n, err := intParam(r, name, def)
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		return 0, validation.New(name, name+" must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return n, nil
}

// parsePagination reads page (>= 1) and limit (1..100).
func parsePagination(r *http.Request) (store.Page, error) {
	page, err := intParam(r, "page", defaultPage)
	if err != nil {
		return store.Page{}, err
	}
	if page < 1 {
		return store.Page{}, validation.New("page", "page must be at least 1")
	}
	limit, err := boundedIntParam(r, "limit", defaultLimit, 1, maxLimit)
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Page: page, Limit: limit}, nil
}

// timeParam parses an optional RFC 3339 query parameter.
func timeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, validation.New(name, name+" must be a valid ISO 8601 date")
	}
	return t, nil
}

// timeRange parses from/to and rejects inverted ranges.
func timeRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := timeParam(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := timeParam(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, validation.New("to", "to must not be before from")
	}
	return from, to, nil
}
