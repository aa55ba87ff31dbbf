// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/crowdwatch/internal/alerting"
	"github.com/tomtom215/crowdwatch/internal/auth"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/query"
	"github.com/tomtom215/crowdwatch/internal/validation"
)

func TestWriteDomainError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid filename", fmt.Errorf("%w: %q", query.ErrInvalidFilename, "x.txt"), http.StatusBadRequest, ErrCodeInvalidFilename},
		{"read error", query.ErrReadError, http.StatusNotFound, ErrCodeReadError},
		{"no data", query.ErrNoDataAvailable, http.StatusNotFound, ErrCodeNotFound},
		{"camera missing", alerting.ErrCameraNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"duplicate camera", alerting.ErrDuplicateCamera, http.StatusConflict, ErrCodeConflict},
		{"bad transition", alerting.ErrInvalidTransition, http.StatusConflict, ErrCodeConflict},
		{"forbidden", alerting.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"invalid input", fmt.Errorf("%w: count", alerting.ErrInvalidInput), http.StatusBadRequest, ErrCodeBadRequest},
		{"validation", validation.New("page", "page must be at least 1"), http.StatusBadRequest, ErrCodeValidationFailed},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-1"))
			writeDomainError(w, r, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			env := decode[interface{}](t, w)
			if env.Success || env.Error == nil {
				t.Fatalf("envelope = %s", w.Body.String())
			}
			if env.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.code)
			}
			if env.Error.RequestID != "req-1" {
				t.Errorf("request_id = %q", env.Error.RequestID)
			}
		})
	}
}

func TestWriteDomainError_HidesInternalMessage(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeDomainError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("badger: value log corrupt"))
	env := decode[interface{}](t, w)
	if env.Error.Message != "Internal server error" {
		t.Errorf("message = %q", env.Error.Message)
	}
}
