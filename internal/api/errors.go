// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/crowdwatch/internal/alerting"
	"github.com/tomtom215/crowdwatch/internal/auth"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/query"
	"github.com/tomtom215/crowdwatch/internal/store"
	"github.com/tomtom215/crowdwatch/internal/validation"
)

// errorMapping pairs a sentinel with its HTTP status and code. The first
// match wins.
type errorMapping struct {
	target error
	status int
	code   string
}

var domainErrors = []errorMapping{
	{query.ErrInvalidFilename, http.StatusBadRequest, ErrCodeInvalidFilename},
	{alerting.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest},
	{query.ErrReadError, http.StatusNotFound, ErrCodeReadError},
	{query.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{query.ErrNoDataAvailable, http.StatusNotFound, ErrCodeNotFound},
	{alerting.ErrCameraNotFound, http.StatusNotFound, ErrCodeNotFound},
	{alerting.ErrAlertNotFound, http.StatusNotFound, ErrCodeNotFound},
	{alerting.ErrActionNotFound, http.StatusNotFound, ErrCodeNotFound},
	{alerting.ErrSampleNotFound, http.StatusNotFound, ErrCodeNotFound},
	{auth.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
	{store.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
	{alerting.ErrDuplicateCamera, http.StatusConflict, ErrCodeConflict},
	{auth.ErrUsernameTaken, http.StatusConflict, ErrCodeConflict},
	{store.ErrDuplicate, http.StatusConflict, ErrCodeConflict},
	{alerting.ErrInvalidTransition, http.StatusConflict, ErrCodeConflict},
	{store.ErrInvalidTransition, http.StatusConflict, ErrCodeConflict},
	{alerting.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
	{auth.ErrWrongPassword, http.StatusUnauthorized, ErrCodeUnauthorized},
	{store.ErrClosed, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
}

// writeDomainError maps err onto the response status. Unknown errors are
// logged and reported as a generic 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		rw.ValidationError("Validation failed", verr.Details())
		return
	}
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				logging.Ctx(r.Context()).Warn().Err(err).Msg("Request failed")
			}
			rw.Error(m.status, m.code, message(err))
			return
		}
	}

	logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled API error")
	rw.InternalError("Internal server error")
}

// message capitalizes the error text for display.
func message(err error) string {
	s := err.Error()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
