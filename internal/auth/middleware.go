// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/models"
)

type contextKey string

// ClaimsContextKey holds the *Claims of an authenticated request.
const ClaimsContextKey contextKey = "claims"

// TokenCookie is the cookie a browser session keeps its token in.
const TokenCookie = "token"

// Authorizer decides whether a role may act on a resource.
type Authorizer interface {
	Allowed(role, resource, action string) bool
}

// Middleware authenticates requests and enforces the role policy.
type Middleware struct {
	jwtManager *JWTManager
	authz      Authorizer
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(jwtManager *JWTManager, authz Authorizer) *Middleware {
	return &Middleware{jwtManager: jwtManager, authz: authz}
}

// ExtractToken returns the token from the Authorization bearer header or
// the token cookie, in that order.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate rejects requests without a valid token and stores the claims
// in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Str("path", r.URL.Path).Msg("Token validation failed")
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		ctx = logging.ContextWithUser(ctx, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require allows the request only if the caller's role may perform action
// on resource. It must run after Authenticate.
func (m *Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !m.authz.Allowed(claims.Role, resource, action) {
				logging.Warn().
					Str("user_id", claims.UserID).
					Str("role", claims.Role).
					Str("resource", resource).
					Str("action", action).
					Msg("Access denied")
				WriteError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	body, err := json.Marshal(&models.APIResponse{
		Error: &models.APIError{Code: code, Message: message},
		Meta:  &models.APIMeta{Timestamp: time.Now().UTC()},
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
