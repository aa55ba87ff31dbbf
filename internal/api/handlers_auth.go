// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"net/http"

	"github.com/tomtom215/crowdwatch/internal/auth"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/models"
)

// setSessionCookie stores the token in an HttpOnly cookie so browser
// clients and the websocket handshake can authenticate without headers.
func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, s *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register creates a viewer account and signs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	session, err := h.Accounts.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.RoleViewer,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.setSessionCookie(w, r, session)
	NewResponseWriter(w, r).Created(session)
}

// Login exchanges credentials for a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	session, err := h.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		logging.Ctx(r.Context()).Info().Str("username", req.Username).Msg("Login failed")
		writeDomainError(w, r, err)
		return
	}
	h.setSessionCookie(w, r, session)
	NewResponseWriter(w, r).Success(session)
}

// Logout clears the session cookie. Tokens are stateless and stay valid
// until they expire.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	NewResponseWriter(w, r).Success(map[string]string{"message": "Logged out"})
}

// Me returns the caller's account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Accounts.Me(r.Context(), actor(r).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u.Public())
}

// UpdateProfile changes the caller's username or email.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	u, err := h.Accounts.UpdateProfile(r.Context(), actor(r).UserID, auth.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u.Public())
}

// ChangePassword replaces the caller's password after checking the
// current one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.Accounts.ChangePassword(r.Context(), actor(r).UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(map[string]string{"message": "Password updated"})
}
