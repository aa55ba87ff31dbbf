// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/models"
)

// ListUsers lists every account without password hashes.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	NewResponseWriter(w, r).Success(out)
}

// GetUser returns one account.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u.Public())
}

// UpdateUser changes an account's email, role or active flag.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if id == actor(r).UserID && ((req.Role != nil && models.Role(*req.Role) != models.RoleAdmin) || (req.IsActive != nil && !*req.IsActive)) {
		NewResponseWriter(w, r).BadRequest("Cannot demote or deactivate your own account")
		return
	}
	u, err := h.Users.UpdateUser(r.Context(), id, func(u *models.User) error {
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.Role != nil {
			u.Role = models.Role(*req.Role)
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		return nil
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("user_id", u.ID).
		Str("role", string(u.Role)).
		Bool("active", u.IsActive).
		Msg("User updated")
	NewResponseWriter(w, r).Success(u.Public())
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == actor(r).UserID {
		NewResponseWriter(w, r).BadRequest("Cannot delete your own account")
		return
	}
	if err := h.Users.DeleteUser(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("user_id", id).Msg("User deleted")
	NewResponseWriter(w, r).Success(map[string]string{"message": "User deleted"})
}
