// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/crowdwatch/internal/authz"
	"github.com/tomtom215/crowdwatch/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	authn := h.Auth.Authenticate
	require := h.Auth.Require
	authLimit := router.chiMiddleware.RateLimitAuth()

	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	if h.WebSocket != nil {
		r.Handle("/ws", h.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimit).Post("/register", h.Register)
			r.With(authLimit).Post("/login", h.Login)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(authn)
				r.Get("/me", h.Me)
				r.Put("/profile", h.UpdateProfile)
				r.Put("/change-password", h.ChangePassword)
			})
		})

		r.Route("/results", func(r chi.Router) {
			r.Use(authn)
			r.Use(middleware.Compression)

			r.Group(func(r chi.Router) {
				r.Use(require(authz.ResourceResults, authz.ActionRead))
				r.Get("/files", h.ListResultFiles)
				r.Get("/files/{filename}", h.GetResultFile)
				r.Get("/files/{filename}/range", h.GetResultRange)
				r.Get("/latest/{type}", h.GetLatestResult)
				r.Get("/stats", h.ResultStats)
				r.Get("/detections", h.AllDetections)
			})
			r.Group(func(r chi.Router) {
				r.Use(require(authz.ResourceResults, authz.ActionWrite))
				r.Post("/cleanup", h.CleanupResults)
				r.Post("/upload", h.UploadResults)
			})
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Use(authn)
			r.With(require(authz.ResourceAlerts, authz.ActionRead)).Get("/", h.ListAlerts)
			r.With(require(authz.ResourceAlerts, authz.ActionRead)).Get("/stats", h.AlertStats)
			r.With(require(authz.ResourceAlerts, authz.ActionRead)).Get("/{id}", h.GetAlert)
			r.With(require(authz.ResourceAlerts, authz.ActionWrite)).Post("/", h.CreateAlert)
			r.With(require(authz.ResourceAlerts, authz.ActionWrite)).Put("/{id}/status", h.UpdateAlertStatus)
		})

		r.Route("/cameras", func(r chi.Router) {
			r.Use(authn)
			r.With(require(authz.ResourceCameras, authz.ActionRead)).Get("/", h.ListCameras)
			r.With(require(authz.ResourceCameras, authz.ActionRead)).Get("/{id}", h.GetCamera)
			r.With(require(authz.ResourceCameras, authz.ActionRead)).Get("/by-camera/{cameraId}", h.GetCameraByCameraID)
			r.With(require(authz.ResourceCameras, authz.ActionWrite)).Post("/", h.CreateCamera)
			r.With(require(authz.ResourceCameras, authz.ActionWrite)).Put("/{id}", h.UpdateCamera)
			r.With(require(authz.ResourceCameras, authz.ActionDelete)).Delete("/{id}", h.DeleteCamera)
		})

		r.Route("/actions", func(r chi.Router) {
			r.Use(authn)
			r.With(require(authz.ResourceActions, authz.ActionRead)).Get("/", h.ListActions)
			r.With(require(authz.ResourceActions, authz.ActionRead)).Get("/stats", h.ActionStats)
			r.With(require(authz.ResourceActions, authz.ActionRead)).Get("/{id}", h.GetAction)
			r.With(require(authz.ResourceActions, authz.ActionWrite)).Post("/", h.CreateAction)
			r.With(require(authz.ResourceActions, authz.ActionWrite)).Put("/{id}", h.UpdateAction)
			r.With(require(authz.ResourceActions, authz.ActionWrite)).Delete("/{id}", h.DeleteAction)
		})

		r.Route("/crowd", func(r chi.Router) {
			r.Use(authn)
			r.With(require(authz.ResourceCrowd, authz.ActionWrite)).Post("/", h.SubmitCrowdSample)
			r.With(require(authz.ResourceCrowd, authz.ActionRead)).Get("/latest", h.LatestCrowd)
			r.With(require(authz.ResourceCrowd, authz.ActionRead)).Get("/{cameraId}/history", h.CrowdHistory)
			r.With(require(authz.ResourceCrowd, authz.ActionRead)).Get("/{cameraId}/stats", h.CrowdStats)
			r.With(require(authz.ResourceCrowd, authz.ActionDelete)).Delete("/{id}", h.DeleteCrowdSample)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(authn)
			r.With(require(authz.ResourceUsers, authz.ActionRead)).Get("/", h.ListUsers)
			r.With(require(authz.ResourceUsers, authz.ActionRead)).Get("/{id}", h.GetUser)
			r.With(require(authz.ResourceUsers, authz.ActionWrite)).Put("/{id}", h.UpdateUser)
			r.With(require(authz.ResourceUsers, authz.ActionDelete)).Delete("/{id}", h.DeleteUser)
		})
	})

	return r
}
