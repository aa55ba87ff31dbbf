// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/alerting"
	"github.com/tomtom215/crowdwatch/internal/auth"
	"github.com/tomtom215/crowdwatch/internal/cache"
	"github.com/tomtom215/crowdwatch/internal/config"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/query"
)

// ResultQuerier is the result query layer.
type ResultQuerier interface {
	ListFiles(ctx context.Context) query.Listing
	GetFileContents(ctx context.Context, name string) (query.Located[json.RawMessage], error)
	GetLatest(ctx context.Context, t models.ResultType) (query.Located[json.RawMessage], error)
	AllDetections(ctx context.Context, limit int) query.Located[[]models.Frame]
	Stats(ctx context.Context) query.Stats
}

// ResultFiles is the file watcher side used by cleanup and health.
type ResultFiles interface {
	Cleanup(maxFiles int, policy string) (int, error)
	IndexSize() int
}

// Mirrorer copies result files into the store.
type Mirrorer interface {
	Run(ctx context.Context, dryRun bool) (query.MirrorReport, error)
}

// UserAdmin is account administration.
type UserAdmin interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, mutate func(*models.User) error) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ClientCounter reports connected websocket clients and room membership.
type ClientCounter interface {
	GetClientCount() int
	RoomSize(room string) int
}

// BreakerState reports a circuit breaker's state ("closed", "half-open" or
// "open").
type BreakerState interface {
	State() string
}

// Deps are the collaborators of the API handlers. Mirror, Clients, Breaker
// and WebSocket are optional.
type Deps struct {
	Config    *config.Config
	Accounts  *auth.Service
	Auth      *auth.Middleware
	Results   ResultQuerier
	Files     ResultFiles
	Mirror    Mirrorer
	Alerting  *alerting.Service
	Users     UserAdmin
	Clients   ClientCounter
	Breaker   BreakerState
	WebSocket http.Handler
	Cache     *cache.Cache
}

// Handler serves the REST API.
//
// Handler methods are split across files by resource:
//   - handlers_health.go: health
//   - handlers_auth.go: registration, login and the caller's account
//   - handlers_results.go: result files, cleanup and mirroring
//   - handlers_alerts.go, handlers_cameras.go, handlers_actions.go,
//     handlers_crowd.go: the monitoring records
//   - handlers_users.go: account administration
type Handler struct {
	Deps
	startTime time.Time
	mirrorMu  sync.Mutex
}

// NewHandler creates the API handler. A nil cache gets a fresh one.
func NewHandler(deps Deps) *Handler {
	if deps.Cache == nil {
		deps.Cache = cache.New(30 * time.Second)
	}
	return &Handler{Deps: deps, startTime: time.Now()}
}

// actor returns the authenticated caller.
func actor(r *http.Request) alerting.Actor {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return alerting.Actor{}
	}
	return alerting.Actor{UserID: claims.UserID, Username: claims.Username, Role: models.Role(claims.Role)}
}
