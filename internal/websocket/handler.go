// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/crowdwatch/internal/auth"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/metrics"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/query"
)

// TokenValidator verifies handshake tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// ResultQuerier answers client result requests.
type ResultQuerier interface {
	ListFiles(ctx context.Context) query.Listing
	GetLatest(ctx context.Context, t models.ResultType) (query.Located[json.RawMessage], error)
}

// HandlerConfig tunes the websocket endpoint.
type HandlerConfig struct {
	// AllowedOrigins is the browser origin allow-list. Empty allows any.
	AllowedOrigins []string

	// MessagesPerSecond and Burst bound inbound client frames. Defaults 10/20.
	MessagesPerSecond float64
	Burst             int

	// RequestTimeout bounds each query made for a client. Defaults to 10s.
	RequestTimeout time.Duration
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// LatestPayload is the data of a latestDetection or latestForecast frame.
type LatestPayload struct {
	Data   json.RawMessage `json:"data"`
	Source query.Source    `json:"source"`
}

// FileUpdatePayload is the data of a fileUpdate frame.
type FileUpdatePayload struct {
	Type     models.ResultType `json:"type"`
	Filename string            `json:"filename"`
	Op       string            `json:"op"`
}

// Handler authenticates websocket handshakes and serves client events.
type Handler struct {
	hub      *Hub
	tokens   TokenValidator
	results  ResultQuerier
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket endpoint handler.
func NewHandler(hub *Hub, tokens TokenValidator, results ResultQuerier, cfg HandlerConfig) *Handler {
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	h := &Handler{hub: hub, tokens: tokens, results: results, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// handshakeToken returns the token from the token query parameter, the
// Authorization bearer header or the token cookie.
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return auth.ExtractToken(r)
}

// ServeWS authenticates the handshake before upgrading. Rejected handshakes
// get a 401 and no connection is registered.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := handshakeToken(r)
	if token == "" {
		metrics.WSRejectedConnections.WithLabelValues("missing_token").Inc()
		auth.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		metrics.WSRejectedConnections.WithLabelValues("invalid_token").Inc()
		logging.Debug().Err(err).Msg("WebSocket handshake rejected")
		auth.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.WSRejectedConnections.WithLabelValues("upgrade_failed").Inc()
		logging.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	rooms := []string{UserRoom(claims.UserID)}
	if claims.Role == string(models.RoleAdmin) {
		rooms = append(rooms, RoomAdminAlerts)
	}

	client := NewClient(h.hub, conn, ClientOptions{
		Identity: Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role},
		Rooms:    rooms,
		Limiter:  rate.NewLimiter(rate.Limit(h.cfg.MessagesPerSecond), h.cfg.Burst),
		Events:   h,
	})
	if !h.hub.RegisterClient(client) {
		logging.Debug().Str("user_id", claims.UserID).Msg("WebSocket hub stopped, closing new connection")
		_ = conn.Close()
		return
	}
	client.Start()
}

// HandleEvent answers one client frame.
func (h *Handler) HandleEvent(ctx context.Context, c *Client, msg InboundMessage) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.RequestTimeout)
	defer cancel()

	switch msg.Type {
	case MessageTypeSubscribeResults:
		if !h.hub.Join(c, RoomResultsUpdates) {
			c.Send(MessageTypeError, ErrorPayload{Message: "Failed to subscribe to results"})
			return
		}
		c.Send(MessageTypeFileList, h.results.ListFiles(ctx))

	case MessageTypeUnsubscribeResults:
		h.hub.Leave(c, RoomResultsUpdates)

	case MessageTypeGetLatestDetection:
		h.sendLatest(ctx, c, models.ResultTypeDetection, MessageTypeLatestDetection)

	case MessageTypeGetLatestForecast:
		h.sendLatest(ctx, c, models.ResultTypeForecast, MessageTypeLatestForecast)

	default:
		c.Send(MessageTypeError, ErrorPayload{Message: "Unknown event: " + msg.Type})
	}
}

func (h *Handler) sendLatest(ctx context.Context, c *Client, t models.ResultType, reply string) {
	located, err := h.results.GetLatest(ctx, t)
	if err != nil {
		message := "Failed to get latest " + string(t)
		if errors.Is(err, query.ErrNoDataAvailable) {
			message = "No " + string(t) + " data available"
		}
		logging.Debug().Err(err).Str("type", string(t)).Msg("Latest result lookup failed for websocket client")
		c.Send(MessageTypeError, ErrorPayload{Message: message})
		return
	}
	c.Send(reply, LatestPayload{Data: located.Value, Source: located.Source})
}
