// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// clientIDCounter generates monotonically increasing client ids.
// DETERMINISM: clients are sorted by id before every broadcast.
var clientIDCounter atomic.Uint64

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// EventHandler processes a client frame. It runs on the client's read
// goroutine, so frames from one client are handled in order.
type EventHandler interface {
	HandleEvent(ctx context.Context, c *Client, msg InboundMessage)
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id           uint64
	hub          *Hub
	conn         *websocket.Conn
	send         chan Message
	identity     Identity
	initialRooms []string
	limiter      *rate.Limiter
	events       EventHandler
}

// ClientOptions configure a new client.
type ClientOptions struct {
	Identity Identity
	// Rooms are joined atomically with registration.
	Rooms []string
	// Limiter bounds inbound frames. Nil disables limiting.
	Limiter *rate.Limiter
	Events  EventHandler
}

// NewClient creates a new Client with a unique deterministic ID
func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	return &Client{
		id:           clientIDCounter.Add(1),
		hub:          hub,
		conn:         conn,
		send:         make(chan Message, sendBuffer),
		identity:     opts.Identity,
		initialRooms: opts.Rooms,
		limiter:      opts.Limiter,
		events:       opts.Events,
	}
}

// ID returns the client's unique identifier for deterministic ordering
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the authenticated user id.
func (c *Client) UserID() string {
	return c.identity.UserID
}

// Identity returns the authenticated user.
func (c *Client) Identity() Identity {
	return c.identity
}

// Send queues a message for this client only.
func (c *Client) Send(messageType string, data interface{}) bool {
	return c.hub.SendToClient(c, messageType, data)
}

// readPump pumps messages from the websocket connection to the event handler
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if c.limiter != nil && !c.limiter.Allow() {
			c.Send(MessageTypeError, ErrorPayload{Message: "Rate limit exceeded"})
			continue
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.Send(MessageTypeError, ErrorPayload{Message: "Malformed message"})
			continue
		}

		if msg.Type == MessageTypePing {
			c.Send(MessageTypePong, nil)
			continue
		}
		if c.events != nil {
			c.events.HandleEvent(ctx, c, msg)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Debug().Err(err).Msg("failed to write websocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
