// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Room names.
const (
	RoomAdminAlerts    = "admin-alerts"
	RoomResultsUpdates = "results-updates"
)

// UserRoom returns the private room of a user.
func UserRoom(userID string) string {
	return "user-" + userID
}

// Server to client message types.
const (
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
	MessageTypeFileList          = "fileList"
	MessageTypeFileUpdate        = "fileUpdate"
	MessageTypeLatestDetection   = "latestDetection"
	MessageTypeLatestForecast    = "latestForecast"
	MessageTypeNewAlert          = "new-alert"
	MessageTypeAlertStatusUpdate = "alert-status-update"
	MessageTypeNewAction         = "new-action"
)

// Client to server message types.
const (
	MessageTypePing               = "ping"
	MessageTypeSubscribeResults   = "subscribe-results"
	MessageTypeUnsubscribeResults = "unsubscribe-results"
	MessageTypeGetLatestDetection = "get-latest-detection"
	MessageTypeGetLatestForecast  = "get-latest-forecast"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// InboundMessage is a client frame whose payload is decoded by the handler.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// roomMessage is a queued broadcast. An empty room targets every client.
type roomMessage struct {
	room string
	msg  Message
}

// Hub maintains the set of active clients and their room memberships.
//
// Broadcasts pass through a single queue, so messages emitted to a room are
// delivered in emission order. A client whose send buffer is full is dropped.
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan roomMessage
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// done is closed when RunWithContext returns.
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan roomMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// RegisterClient hands client to the running hub. It reports false once the
// hub has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// UnregisterClient removes client from the running hub. It returns at once
// when the hub has stopped.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Done is closed when the hub stops.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RunWithContext starts the hub and returns ctx.Err() once ctx is canceled,
// after closing every connected client.
//
// DETERMINISM: priority-based selection.
//   - Priority 1: context cancellation
//   - Priority 2: client lifecycle events (Register/Unregister)
//   - Priority 3: broadcast messages
func (h *Hub) RunWithContext(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case rm := <-h.broadcast:
			h.deliver(rm)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	for _, room := range client.initialRooms {
		h.joinLocked(client, room)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Uint64("client_id", client.id).
		Str("user_id", client.UserID()).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	removed := h.dropLocked(client)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		metrics.WSConnections.Set(float64(total))
		logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// dropLocked removes client from the hub and every room and closes its send
// channel. It reports whether the client was registered. h.mu must be held.
func (h *Hub) dropLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	for room, members := range h.rooms {
		if _, ok := members[client]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(client.send)
	return true
}

func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
}

// Join adds a registered client to room. It reports false when the client is
// not (or no longer) connected.
func (h *Hub) Join(client *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return false
	}
	h.joinLocked(client, room)
	return true
}

// Leave removes client from room.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize returns the number of clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// logGracefulShutdown closes every client and logs the shutdown. ctx.Err()
// is not logged as an error since cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClients returns the clients of set ordered by id.
// DETERMINISM: map iteration order is random; delivery order is not.
func sortedClients(set map[*Client]bool) []*Client {
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// deliver sends a queued message to its room, or to every client when the
// room is empty. Clients whose buffer is full are dropped.
func (h *Hub) deliver(rm roomMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	targets := h.clients
	if rm.room != "" {
		targets = h.rooms[rm.room]
	}

	var toRemove []*Client
	for _, client := range sortedClients(targets) {
		select {
		case client.send <- rm.msg:
			metrics.RecordWSMessage(rm.msg.Type)
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		if h.dropLocked(client) {
			metrics.WSClientsDropped.Inc()
			logging.Warn().
				Uint64("client_id", client.id).
				Str("room", rm.room).
				Msg("websocket client too slow, dropped")
		}
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

// closeAllClients closes every connected client in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range sortedClients(h.clients) {
		h.dropLocked(client)
	}
	metrics.WSConnections.Set(0)
}

func (h *Hub) enqueue(rm roomMessage) {
	select {
	case h.broadcast <- rm:
	default:
		logging.Warn().
			Str("room", rm.room).
			Str("message_type", rm.msg.Type).
			Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToRoom queues a message for every client in room. An empty room
// reaches every connected client.
func (h *Hub) BroadcastToRoom(room, messageType string, data interface{}) {
	h.enqueue(roomMessage{room: room, msg: Message{Type: messageType, Data: data}})
}

// SendToClient delivers a message to a single client without waiting. It
// reports false when the client is gone or its buffer is full.
func (h *Hub) SendToClient(client *Client, messageType string, data interface{}) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return false
	}
	select {
	case client.send <- Message{Type: messageType, Data: data}:
		metrics.RecordWSMessage(messageType)
		return true
	default:
		return false
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
