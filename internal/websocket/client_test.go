// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/crowdwatch/internal/auth"
	"github.com/tomtom215/crowdwatch/internal/models"
	"github.com/tomtom215/crowdwatch/internal/query"
)

type fakeTokens map[string]*auth.Claims

func (f fakeTokens) ValidateToken(token string) (*auth.Claims, error) {
	if c, ok := f[token]; ok {
		return c, nil
	}
	return nil, auth.ErrInvalidToken
}

type fakeResults struct {
	listing query.Listing
	latest  map[models.ResultType]json.RawMessage
	lists   atomic.Int32
}

func (f *fakeResults) ListFiles(context.Context) query.Listing {
	f.lists.Add(1)
	return f.listing
}

func (f *fakeResults) GetLatest(_ context.Context, t models.ResultType) (query.Located[json.RawMessage], error) {
	if raw, ok := f.latest[t]; ok {
		return query.FromStore(raw), nil
	}
	return query.NotFound[json.RawMessage](), query.ErrNoDataAvailable
}

var testTokens = fakeTokens{
	"admin-token":  {UserID: "u-admin", Username: "root", Role: "admin"},
	"viewer-token": {UserID: "u-viewer", Username: "eve", Role: "viewer"},
}

// setupWebSocketServer serves a Handler backed by fakes on a running hub.
func setupWebSocketServer(t *testing.T, cfg HandlerConfig) (*httptest.Server, *Hub) {
	t.Helper()
	hub := setupHub(t)
	results := &fakeResults{
		listing: query.Listing{Count: 1, StoreAvailable: true, FilesystemAvailable: true},
		latest:  map[models.ResultType]json.RawMessage{models.ResultTypeDetection: json.RawMessage(`{"filename":"detections_1.json"}`)},
	}
	server := httptest.NewServer(http.HandlerFunc(NewHandler(hub, testTokens, results, cfg).ServeWS))
	t.Cleanup(server.Close)
	return server, hub
}

// dialWebSocket connects with the given query string and headers.
func dialWebSocket(t *testing.T, server *httptest.Server, rawQuery string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	if rawQuery != "" {
		wsURL += "?" + rawQuery
	}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if resp != nil && resp.Body != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func sendFrame(t *testing.T, conn *websocket.Conn, msgType string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{"type": msgType}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame %s: %v", data, err)
	}
	return f
}

func TestServeWS_RejectsBeforeUpgrade(t *testing.T) {
	server, hub := setupWebSocketServer(t, HandlerConfig{})

	tests := []struct {
		name     string
		query    string
		wantBody string
	}{
		{name: "missing token", wantBody: "Authentication required"},
		{name: "invalid token", query: "token=forged", wantBody: "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := dialWebSocket(t, server, tt.query, nil)
			if !errors.Is(err, websocket.ErrBadHandshake) {
				t.Fatalf("Dial() error = %v, want ErrBadHandshake", err)
			}
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
			buf := make([]byte, 512)
			n, _ := resp.Body.Read(buf)
			if !strings.Contains(string(buf[:n]), tt.wantBody) {
				t.Errorf("body = %s, want %q", buf[:n], tt.wantBody)
			}
		})
	}
	if hub.GetClientCount() != 0 {
		t.Error("rejected handshakes must not register clients")
	}
}

func TestServeWS_TokenSources(t *testing.T) {
	server, hub := setupWebSocketServer(t, HandlerConfig{})

	tests := []struct {
		name   string
		query  string
		header http.Header
	}{
		{name: "query parameter", query: "token=viewer-token"},
		{name: "bearer header", header: http.Header{"Authorization": {"Bearer viewer-token"}}},
		{name: "cookie", header: http.Header{"Cookie": {"token=viewer-token"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, _, err := dialWebSocket(t, server, tt.query, tt.header)
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}
			sendFrame(t, conn, MessageTypePing)
			if f := readFrame(t, conn); f.Type != MessageTypePong {
				t.Errorf("got %q, want pong", f.Type)
			}
			if hub.RoomSize(UserRoom("u-viewer")) == 0 {
				t.Error("client should join its user room")
			}
		})
	}
}

func TestServeWS_AdminJoinsAdminRoom(t *testing.T) {
	server, hub := setupWebSocketServer(t, HandlerConfig{})

	adminConn, _, err := dialWebSocket(t, server, "token=admin-token", nil)
	if err != nil {
		t.Fatal(err)
	}
	viewerConn, _, err := dialWebSocket(t, server, "token=viewer-token", nil)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return hub.GetClientCount() == 2 }, "registration")

	if hub.RoomSize(RoomAdminAlerts) != 1 {
		t.Fatalf("admin-alerts size = %d, want 1", hub.RoomSize(RoomAdminAlerts))
	}

	hub.BroadcastToRoom(RoomAdminAlerts, MessageTypeNewAlert, map[string]string{"id": "a1"})
	if f := readFrame(t, adminConn); f.Type != MessageTypeNewAlert {
		t.Errorf("admin got %q", f.Type)
	}

	hub.BroadcastToRoom(UserRoom("u-viewer"), "direct", nil)
	if f := readFrame(t, viewerConn); f.Type != "direct" {
		t.Errorf("viewer got %q, want only its own room message", f.Type)
	}
}

func TestServeWS_ClientEvents(t *testing.T) {
	server, hub := setupWebSocketServer(t, HandlerConfig{})
	conn, _, err := dialWebSocket(t, server, "token=viewer-token", nil)
	if err != nil {
		t.Fatal(err)
	}

	sendFrame(t, conn, MessageTypeSubscribeResults)
	f := readFrame(t, conn)
	if f.Type != MessageTypeFileList {
		t.Fatalf("got %q, want fileList", f.Type)
	}
	var listing query.Listing
	if err := json.Unmarshal(f.Data, &listing); err != nil || listing.Count != 1 {
		t.Errorf("fileList data = %s", f.Data)
	}
	if hub.RoomSize(RoomResultsUpdates) != 1 {
		t.Error("subscribe-results should join results-updates")
	}

	sendFrame(t, conn, MessageTypeGetLatestDetection)
	f = readFrame(t, conn)
	if f.Type != MessageTypeLatestDetection || !strings.Contains(string(f.Data), "detections_1.json") {
		t.Errorf("latestDetection frame = %s %s", f.Type, f.Data)
	}

	sendFrame(t, conn, MessageTypeGetLatestForecast)
	f = readFrame(t, conn)
	if f.Type != MessageTypeError || !strings.Contains(string(f.Data), "No forecast data available") {
		t.Errorf("missing forecast frame = %s %s", f.Type, f.Data)
	}

	sendFrame(t, conn, "bogus")
	if f = readFrame(t, conn); f.Type != MessageTypeError {
		t.Errorf("unknown event reply = %q, want error", f.Type)
	}

	sendFrame(t, conn, MessageTypeUnsubscribeResults)
	waitFor(t, func() bool { return hub.RoomSize(RoomResultsUpdates) == 0 }, "unsubscribe")
}

func TestServeWS_MalformedFrame(t *testing.T) {
	server, _ := setupWebSocketServer(t, HandlerConfig{})
	conn, _, err := dialWebSocket(t, server, "token=viewer-token", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, conn); f.Type != MessageTypeError {
		t.Errorf("got %q, want error", f.Type)
	}
}

func TestServeWS_RateLimited(t *testing.T) {
	server, _ := setupWebSocketServer(t, HandlerConfig{MessagesPerSecond: 0.001, Burst: 1})
	conn, _, err := dialWebSocket(t, server, "token=viewer-token", nil)
	if err != nil {
		t.Fatal(err)
	}

	sendFrame(t, conn, MessageTypePing)
	sendFrame(t, conn, MessageTypePing)
	if f := readFrame(t, conn); f.Type != MessageTypePong {
		t.Errorf("first frame reply = %q, want pong", f.Type)
	}
	f := readFrame(t, conn)
	if f.Type != MessageTypeError || !strings.Contains(string(f.Data), "Rate limit exceeded") {
		t.Errorf("second frame reply = %s %s", f.Type, f.Data)
	}
}

func TestServeWS_OriginAllowList(t *testing.T) {
	server, _ := setupWebSocketServer(t, HandlerConfig{AllowedOrigins: []string{"https://dash.example"}})

	_, _, err := dialWebSocket(t, server, "token=viewer-token", http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Error("foreign origin should be rejected")
	}
	conn, _, err := dialWebSocket(t, server, "token=viewer-token", http.Header{"Origin": {"https://dash.example"}})
	if err != nil || conn == nil {
		t.Errorf("allowed origin rejected: %v", err)
	}
}

func TestClient_Constants(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
	if writeWait != 10*time.Second {
		t.Errorf("writeWait = %v", writeWait)
	}
}

func TestNewClient(t *testing.T) {
	hub := NewHub()
	a := NewClient(hub, nil, ClientOptions{Identity: Identity{UserID: "u1", Role: "viewer"}})
	b := NewClient(hub, nil, ClientOptions{})
	if a.ID() >= b.ID() {
		t.Errorf("client ids should increase: %d then %d", a.ID(), b.ID())
	}
	if a.UserID() != "u1" || a.Identity().Role != "viewer" {
		t.Errorf("identity = %+v", a.Identity())
	}
	if cap(a.send) != sendBuffer {
		t.Errorf("send buffer = %d, want %d", cap(a.send), sendBuffer)
	}
}

func TestHandleEvent_SubscribeUnregisteredClient(t *testing.T) {
	hub := setupHub(t)
	results := &fakeResults{}
	h := NewHandler(hub, testTokens, results, HandlerConfig{})
	client := createTestClient(hub, 8)

	h.HandleEvent(context.Background(), client, InboundMessage{Type: MessageTypeSubscribeResults})

	if n := results.lists.Load(); n != 0 {
		t.Errorf("ListFiles called %d times for a client that could not join", n)
	}
	if hub.RoomSize(RoomResultsUpdates) != 0 {
		t.Error("unregistered client must not join results-updates")
	}
	expectNothing(t, client)
}

func TestServeWS_AfterHubStopped(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = hub.RunWithContext(ctx)

	server := httptest.NewServer(http.HandlerFunc(NewHandler(hub, testTokens, &fakeResults{}, HandlerConfig{}).ServeWS))
	t.Cleanup(server.Close)

	conn, _, err := dialWebSocket(t, server, "token=viewer-token", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection should be closed once the hub has stopped")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.GetClientCount())
	}
}
