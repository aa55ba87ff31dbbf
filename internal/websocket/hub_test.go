// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/results"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// setupHub creates and starts a hub that stops with the test.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a connectionless client.
func createTestClient(hub *Hub, buffer int, rooms ...string) *Client {
	return &Client{
		id:           clientIDCounter.Add(1),
		hub:          hub,
		send:         make(chan Message, buffer),
		initialRooms: rooms,
	}
}

// registerClient registers a client and waits until the hub has stored it.
func registerClient(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	hub.Register <- client
	waitFor(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.clients[client]
	}, "client registration")
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	checks := []struct {
		check  bool
		errMsg string
	}{
		{hub.clients != nil, "clients map not initialized"},
		{hub.rooms != nil, "rooms map not initialized"},
		{hub.broadcast != nil, "broadcast channel not initialized"},
		{hub.Register != nil, "Register channel not initialized"},
		{hub.Unregister != nil, "Unregister channel not initialized"},
		{hub.GetClientCount() == 0, "clients map should be empty"},
	}
	for _, c := range checks {
		if !c.check {
			t.Error(c.errMsg)
		}
	}
}

// inRoom reports whether client is a member of room.
func inRoom(h *Hub, client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[room][client]
}

func TestUserRoom(t *testing.T) {
	if got := UserRoom("42"); got != "user-42" {
		t.Errorf("UserRoom() = %q", got)
	}
}

func TestHub_RegistrationJoinsInitialRooms(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, 8, UserRoom("u1"), RoomAdminAlerts)
	registerClient(t, hub, client)

	if !inRoom(hub, client, UserRoom("u1")) || !inRoom(hub, client, RoomAdminAlerts) {
		t.Error("client should be in its initial rooms")
	}

	hub.Unregister <- client
	waitFor(t, func() bool { return hub.GetClientCount() == 0 }, "unregister")
	if hub.RoomSize(RoomAdminAlerts) != 0 {
		t.Error("unregistered client should leave every room")
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_JoinLeave(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, 8)

	if hub.Join(client, RoomResultsUpdates) {
		t.Error("Join should fail for an unregistered client")
	}
	registerClient(t, hub, client)

	if !hub.Join(client, RoomResultsUpdates) {
		t.Fatal("Join failed for a registered client")
	}
	if hub.RoomSize(RoomResultsUpdates) != 1 {
		t.Errorf("RoomSize = %d, want 1", hub.RoomSize(RoomResultsUpdates))
	}
	hub.Leave(client, RoomResultsUpdates)
	hub.Leave(client, RoomResultsUpdates)
	if inRoom(hub, client, RoomResultsUpdates) {
		t.Error("client should have left the room")
	}
}

func TestHub_BroadcastToRoom_OnlyMembers(t *testing.T) {
	hub := setupHub(t)
	admin := createTestClient(hub, 8, RoomAdminAlerts)
	viewer := createTestClient(hub, 8, UserRoom("v"))
	registerClient(t, hub, admin)
	registerClient(t, hub, viewer)

	hub.BroadcastToRoom(RoomAdminAlerts, MessageTypeNewAlert, map[string]string{"id": "a1"})

	if msg := receive(t, admin); msg.Type != MessageTypeNewAlert {
		t.Errorf("admin got %q, want %q", msg.Type, MessageTypeNewAlert)
	}
	expectNothing(t, viewer)

	hub.BroadcastToRoom("", "announcement", nil)
	receive(t, admin)
	receive(t, viewer)
}

func TestHub_BroadcastToRoom_PreservesOrder(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, 128, RoomResultsUpdates)
	registerClient(t, hub, client)

	for i := 0; i < 50; i++ {
		hub.BroadcastToRoom(RoomResultsUpdates, MessageTypeFileUpdate, i)
	}
	for i := 0; i < 50; i++ {
		msg := receive(t, client)
		if msg.Data.(int) != i {
			t.Fatalf("message %d carried %v", i, msg.Data)
		}
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := setupHub(t)
	slow := createTestClient(hub, 1, RoomResultsUpdates)
	fast := createTestClient(hub, 16, RoomResultsUpdates)
	registerClient(t, hub, slow)
	registerClient(t, hub, fast)

	for i := 0; i < 3; i++ {
		hub.BroadcastToRoom(RoomResultsUpdates, MessageTypeFileUpdate, i)
	}
	for i := 0; i < 3; i++ {
		receive(t, fast)
	}

	waitFor(t, func() bool { return hub.GetClientCount() == 1 }, "slow client removal")
	if inRoom(hub, slow, RoomResultsUpdates) {
		t.Error("dropped client should leave its rooms")
	}
	if hub.SendToClient(slow, MessageTypeError, nil) {
		t.Error("SendToClient should fail for a dropped client")
	}
}

func TestHub_SendToClient(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, 1)
	registerClient(t, hub, client)

	if !hub.SendToClient(client, MessageTypePong, nil) {
		t.Fatal("SendToClient failed")
	}
	if hub.SendToClient(client, MessageTypePong, nil) {
		t.Error("SendToClient should report a full buffer")
	}
	if msg := receive(t, client); msg.Type != MessageTypePong {
		t.Errorf("got %q", msg.Type)
	}
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := setupHub(t)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := createTestClient(hub, 256, RoomResultsUpdates)
			hub.Register <- client
			hub.BroadcastToRoom(RoomResultsUpdates, MessageTypeFileUpdate, nil)
			_ = hub.RoomSize(RoomResultsUpdates)
			hub.Unregister <- client
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return hub.GetClientCount() == 0 }, "all clients unregistered")
}

func TestHub_RunWithContext(t *testing.T) {
	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		cancel  bool
		wantErr error
	}{
		{
			name:    "context canceled",
			ctx:     func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			cancel:  true,
			wantErr: context.Canceled,
		},
		{
			name: "context deadline",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 30*time.Millisecond)
			},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub()
			ctx, cancel := tt.ctx()
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- hub.RunWithContext(ctx) }()

			client := createTestClient(hub, 4, RoomAdminAlerts)
			hub.Register <- client
			if tt.cancel {
				cancel()
			}

			select {
			case err := <-errCh:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("RunWithContext() = %v, want %v", err, tt.wantErr)
				}
			case <-time.After(time.Second):
				t.Fatal("RunWithContext did not return")
			}
			if hub.GetClientCount() != 0 || hub.RoomSize(RoomAdminAlerts) != 0 {
				t.Error("shutdown should close every client")
			}
		})
	}
}

func TestGetShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()

	if got := getShutdownReason(canceled); got != ShutdownReasonContextCanceled {
		t.Errorf("canceled reason = %q", got)
	}
	if got := getShutdownReason(expired); got != ShutdownReasonContextDeadline {
		t.Errorf("deadline reason = %q", got)
	}
}

func TestMarshalMessage(t *testing.T) {
	data, err := MarshalMessage(Message{Type: MessageTypeFileUpdate, Data: FileUpdatePayload{Type: "detection", Filename: "detections_1.json", Op: "add"}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"fileUpdate","data":{"type":"detection","filename":"detections_1.json","op":"add"}}`
	if string(data) != want {
		t.Errorf("MarshalMessage() = %s, want %s", data, want)
	}
}

type fakeChanges struct {
	ch       chan results.ChangeEvent
	canceled chan struct{}
}

func (f *fakeChanges) Subscribe(int) (<-chan results.ChangeEvent, func()) {
	return f.ch, func() { close(f.canceled) }
}

func TestBridge_ForwardsChanges(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub, 8, RoomResultsUpdates)
	registerClient(t, hub, client)

	src := &fakeChanges{ch: make(chan results.ChangeEvent, 1), canceled: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- NewBridge(src, hub).Run(ctx) }()

	src.ch <- results.ChangeEvent{Op: results.OpAdd, Type: "forecast", Filename: "forecast_3.json"}
	msg := receive(t, client)
	payload, ok := msg.Data.(FileUpdatePayload)
	if msg.Type != MessageTypeFileUpdate || !ok || payload.Filename != "forecast_3.json" || payload.Op != "add" {
		t.Errorf("got %+v", msg)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	select {
	case <-src.canceled:
	case <-time.After(time.Second):
		t.Error("bridge should cancel its subscription")
	}
}

func TestHub_StoppedHubDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(stopped)
	}()

	client := createTestClient(hub, 8)
	if !hub.RegisterClient(client) {
		t.Fatal("RegisterClient failed on a running hub")
	}
	cancel()
	<-stopped

	select {
	case <-hub.Done():
	default:
		t.Fatal("Done should be closed after RunWithContext returns")
	}

	returned := make(chan bool, 1)
	go func() {
		hub.UnregisterClient(client)
		returned <- hub.RegisterClient(createTestClient(hub, 8))
	}()
	select {
	case ok := <-returned:
		if ok {
			t.Error("RegisterClient should report false after the hub stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("register/unregister blocked on a stopped hub")
	}
}
