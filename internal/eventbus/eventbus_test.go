// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package eventbus

import "testing"

type recorder struct {
	rooms []string
}

func (r *recorder) BroadcastToRoom(room, _ string, _ interface{}) {
	r.rooms = append(r.rooms, room)
}

func TestSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, room, want string
	}{
		{"crowdwatch", "admin-alerts", "crowdwatch.admin-alerts"},
		{"", "results-updates", "crowdwatch.results-updates"},
		{"site1", "camera-gate.north", "site1.camera-gate_north"},
		{"site1", "camera-*", "site1.camera-_"},
	}
	for _, tt := range tests {
		if got := Subject(tt.prefix, tt.room); got != tt.want {
			t.Errorf("Subject(%q, %q) = %q, want %q", tt.prefix, tt.room, got, tt.want)
		}
	}
}

func TestFanout(t *testing.T) {
	t.Parallel()

	a, b := &recorder{}, &recorder{}
	f := NewFanout(a, nil, b)
	if len(f) != 2 {
		t.Fatalf("NewFanout kept %d targets, want 2", len(f))
	}
	f.BroadcastToRoom("admin-alerts", "new-alert", nil)
	f.BroadcastToRoom("camera-1", "new-action", nil)

	for _, r := range []*recorder{a, b} {
		if len(r.rooms) != 2 || r.rooms[0] != "admin-alerts" || r.rooms[1] != "camera-1" {
			t.Errorf("rooms = %v", r.rooms)
		}
	}
}
