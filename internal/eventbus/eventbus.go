// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package eventbus

import (
	"errors"
	"strings"
	"time"
)

// ErrNATSNotEnabled is returned by NewPublisher when the binary was built
// without the nats tag.
var ErrNATSNotEnabled = errors.New("NATS event bus not available: build with -tags=nats")

// DefaultSubjectPrefix is used when the configured prefix is empty.
const DefaultSubjectPrefix = "crowdwatch"

// Broadcaster delivers a message to a room.
type Broadcaster interface {
	BroadcastToRoom(room, messageType string, data interface{})
}

// RoomEvent is the body of a republished broadcast.
type RoomEvent struct {
	Room        string      `json:"room"`
	Type        string      `json:"type"`
	Data        interface{} `json:"data,omitempty"`
	PublishedAt time.Time   `json:"publishedAt"`
}

// Subject returns the NATS subject for room. Characters NATS treats as
// tokens or wildcards are replaced so a room always maps to one subject.
func Subject(prefix, room string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + subjectReplacer.Replace(room)
}

var subjectReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// Fanout broadcasts to every target in order.
type Fanout []Broadcaster

// NewFanout drops nil targets.
func NewFanout(targets ...Broadcaster) Fanout {
	f := make(Fanout, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			f = append(f, t)
		}
	}
	return f
}

// BroadcastToRoom implements Broadcaster.
func (f Fanout) BroadcastToRoom(room, messageType string, data interface{}) {
	for _, t := range f {
		t.BroadcastToRoom(room, messageType, data)
	}
}
