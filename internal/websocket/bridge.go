// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

package websocket

import (
	"context"

	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/results"
)

// ChangeSource is the producer side of result file change events.
type ChangeSource interface {
	Subscribe(buffer int) (<-chan results.ChangeEvent, func())
}

// RoomBroadcaster delivers a message to a room.
type RoomBroadcaster interface {
	BroadcastToRoom(room, messageType string, data interface{})
}

// Bridge forwards result file changes to the results-updates room as
// fileUpdate messages.
type Bridge struct {
	source ChangeSource
	out    RoomBroadcaster
	buffer int
}

// NewBridge creates a bridge from source to out.
func NewBridge(source ChangeSource, out RoomBroadcaster) *Bridge {
	return &Bridge{source: source, out: out, buffer: 64}
}

// Run forwards events until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	events, cancel := b.source.Subscribe(b.buffer)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			logging.Debug().Str("file", ev.Filename).Str("op", string(ev.Op)).Msg("Forwarding result file change")
			b.out.BroadcastToRoom(RoomResultsUpdates, MessageTypeFileUpdate, FileUpdatePayload{
				Type:     ev.Type,
				Filename: ev.Filename,
				Op:       string(ev.Op),
			})
		}
	}
}
