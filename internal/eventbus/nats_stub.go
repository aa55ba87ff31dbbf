// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

//go:build !nats

package eventbus

import "github.com/tomtom215/crowdwatch/internal/config"

// Publisher is a stub when NATS dependencies are not compiled in.
type Publisher struct{}

// NewPublisher always returns ErrNATSNotEnabled.
func NewPublisher(config.NATSConfig) (*Publisher, error) {
	return nil, ErrNATSNotEnabled
}

// BroadcastToRoom is a no-op.
func (p *Publisher) BroadcastToRoom(string, string, interface{}) {}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
