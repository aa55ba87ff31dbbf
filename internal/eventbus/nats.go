// Crowdwatch - Crowd Density Monitoring Dashboard Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crowdwatch

//go:build nats

package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/crowdwatch/internal/config"
	"github.com/tomtom215/crowdwatch/internal/logging"
	"github.com/tomtom215/crowdwatch/internal/metrics"
)

// Publisher republishes room broadcasts to NATS through watermill.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[interface{}]
	prefix    string
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects to cfg.URL. The connection retries in the
// background, so an unreachable server does not fail startup.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	logger := NewLoggerAdapter(logging.WithComponent("eventbus"))

	natsOpts := []natsgo.Option{
		natsgo.Name("crowdwatch"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "nats-publisher",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &Publisher{
		publisher: pub,
		breaker:   breaker,
		prefix:    cfg.SubjectPrefix,
		now:       time.Now,
	}, nil
}

// BroadcastToRoom publishes data to <prefix>.<room>. Failures are logged
// and counted; the websocket broadcast does not depend on the bus.
func (p *Publisher) BroadcastToRoom(room, messageType string, data interface{}) {
	subject := Subject(p.prefix, room)
	err := p.publish(subject, RoomEvent{Room: room, Type: messageType, Data: data, PublishedAt: p.now().UTC()})
	metrics.RecordEventPublish(subject, err)
	if err != nil {
		logging.Warn().Err(err).Str("subject", subject).Str("type", messageType).Msg("Event bus publish failed")
	}
}

func (p *Publisher) publish(subject string, ev RoomEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set("type", ev.Type)
	msg.Metadata.Set("room", ev.Room)

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(subject, msg)
	})
	return err
}

// Close closes the NATS connection. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
