/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus bridges the in-process event bus across instances.
// Both bridges satisfy events.PubSub and degrade to local-only delivery
// when the broker is unreachable.
package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const natsSubjectPrefix = "mimir.events."

// NATSBus replicates local events over NATS core pub/sub. Local delivery
// always goes through the embedded in-memory bus; remote messages from
// other nodes are injected into it.
type NATSBus struct {
	conn   *nats.Conn
	local  *events.Bus
	logger zerolog.Logger
	nodeID string

	mu   sync.Mutex
	subs map[events.EventType]*nats.Subscription
}

// NewNATSBus connects to NATS and returns the bridge. Connection failure
// is not fatal: the bridge runs local-only and NATS reconnection is left
// to the client's own retry loop.
func NewNATSBus(url, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	nb := &NATSBus{
		local:  events.NewBus(),
		logger: logger.With().Str("component", "eventbus_nats").Logger(),
		nodeID: nodeID,
		subs:   make(map[events.EventType]*nats.Subscription),
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			nb.logger.Warn().Err(err).Msg("NATS disconnected, events stay local")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			nb.logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		nb.logger.Warn().Err(err).Str("url", url).Msg("NATS unavailable, running local-only event bus")
		return nb, nil
	}

	nb.conn = conn
	nb.logger.Info().Str("url", url).Str("node_id", nodeID).Msg("NATS event bus initialized")
	return nb, nil
}

// Subscribe registers a local subscriber and makes sure remote messages
// for the event type flow into the local bus.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.local.Subscribe(eventType)

	if nb.conn == nil {
		return sub
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, exists := nb.subs[eventType]; exists {
		return sub
	}

	natsSub, err := nb.conn.Subscribe(natsSubjectPrefix+string(eventType), func(msg *nats.Msg) {
		bridged, err := unmarshalEnvelope(msg.Data)
		if err != nil {
			nb.logger.Error().Err(err).Msg("failed to unmarshal NATS message")
			return
		}
		if bridged.NodeID == nb.nodeID {
			return
		}
		nb.local.Publish(bridged.EventType, bridged.Payload)
	})
	if err != nil {
		nb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("NATS subscribe failed")
		return sub
	}
	nb.subs[eventType] = natsSub
	return sub
}

// Publish delivers locally and replicates to other nodes.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)

	if nb.conn == nil || !nb.conn.IsConnected() {
		return
	}

	data, err := marshalEnvelope(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}
	if err := nb.conn.Publish(natsSubjectPrefix+string(eventType), data); err != nil {
		nb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Unsubscribe removes a local subscriber. The NATS subscription stays up
// for other local subscribers until Close.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)
}

// Close drains the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}

	nb.mu.Lock()
	for eventType, natsSub := range nb.subs {
		if err := natsSub.Unsubscribe(); err != nil {
			nb.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("NATS unsubscribe failed")
		}
	}
	nb.subs = make(map[events.EventType]*nats.Subscription)
	nb.mu.Unlock()

	if err := nb.conn.Drain(); err != nil {
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

// envelope wraps a payload for transport between nodes.
type envelope struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"` // For identifying source node
}

func marshalEnvelope(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(envelope{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
	})
}

func unmarshalEnvelope(data []byte) (*envelope, error) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	return &msg, nil
}
