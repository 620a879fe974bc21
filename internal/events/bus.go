/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"

	"github.com/friendsincode/mimir_tv/internal/telemetry"
)

// EventType enumerates event categories.
type EventType string

const (
	EventNowPlaying       EventType = "now_playing"
	EventHealth           EventType = "health"
	EventPlaybackAdvanced EventType = "playback.advanced"
	EventAdBreakStarted   EventType = "adbreak.started"
	EventAdBreakEnded     EventType = "adbreak.ended"
	EventGuideRefreshed   EventType = "guide.refreshed"

	// Cache invalidation events
	EventChannelUpdated EventType = "cache.channel_updated"
	EventChannelCreated EventType = "cache.channel_created"
	EventChannelDeleted EventType = "cache.channel_deleted"
	EventLibraryUpdated EventType = "cache.library_updated"
	EventContentUpdated EventType = "cache.content_updated"
	EventContentDeleted EventType = "cache.content_deleted"

	// Audit events (for operations that need explicit audit logging)
	EventAuditChannelCreate EventType = "audit.channel.create"
	EventAuditChannelUpdate EventType = "audit.channel.update"
	EventAuditChannelDelete EventType = "audit.channel.delete"
	EventAuditGuideRefresh  EventType = "audit.guide.refresh"
	EventAuditImport        EventType = "audit.import"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// PubSub is the fan-out contract shared by the in-process bus and the
// distributed bridges in internal/eventbus.
type PubSub interface {
	Subscribe(eventType EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType)).Inc()
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
