/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisChannelPrefix = "mimir:events:"

// RedisConfig contains Redis connection configuration for the bridge.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis bridge configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// RedisBus replicates local events over Redis pub/sub. After repeated
// failures it trips to local-only delivery and probes the broker on the
// check interval until it comes back.
type RedisBus struct {
	client *redis.Client
	local  *events.Bus
	logger zerolog.Logger
	nodeID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	channels  map[events.EventType]*redis.PubSub
	tripped   bool
	failCount int
	maxFails  int
	lastProbe time.Time
	probeGap  time.Duration
}

// NewRedisBus creates a Redis-backed event bridge. An unreachable broker
// is not fatal: the bridge starts tripped and recovers once probes
// succeed.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) (*RedisBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rb := &RedisBus{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
		local:    events.NewBus(),
		logger:   logger.With().Str("component", "eventbus_redis").Logger(),
		nodeID:   nodeID,
		ctx:      ctx,
		cancel:   cancel,
		channels: make(map[events.EventType]*redis.PubSub),
		maxFails: cfg.MaxFailures,
		probeGap: cfg.CheckInterval,
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := rb.client.Ping(pingCtx).Err(); err != nil {
		rb.logger.Warn().Err(err).Msg("Redis unavailable, running local-only event bus")
		rb.tripped = true
		rb.lastProbe = time.Now()
	} else {
		rb.logger.Info().Str("addr", cfg.Addr).Str("node_id", nodeID).Msg("Redis event bus initialized")
	}

	return rb, nil
}

// Subscribe registers a local subscriber and makes sure remote messages
// for the event type flow into the local bus.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.local.Subscribe(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if _, exists := rb.channels[eventType]; exists {
		return sub
	}

	pubsub := rb.client.Subscribe(rb.ctx, redisChannelPrefix+string(eventType))
	rb.channels[eventType] = pubsub

	rb.wg.Add(1)
	go rb.receive(eventType, pubsub)

	return sub
}

func (rb *RedisBus) receive(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()

	ch := pubsub.Channel()
	for {
		select {
		case <-rb.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				rb.noteFailure()
				return
			}
			bridged, err := unmarshalEnvelope([]byte(msg.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Msg("failed to unmarshal Redis message")
				continue
			}
			if bridged.NodeID == rb.nodeID {
				continue
			}
			rb.local.Publish(bridged.EventType, bridged.Payload)
		}
	}
}

// Publish delivers locally and replicates to other nodes.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	if !rb.healthy() {
		return
	}

	data, err := marshalEnvelope(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal Redis message")
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, redisChannelPrefix+string(eventType), data).Err(); err != nil {
		rb.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		rb.noteFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

// Unsubscribe removes a local subscriber. The Redis subscription stays up
// for other local subscribers until Close.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

// Close stops the receivers and closes the client.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	for _, pubsub := range rb.channels {
		pubsub.Close()
	}
	rb.channels = make(map[events.EventType]*redis.PubSub)
	rb.mu.Unlock()

	rb.wg.Wait()
	return rb.client.Close()
}

// healthy reports whether the bridge should touch Redis, probing for
// recovery when tripped.
func (rb *RedisBus) healthy() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.tripped {
		return true
	}
	if time.Since(rb.lastProbe) < rb.probeGap {
		return false
	}
	rb.lastProbe = time.Now()

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Ping(ctx).Err(); err != nil {
		return false
	}

	rb.tripped = false
	rb.failCount = 0
	rb.logger.Info().Msg("Redis event bus recovered")
	return true
}

func (rb *RedisBus) noteFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.tripped {
		rb.tripped = true
		rb.lastProbe = time.Now()
		rb.logger.Warn().Int("failures", rb.failCount).Msg("Redis failure threshold reached, events stay local")
	}
}
