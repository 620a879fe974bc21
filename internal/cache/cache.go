/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/friendsincode/mimir_tv/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultChannelListTTL = 5 * time.Minute
	DefaultGuideTTL       = 20 * time.Minute
	DefaultContentTTL     = 1 * time.Hour
)

// Key prefixes for Redis cache
const (
	KeyChannelList = "mimir:cache:channels"
	KeyGuide       = "mimir:cache:guide:"   // + channel_id
	KeyContentItem = "mimir:cache:content:" // + content_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	ChannelListTTL time.Duration
	GuideTTL       time.Duration
	ContentTTL     time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ChannelListTTL: DefaultChannelListTTL,
		GuideTTL:       DefaultGuideTTL,
		ContentTTL:     DefaultContentTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, name, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		telemetry.CacheMissesTotal.WithLabelValues(name).Inc()
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	telemetry.CacheHitsTotal.WithLabelValues(name).Inc()
	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Channel caching methods

// CachedChannel represents a cached channel record.
type CachedChannel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Number  int    `json:"number"`
	Enabled bool   `json:"enabled"`
}

// GetChannelList retrieves the cached channel lineup.
func (c *Cache) GetChannelList(ctx context.Context) ([]CachedChannel, bool) {
	var channels []CachedChannel
	found, err := c.get(ctx, "channel_list", KeyChannelList, &channels)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(channels)).Msg("channel list cache hit")
	return channels, true
}

// SetChannelList caches the channel lineup.
func (c *Cache) SetChannelList(ctx context.Context, channels []CachedChannel) error {
	c.logger.Debug().Int("count", len(channels)).Msg("caching channel list")
	return c.set(ctx, KeyChannelList, channels, c.config.ChannelListTTL)
}

// InvalidateChannelList removes the channel lineup from cache.
func (c *Cache) InvalidateChannelList(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating channel list cache")
	return c.delete(ctx, KeyChannelList)
}

// Guide caching methods

// CachedProgram represents one cached guide entry.
type CachedProgram struct {
	ChannelID string    `json:"channel_id"`
	ItemID    string    `json:"item_id"`
	Title     string    `json:"title"`
	Overview  string    `json:"overview,omitempty"`
	Kind      string    `json:"kind"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// GetGuide retrieves the cached guide window for a channel.
func (c *Cache) GetGuide(ctx context.Context, channelID string) ([]CachedProgram, bool) {
	var programs []CachedProgram
	found, err := c.get(ctx, "guide", KeyGuide+channelID, &programs)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("channel_id", channelID).Int("count", len(programs)).Msg("guide cache hit")
	return programs, true
}

// SetGuide caches the guide window for a channel.
func (c *Cache) SetGuide(ctx context.Context, channelID string, programs []CachedProgram) error {
	c.logger.Debug().Str("channel_id", channelID).Int("count", len(programs)).Msg("caching guide")
	return c.set(ctx, KeyGuide+channelID, programs, c.config.GuideTTL)
}

// InvalidateGuide removes a channel's guide window from cache.
func (c *Cache) InvalidateGuide(ctx context.Context, channelID string) error {
	c.logger.Debug().Str("channel_id", channelID).Msg("invalidating guide cache")
	return c.delete(ctx, KeyGuide+channelID)
}

// InvalidateAllGuides removes every cached guide window.
func (c *Cache) InvalidateAllGuides(ctx context.Context) error {
	c.logger.Debug().Msg("invalidating all guide caches")
	return c.deletePattern(ctx, KeyGuide+"*")
}

// Content caching methods

// CachedContentItem represents a cached catalog item.
type CachedContentItem struct {
	ID        string `json:"id"`
	LibraryID string `json:"library_id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Overview  string `json:"overview,omitempty"`
	Runtime   int64  `json:"runtime"` // Nanoseconds
	Genres    string `json:"genres,omitempty"`
	Rating    string `json:"rating,omitempty"`
	Year      int    `json:"year,omitempty"`
	Season    int    `json:"season,omitempty"`
	Episode   int    `json:"episode,omitempty"`
}

// GetContentItem retrieves a cached catalog item by ID.
func (c *Cache) GetContentItem(ctx context.Context, contentID string) (*CachedContentItem, bool) {
	var item CachedContentItem
	found, err := c.get(ctx, "content", KeyContentItem+contentID, &item)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("content_id", contentID).Msg("content cache hit")
	return &item, true
}

// SetContentItem caches a catalog item by ID.
func (c *Cache) SetContentItem(ctx context.Context, item *CachedContentItem) error {
	c.logger.Debug().Str("content_id", item.ID).Msg("caching content item")
	return c.set(ctx, KeyContentItem+item.ID, item, c.config.ContentTTL)
}

// InvalidateContentItem removes a catalog item from cache.
func (c *Cache) InvalidateContentItem(ctx context.Context, contentID string) error {
	c.logger.Debug().Str("content_id", contentID).Msg("invalidating content cache")
	return c.delete(ctx, KeyContentItem+contentID)
}

// InvalidateChannel removes everything derived from one channel.
func (c *Cache) InvalidateChannel(ctx context.Context, channelID string) error {
	if err := c.delete(ctx, KeyGuide+channelID); err != nil {
		return err
	}
	return c.delete(ctx, KeyChannelList)
}

// FlushAll removes all cached entries.
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Info().Msg("flushing all cache entries")
	return c.deletePattern(ctx, "mimir:cache:*")
}
