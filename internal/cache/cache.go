/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for media resolution
// lookups, with graceful fallback when Redis is unavailable.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skald/internal/models"
)

// Default TTL values.
const (
	DefaultMediaTTL   = 1 * time.Hour
	DefaultStationTTL = 5 * time.Minute
)

// Key prefixes.
const (
	keyMedia   = "skald:cache:media:"   // + station_id:unique_id
	keyStation = "skald:cache:station:" // + station_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MediaTTL   time.Duration
	StationTTL time.Duration

	// DisableOnError disables caching entirely after the first Redis
	// error instead of retrying every lookup.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		MediaTTL:       DefaultMediaTTL,
		StationTTL:     DefaultStationTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a new cache instance. When no Redis address is configured or
// the connection fails, the cache runs disabled and every lookup misses.
func New(cfg Config, logger zerolog.Logger) *Cache {
	scoped := logger.With().Str("component", "cache").Logger()

	if cfg.RedisAddr == "" {
		return &Cache{logger: scoped, config: cfg, disabled: true}
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		scoped.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{logger: scoped, config: cfg, disabled: true}
	}

	scoped.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
	return &Cache{client: client, logger: scoped, config: cfg}
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

// GetMedia looks up a cached media item by station and unique id.
func (c *Cache) GetMedia(ctx context.Context, stationID, uniqueID string) (*models.StationMedia, bool) {
	var media models.StationMedia
	ok, err := c.get(ctx, keyMedia+stationID+":"+uniqueID, &media)
	if err != nil || !ok {
		return nil, false
	}
	return &media, true
}

// SetMedia caches a resolved media item.
func (c *Cache) SetMedia(ctx context.Context, media *models.StationMedia) {
	_ = c.set(ctx, keyMedia+media.StationID+":"+media.UniqueID, media, c.config.MediaTTL)
}

// InvalidateMedia removes a cached media item.
func (c *Cache) InvalidateMedia(ctx context.Context, stationID, uniqueID string) {
	_ = c.delete(ctx, keyMedia+stationID+":"+uniqueID)
}

// GetStation looks up a cached station row.
func (c *Cache) GetStation(ctx context.Context, stationID string) (*models.Station, bool) {
	var station models.Station
	ok, err := c.get(ctx, keyStation+stationID, &station)
	if err != nil || !ok {
		return nil, false
	}
	return &station, true
}

// SetStation caches a station row.
func (c *Cache) SetStation(ctx context.Context, station *models.Station) {
	_ = c.set(ctx, keyStation+station.ID, station, c.config.StationTTL)
}

// InvalidateStation removes a cached station row.
func (c *Cache) InvalidateStation(ctx context.Context, stationID string) {
	_ = c.delete(ctx, keyStation+stationID)
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

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
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

	return true, nil
}

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
