// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package notifications

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediatrack/notifier/internal/config"
	"github.com/mediatrack/notifier/internal/metrics"
)

const (
	counterCacheType  = "unread_counter"
	defaultCounterTTL = 5 * time.Minute
)

// UnreadCounter caches per-user unread counts. It is never authoritative:
// a miss or an error sends the caller back to the store.
//
// Writers never update a cached value, they Invalidate it. Readers that
// miss recount from the store and Fill with the generation Get reported,
// so a count that raced with a write is discarded instead of cached.
type UnreadCounter interface {
	// Get returns ok=false on a miss. gen must be passed to Fill.
	Get(ctx context.Context, userID int64) (count int, ok bool, gen int64, err error)
	// Fill caches count unless the user was invalidated after gen was read
	// or another reader filled first.
	Fill(ctx context.Context, userID int64, count int, gen int64) error
	// Invalidate drops the cached value and advances the generation.
	Invalidate(ctx context.Context, userID int64) error
}

// NopCounter always misses.
type NopCounter struct{}

func (NopCounter) Get(context.Context, int64) (int, bool, int64, error) { return 0, false, 0, nil }
func (NopCounter) Fill(context.Context, int64, int, int64) error        { return nil }
func (NopCounter) Invalidate(context.Context, int64) error              { return nil }

// fillIfCurrent sets KEYS[1] only while KEYS[2] still holds ARGV[1].
// A missing generation key reads as 0.
var fillIfCurrent = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
	return 0
end
if redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3], "NX") then
	return 1
end
return 0
`)

// bumpGeneration advances KEYS[2] and drops the cached value in KEYS[1].
var bumpGeneration = redis.NewScript(`
local gen = redis.call("INCR", KEYS[2])
redis.call("PEXPIRE", KEYS[2], ARGV[1])
redis.call("DEL", KEYS[1])
return gen
`)

// RedisCounter keeps unread counts in Redis strings under prefix+userID,
// with the generation alongside under the ":gen" suffix.
type RedisCounter struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCounter wraps an existing client. A non-positive ttl falls back
// to five minutes.
func NewRedisCounter(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCounter {
	if ttl <= 0 {
		ttl = defaultCounterTTL
	}
	return &RedisCounter{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// keys returns the value and generation keys. The braces keep both in one
// cluster slot so the scripts can touch them together.
func (c *RedisCounter) keys(userID int64) (string, string) {
	base := c.prefix + "{" + strconv.FormatInt(userID, 10) + "}"
	return base, base + ":gen"
}

func (c *RedisCounter) Get(ctx context.Context, userID int64) (int, bool, int64, error) {
	valueKey, genKey := c.keys(userID)
	vals, err := c.client.MGet(ctx, valueKey, genKey).Result()
	if err != nil {
		return 0, false, 0, err
	}

	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, false, 0, fmt.Errorf("parse generation: %w", err)
		}
	}
	s, ok := vals[0].(string)
	if !ok {
		metrics.RecordCacheLookup(counterCacheType, false)
		return 0, false, gen, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, gen, fmt.Errorf("parse count: %w", err)
	}
	metrics.RecordCacheLookup(counterCacheType, true)
	return n, true, gen, nil
}

func (c *RedisCounter) Fill(ctx context.Context, userID int64, count int, gen int64) error {
	valueKey, genKey := c.keys(userID)
	return fillIfCurrent.Run(ctx, c.client, []string{valueKey, genKey},
		strconv.FormatInt(gen, 10), count, c.ttl.Milliseconds()).Err()
}

func (c *RedisCounter) Invalidate(ctx context.Context, userID int64) error {
	valueKey, genKey := c.keys(userID)
	// The generation outlives any value filled under it.
	return bumpGeneration.Run(ctx, c.client, []string{valueKey, genKey}, (2 * c.ttl).Milliseconds()).Err()
}

// Ping is used by the readiness check.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
