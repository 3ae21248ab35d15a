// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

/*
Package cache holds the in-process caches of the notifier.

SeenSet is a bounded, TTL-expiring set of keys backed by an LRU
(hashicorp/golang-lru/v2) whose values are expiry times, checked on every
lookup. The event router uses it as the key repository of
watermill's deduplicator so an event id delivered twice within the TTL is
acknowledged without running the handler again.

Lookups are counted in the cache_hits_total and cache_misses_total
Prometheus metrics under the set's name.

The unread counter cache lives in internal/notifications, because it is
shared between instances through Redis.
*/
package cache
