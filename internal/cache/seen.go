// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mediatrack/notifier/internal/metrics"
)

// DefaultSeenCapacity bounds a SeenSet created with capacity <= 0.
const DefaultSeenCapacity = 10000

// SeenSet remembers keys for a TTL, evicting the least recently added key
// once full. It answers "was this key seen recently" for consumer-side
// deduplication of redelivered events.
//
// Expiry is checked on lookup; an expired key keeps its slot until it is
// looked up, re-added or evicted. No background goroutine is started.
type SeenSet struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	// mu makes the check and the insert in IsDuplicate one step.
	mu  sync.Mutex
	lru *lru.Cache[string, time.Time]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewSeenSet creates a set labelled name in the cache metrics. A ttl <= 0
// keeps keys until they are evicted.
func NewSeenSet(name string, capacity int, ttl time.Duration) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	// New only fails for a non-positive size.
	c, _ := lru.New[string, time.Time](capacity)
	return &SeenSet{name: name, ttl: ttl, now: time.Now, lru: c}
}

// live reports whether key is present and unexpired. Callers hold mu.
func (s *SeenSet) live(key string) bool {
	expiresAt, ok := s.lru.Peek(key)
	if !ok {
		return false
	}
	if s.ttl > 0 && !s.now().Before(expiresAt) {
		s.lru.Remove(key)
		return false
	}
	return true
}

// IsDuplicate reports whether key was seen within the TTL and records it
// when it was not.
func (s *SeenSet) IsDuplicate(key string) bool {
	s.mu.Lock()
	seen := s.live(key)
	if !seen {
		s.lru.Add(key, s.now().Add(s.ttl))
	}
	s.mu.Unlock()

	if seen {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	metrics.RecordCacheLookup(s.name, seen)
	return seen
}

// Contains reports whether key was seen within the TTL without recording it.
func (s *SeenSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key)
}

// Forget drops key so its next occurrence is not a duplicate.
func (s *SeenSet) Forget(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Remove(key)
}

// Len returns the number of unexpired keys. Expired keys found on the way
// are dropped.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, key := range s.lru.Keys() {
		if s.live(key) {
			n++
		}
	}
	return n
}

// Stats returns lookup counters and the current size.
func (s *SeenSet) Stats() (hits, misses int64, size int) {
	return s.hits.Load(), s.misses.Load(), s.Len()
}
