// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package wal

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/mediatrack/notifier/internal/logging"
)

// Compactor deletes confirmed and expired entries and reclaims disk space.
type Compactor struct {
	wal    *BadgerWAL
	config Config

	mu               sync.Mutex
	lastRun          time.Time
	lastEntriesCount int64
}

// NewCompactor creates a compactor for wal.
func NewCompactor(wal *BadgerWAL) *Compactor {
	return &Compactor{
		wal:    wal,
		config: wal.GetConfig(),
	}
}

// Run compacts every CompactInterval until ctx is done.
func (c *Compactor) Run(ctx context.Context) error {
	logging.Info().Dur("interval", c.config.CompactInterval).Msg("WAL compactor started")

	ticker := time.NewTicker(c.config.CompactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.RunNow()
		}
	}
}

// RunNow performs one compaction pass.
func (c *Compactor) RunNow() {
	start := time.Now()

	confirmed, err := c.deleteConfirmedEntries()
	if err != nil {
		logging.Error().Err(err).Msg("WAL compaction failed to delete confirmed entries")
	}
	expired, err := c.deleteExpiredEntries(start)
	if err != nil {
		logging.Error().Err(err).Msg("WAL compaction failed to delete expired entries")
	}
	if err := c.wal.RunGC(); err != nil {
		logging.Error().Err(err).Msg("WAL compaction GC error")
	}

	total := confirmed + expired
	c.mu.Lock()
	c.lastRun = time.Now()
	c.lastEntriesCount = total
	c.mu.Unlock()

	c.wal.mu.Lock()
	c.wal.lastCompaction = c.lastRun
	c.wal.mu.Unlock()

	RecordWALCompaction(time.Since(start).Seconds(), total)
	if total > 0 {
		logging.Info().
			Int64("confirmed", confirmed).
			Int64("expired", expired).
			Dur("duration", time.Since(start)).
			Msg("WAL compaction removed entries")
	}
}

func (c *Compactor) deleteConfirmedEntries() (int64, error) {
	return c.deleteWhere(prefixConfirmed, nil)
}

func (c *Compactor) deleteExpiredEntries(now time.Time) (int64, error) {
	cutoff := now.Add(-c.config.EntryTTL)
	return c.deleteWhere(prefixPending, func(e *Entry) bool {
		return e.CreatedAt.Before(cutoff)
	})
}

// deleteWhere removes entries under prefix for which match returns true.
// A nil match removes all of them.
func (c *Compactor) deleteWhere(prefix string, match func(*Entry) bool) (int64, error) {
	var count int64
	err := c.wal.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = match != nil
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			if match != nil {
				var entry Entry
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &entry)
				}); err != nil || !match(&entry) {
					continue
				}
			}
			keys = append(keys, item.KeyCopy(nil))
		}

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// CompactorStats reports the last compaction pass.
type CompactorStats struct {
	LastRun          time.Time
	LastEntriesCount int64
}

// GetStats returns the result of the last pass.
func (c *Compactor) GetStats() CompactorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CompactorStats{LastRun: c.lastRun, LastEntriesCount: c.lastEntriesCount}
}
