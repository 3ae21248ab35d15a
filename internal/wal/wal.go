// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package wal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mediatrack/notifier/internal/logging"
)

var (
	// ErrWALClosed is returned when operating on a closed WAL.
	ErrWALClosed = errors.New("WAL is closed")

	// ErrNilEvent is returned when writing a nil event.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrEmptyEntryID is returned when confirming an empty entry ID.
	ErrEmptyEntryID = errors.New("entry ID cannot be empty")

	// ErrEntryNotFound is returned when an entry is not in the WAL.
	ErrEntryNotFound = errors.New("entry not found")
)

// WAL is the outbox contract used by the event publisher.
type WAL interface {
	// Write persists event before it is published. An empty id is replaced
	// by a generated one.
	Write(ctx context.Context, id string, event interface{}) (entryID string, err error)

	// Confirm marks an entry as published.
	Confirm(ctx context.Context, entryID string) error

	GetPending(ctx context.Context) ([]*Entry, error)

	Stats() Stats

	Close() error
}

// Entry is one event waiting for, or done with, its publish.
type Entry struct {
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	Confirmed     bool            `json:"confirmed"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

// UnmarshalPayload decodes the stored event into v.
func (e *Entry) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Stats is a snapshot of the WAL.
type Stats struct {
	PendingCount   int64
	ConfirmedCount int64
	TotalWrites    int64
	TotalConfirms  int64
	TotalRetries   int64
	LastCompaction time.Time
	DBSizeBytes    int64
}

// BadgerWAL implements WAL on BadgerDB. Pending and confirmed entries live
// under separate key prefixes; confirming moves an entry in one
// transaction.
type BadgerWAL struct {
	db     *badger.DB
	config Config

	totalWrites   atomic.Int64
	totalConfirms atomic.Int64
	totalRetries  atomic.Int64

	lastCompaction time.Time
	mu             sync.RWMutex
	closed         bool

	// processing holds entries currently being published, so the inline
	// publish and the retry loop never send the same entry concurrently.
	processing sync.Map
}

const (
	prefixPending   = "pending:"
	prefixConfirmed = "confirmed:"
)

// Open opens or creates the WAL at cfg.Path.
func Open(cfg *Config) (*BadgerWAL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid WAL config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	opts.Compression = options.Snappy
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("WAL opened")

	return &BadgerWAL{
		db:             db,
		config:         *cfg,
		lastCompaction: time.Now(),
	}, nil
}

func (w *BadgerWAL) isClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// Write implements WAL.
func (w *BadgerWAL) Write(ctx context.Context, id string, event interface{}) (string, error) {
	start := time.Now()
	defer func() {
		RecordWALWriteLatency(time.Since(start).Seconds())
	}()

	if w.isClosed() {
		return "", ErrWALClosed
	}
	if event == nil {
		return "", ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		RecordWALWriteFailure()
		return "", fmt.Errorf("marshal event: %w", err)
	}

	if id == "" {
		id = uuid.New().String()
	}
	entry := &Entry{
		ID:        id,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		RecordWALWriteFailure()
		return "", fmt.Errorf("marshal entry: %w", err)
	}

	err = w.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(prefixPending+id), data)
		if w.config.EntryTTL > 0 {
			e = e.WithTTL(w.config.EntryTTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		RecordWALWriteFailure()
		return "", fmt.Errorf("write to BadgerDB: %w", err)
	}

	w.totalWrites.Add(1)
	RecordWALWrite()
	return id, nil
}

// Confirm implements WAL.
func (w *BadgerWAL) Confirm(_ context.Context, entryID string) error {
	if w.isClosed() {
		return ErrWALClosed
	}
	if entryID == "" {
		return ErrEmptyEntryID
	}

	pendingKey := []byte(prefixPending + entryID)
	confirmedKey := []byte(prefixConfirmed + entryID)

	err := w.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, pendingKey)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		entry.Confirmed = true
		entry.ConfirmedAt = &now

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal confirmed entry: %w", err)
		}
		if err := txn.Set(confirmedKey, data); err != nil {
			return fmt.Errorf("set confirmed entry: %w", err)
		}
		if err := txn.Delete(pendingKey); err != nil {
			return fmt.Errorf("delete pending entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.totalConfirms.Add(1)
	RecordWALConfirm()
	return nil
}

// GetPending returns all unconfirmed entries in key order.
func (w *BadgerWAL) GetPending(ctx context.Context) ([]*Entry, error) {
	if w.isClosed() {
		return nil, ErrWALClosed
	}

	var entries []*Entry
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			var entry Entry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("WAL failed to unmarshal entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}
	return entries, nil
}

// UpdateAttempt records a failed publish of a pending entry.
func (w *BadgerWAL) UpdateAttempt(_ context.Context, entryID, lastError string) error {
	if w.isClosed() {
		return ErrWALClosed
	}

	key := []byte(prefixPending + entryID)
	err := w.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, key)
		if err != nil {
			return err
		}

		entry.Attempts++
		entry.LastAttemptAt = time.Now().UTC()
		entry.LastError = lastError

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}

	w.totalRetries.Add(1)
	RecordWALRetry()
	return nil
}

// DeleteEntry removes an entry whether pending or confirmed.
func (w *BadgerWAL) DeleteEntry(_ context.Context, entryID string) error {
	if w.isClosed() {
		return ErrWALClosed
	}

	return w.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{[]byte(prefixPending + entryID), []byte(prefixConfirmed + entryID)} {
			if _, err := txn.Get(key); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return fmt.Errorf("get entry: %w", err)
			}
			return txn.Delete(key)
		}
		return ErrEntryNotFound
	})
}

func getEntry(txn *badger.Txn, key []byte) (*Entry, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	var entry Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

// TryClaimEntry marks an entry as being published. It returns false when
// another goroutine already holds it.
func (w *BadgerWAL) TryClaimEntry(entryID string) bool {
	_, claimed := w.processing.LoadOrStore(entryID, time.Now())
	return !claimed
}

// ReleaseEntry releases a claim taken by TryClaimEntry.
func (w *BadgerWAL) ReleaseEntry(entryID string) {
	w.processing.Delete(entryID)
}

// Stats implements WAL.
func (w *BadgerWAL) Stats() Stats {
	w.mu.RLock()
	closed := w.closed
	lastCompaction := w.lastCompaction
	w.mu.RUnlock()

	if closed {
		return Stats{}
	}

	var pendingCount, confirmedCount int64
	if err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		pendingPrefix := []byte(prefixPending)
		for it.Seek(pendingPrefix); it.ValidForPrefix(pendingPrefix); it.Next() {
			pendingCount++
		}
		confirmedPrefix := []byte(prefixConfirmed)
		for it.Seek(confirmedPrefix); it.ValidForPrefix(confirmedPrefix); it.Next() {
			confirmedCount++
		}
		return nil
	}); err != nil {
		logging.Warn().Err(err).Msg("WAL Stats failed to count entries")
	}

	lsm, vlog := w.db.Size()
	stats := Stats{
		PendingCount:   pendingCount,
		ConfirmedCount: confirmedCount,
		TotalWrites:    w.totalWrites.Load(),
		TotalConfirms:  w.totalConfirms.Load(),
		TotalRetries:   w.totalRetries.Load(),
		LastCompaction: lastCompaction,
		DBSizeBytes:    lsm + vlog,
	}

	UpdateWALPendingEntries(pendingCount)
	UpdateWALDBSize(stats.DBSizeBytes)
	return stats
}

// GetConfig returns the WAL configuration.
func (w *BadgerWAL) GetConfig() Config {
	return w.config
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (w *BadgerWAL) RunGC() error {
	if w.isClosed() {
		return ErrWALClosed
	}

	start := time.Now()
	defer func() {
		RecordWALGCLatency(time.Since(start).Seconds())
	}()

	for {
		err := w.db.RunValueLogGC(w.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the WAL, giving BadgerDB CloseTimeout to flush.
func (w *BadgerWAL) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	timeout := w.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	w.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- w.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("WAL closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}
